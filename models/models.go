// Package models provides the data structures shared by the dirgraph packages.
// It defines the edge records supplied by callers, the nodes derived from them
// and the snapshot pair owned by one graph handle.
package models

import (
	"math"
	"strings"
)

// Node represents a node derived from an edge list.
// X and Y are NaN until the simulation places the node.
type Node struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Index int      `json:"index"` // Position in the snapshot's node slice
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	VX    float64  `json:"vx"`
	VY    float64  `json:"vy"`
	FX    *float64 `json:"fx,omitempty"` // Pinned x, set while dragging
	FY    *float64 `json:"fy,omitempty"` // Pinned y, set while dragging
}

// Edge represents a directed edge between two nodes
type Edge struct {
	Source   string  `json:"source"` // Identifier of the source node
	Target   string  `json:"target"` // Identifier of the target node
	Value    float64 `json:"value"`
	FromNode *Node   `json:"-"` // Resolved source, set by Derive
	ToNode   *Node   `json:"-"` // Resolved target, set by Derive
}

// Snapshot is the node and edge pair of one graph at one point in time.
type Snapshot struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NewNode creates a node with an undefined position.
func NewNode(id string) *Node {
	return &Node{
		ID:    id,
		Label: id,
		X:     math.NaN(),
		Y:     math.NaN(),
	}
}

// HasPosition reports whether the node has been placed.
func (n *Node) HasPosition() bool {
	return !math.IsNaN(n.X) && !math.IsNaN(n.Y)
}

// Pinned reports whether both pin coordinates are set.
func (n *Node) Pinned() bool {
	return n.FX != nil && n.FY != nil
}

// Pin fixes the node at (x, y) until Unpin is called.
func (n *Node) Pin(x, y float64) {
	n.FX = &x
	n.FY = &y
}

// Unpin releases a pinned node back to the simulation.
func (n *Node) Unpin() {
	n.FX = nil
	n.FY = nil
}

// SetPosition sets the position of a node
func (n *Node) SetPosition(x, y float64) {
	n.X = x
	n.Y = y
}

// Key returns the join key of the edge.
// Resolved node ids are used when available.
func (e *Edge) Key() string {
	source, target := e.Source, e.Target
	if e.FromNode != nil {
		source = e.FromNode.ID
	}
	if e.ToNode != nil {
		target = e.ToNode.ID
	}
	return LinkKey(source, target)
}

// SelfLoop reports whether the edge starts and ends at the same node.
func (e *Edge) SelfLoop() bool {
	return e.Source == e.Target
}

// LinkKey builds the composite key for a directed edge.
// The separator keeps ("a", "bc") and ("ab", "c") apart.
func LinkKey(source, target string) string {
	return source + "\x00" + target
}

// SplitLinkKey returns the endpoints encoded in a link key.
func SplitLinkKey(key string) (source, target string) {
	source, target, _ = strings.Cut(key, "\x00")
	return source, target
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Nodes: []*Node{},
		Edges: []*Edge{},
	}
}

// Len returns the number of nodes and edges in the snapshot.
func (s *Snapshot) Len() (nodes, edges int) {
	if s == nil {
		return 0, 0
	}
	return len(s.Nodes), len(s.Edges)
}
