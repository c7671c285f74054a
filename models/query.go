package models

import (
	"fmt"
)

// NodeFilter is a function type used to filter nodes in queries
type NodeFilter func(node *Node) bool

// EdgeFilter is a function type used to filter edges in queries
type EdgeFilter func(edge *Edge) bool

// FindNodeByID returns a node by its ID
func (s *Snapshot) FindNodeByID(id string) (*Node, error) {
	for _, node := range s.Nodes {
		if node.ID == id {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
}

// FindOutgoingEdges returns all edges originating from a node
func (s *Snapshot) FindOutgoingEdges(nodeID string) []*Edge {
	return s.FilterEdges(func(e *Edge) bool { return e.Source == nodeID })
}

// FindIncomingEdges returns all edges targeting a node
func (s *Snapshot) FindIncomingEdges(nodeID string) []*Edge {
	return s.FilterEdges(func(e *Edge) bool { return e.Target == nodeID })
}

// FindConnectedNodes returns all nodes directly connected to a node
func (s *Snapshot) FindConnectedNodes(nodeID string) []*Node {
	connected := make(map[string]bool)
	for _, edge := range s.Edges {
		if edge.Source == nodeID {
			connected[edge.Target] = true
		}
		if edge.Target == nodeID {
			connected[edge.Source] = true
		}
	}

	return s.FilterNodes(func(n *Node) bool { return connected[n.ID] })
}

// FilterNodes returns nodes that match the provided filter function
func (s *Snapshot) FilterNodes(filter NodeFilter) []*Node {
	var result []*Node
	for _, node := range s.Nodes {
		if filter(node) {
			result = append(result, node)
		}
	}
	return result
}

// FilterEdges returns edges that match the provided filter function
func (s *Snapshot) FilterEdges(filter EdgeFilter) []*Edge {
	var result []*Edge
	for _, edge := range s.Edges {
		if filter(edge) {
			result = append(result, edge)
		}
	}
	return result
}
