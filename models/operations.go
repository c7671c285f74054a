package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Derive builds the unique node set of an edge list.
// Every edge gets FromNode and ToNode pointing at the shared node for its
// identifier. Nodes are returned in first-seen order.
func Derive(edges []*Edge) []*Node {
	byID := make(map[string]*Node)
	nodes := make([]*Node, 0)

	lookup := func(id string) *Node {
		if n, ok := byID[id]; ok {
			return n
		}
		n := NewNode(id)
		n.Index = len(nodes)
		byID[id] = n
		nodes = append(nodes, n)
		return n
	}

	for _, e := range edges {
		e.FromNode = lookup(e.Source)
		e.ToNode = lookup(e.Target)
	}

	return nodes
}

// CarryForward copies positions from oldNodes into newNodes by identifier.
// Matched nodes keep x and y and restart with zero velocity. Pins are never
// copied; unmatched nodes are left for the simulation to place.
func CarryForward(newNodes, oldNodes []*Node) {
	if len(oldNodes) == 0 {
		return
	}

	previous := make(map[string]*Node, len(oldNodes))
	for _, n := range oldNodes {
		previous[n.ID] = n
	}

	for _, n := range newNodes {
		old, ok := previous[n.ID]
		if !ok {
			continue
		}
		n.X = old.X
		n.Y = old.Y
		n.VX = 0
		n.VY = 0
	}
}

// Validate checks edge records before they are derived.
func Validate(edges []*Edge) error {
	for i, e := range edges {
		if e == nil {
			return &ValidationError{Index: i, Field: "record"}
		}
		if e.Source == "" {
			return &ValidationError{Index: i, Field: "source"}
		}
		if e.Target == "" {
			return &ValidationError{Index: i, Field: "target"}
		}
	}
	return nil
}

// CoerceValue converts a decoded value to a number.
// Missing values are 0 and anything non-numeric is NaN.
func CoerceValue(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// IdentifierString converts a decoded identifier to its string form.
// Numbers use their shortest decimal representation. ok is false for
// missing or non-scalar identifiers.
func IdentifierString(v any) (id string, ok bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
