package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edges(pairs ...string) []*Edge {
	out := make([]*Edge, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &Edge{Source: pairs[i], Target: pairs[i+1], Value: 1})
	}
	return out
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		edges []*Edge
		want  []string
	}{
		{name: "empty", edges: nil, want: []string{}},
		{name: "single", edges: edges("a", "b"), want: []string{"a", "b"}},
		{name: "shared endpoints", edges: edges("a", "b", "b", "c", "c", "a"), want: []string{"a", "b", "c"}},
		{name: "first seen order", edges: edges("z", "y", "a", "z"), want: []string{"z", "y", "a"}},
		{name: "self loop", edges: edges("a", "a"), want: []string{"a"}},
		{name: "duplicate edges", edges: edges("a", "b", "a", "b"), want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := Derive(tt.edges)
			assert.Equal(t, tt.want, nodeIDs(nodes))
			for i, n := range nodes {
				assert.Equal(t, i, n.Index)
				assert.False(t, n.HasPosition())
			}
		})
	}
}

func TestDeriveSharesNodes(t *testing.T) {
	es := edges("a", "b", "b", "c", "a", "a")
	nodes := Derive(es)
	require.Len(t, nodes, 3)

	byID := map[string]*Node{}
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, e := range es {
		assert.Same(t, byID[e.Source], e.FromNode)
		assert.Same(t, byID[e.Target], e.ToNode)
	}
	assert.Same(t, es[0].ToNode, es[1].FromNode)
	assert.Same(t, es[2].FromNode, es[2].ToNode)
}

func TestDeriveCountsDistinctIdentifiers(t *testing.T) {
	es := edges("1", "2", "2", "3", "3", "1", "4", "4", "5", "1")
	distinct := map[string]bool{}
	for _, e := range es {
		distinct[e.Source] = true
		distinct[e.Target] = true
	}
	assert.Len(t, Derive(es), len(distinct))
}

func TestDeriveIsRepeatable(t *testing.T) {
	first := Derive(edges("a", "b", "b", "c"))
	second := Derive(edges("a", "b", "b", "c"))
	assert.Equal(t, nodeIDs(first), nodeIDs(second))
}

func TestCarryForward(t *testing.T) {
	oldNodes := Derive(edges("x", "y"))
	oldNodes[0].SetPosition(10, 20)
	oldNodes[0].VX, oldNodes[0].VY = 3, -4
	oldNodes[0].Pin(10, 20)
	oldNodes[1].SetPosition(5, 5)

	// Different ordering and a new node in the next snapshot.
	newNodes := Derive(edges("z", "x"))
	CarryForward(newNodes, oldNodes)

	z, x := newNodes[0], newNodes[1]
	assert.Equal(t, "x", x.ID)
	assert.Equal(t, 10.0, x.X)
	assert.Equal(t, 20.0, x.Y)
	assert.Zero(t, x.VX)
	assert.Zero(t, x.VY)
	assert.Nil(t, x.FX)
	assert.Nil(t, x.FY)
	assert.NotSame(t, oldNodes[0], x)

	assert.False(t, z.HasPosition())
}

func TestCarryForwardWithoutPrevious(t *testing.T) {
	nodes := Derive(edges("a", "b"))
	CarryForward(nodes, nil)
	for _, n := range nodes {
		assert.False(t, n.HasPosition())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edges []*Edge
		index int
		field string
	}{
		{name: "missing source", edges: []*Edge{{Source: "a", Target: "b"}, {Target: "b"}}, index: 1, field: "source"},
		{name: "missing target", edges: []*Edge{{Source: "a"}}, index: 0, field: "target"},
		{name: "nil record", edges: []*Edge{nil}, index: 0, field: "record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.edges)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEdge))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.index, ve.Index)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, Validate(edges("a", "b", "b", "b")))
	assert.NoError(t, Validate(nil))
}

func TestCoerceValue(t *testing.T) {
	assert.Equal(t, 2.5, CoerceValue(2.5))
	assert.Equal(t, 3.0, CoerceValue("3"))
	assert.Equal(t, 4.0, CoerceValue(json.Number("4")))
	assert.Equal(t, 7.0, CoerceValue(7))
	assert.Equal(t, 0.0, CoerceValue(nil))
	assert.Equal(t, 0.0, CoerceValue(""))
	assert.Equal(t, 1.0, CoerceValue(true))
	assert.True(t, math.IsNaN(CoerceValue("heavy")))
	assert.True(t, math.IsNaN(CoerceValue([]any{1})))
}

func TestIdentifierString(t *testing.T) {
	id, ok := IdentifierString(json.Number("42"))
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	id, ok = IdentifierString(1.5)
	assert.True(t, ok)
	assert.Equal(t, "1.5", id)

	for lit, want := range map[string]string{"1.0": "1", "1e2": "100", "2.50": "2.5", "-7": "-7"} {
		id, ok = IdentifierString(json.Number(lit))
		assert.True(t, ok)
		assert.Equal(t, want, id, lit)
	}

	_, ok = IdentifierString(nil)
	assert.False(t, ok)

	_, ok = IdentifierString("")
	assert.False(t, ok)
}

func TestLinkKey(t *testing.T) {
	assert.NotEqual(t, LinkKey("a", "bc"), LinkKey("ab", "c"))
	assert.NotEqual(t, LinkKey("a", "b"), LinkKey("b", "a"))

	source, target := SplitLinkKey(LinkKey("a b", "c"))
	assert.Equal(t, "a b", source)
	assert.Equal(t, "c", target)

	es := edges("a", "b")
	Derive(es)
	assert.Equal(t, LinkKey("a", "b"), es[0].Key())
}

func TestSnapshotQueries(t *testing.T) {
	es := edges("a", "b", "b", "c", "c", "a", "d", "b")
	s := &Snapshot{Nodes: Derive(es), Edges: es}

	n, err := s.FindNodeByID("c")
	require.NoError(t, err)
	assert.Equal(t, "c", n.ID)

	_, err = s.FindNodeByID("nope")
	assert.ErrorIs(t, err, ErrNodeNotFound)

	assert.Len(t, s.FindOutgoingEdges("b"), 1)
	assert.Len(t, s.FindIncomingEdges("b"), 2)
	assert.Equal(t, []string{"a", "c", "d"}, nodeIDs(s.FindConnectedNodes("b")))

	nodes, edgeCount := s.Len()
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 4, edgeCount)
}
