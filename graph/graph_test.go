package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/dirgraph/models"
	"github.com/TFMV/dirgraph/render"
)

func testPage() *render.Page {
	return render.NewPage(1280, 720, render.Container{Selector: "#graph", Width: 960})
}

func newGraph(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	g, err := New(testPage(), "#graph", opts...)
	require.NoError(t, err)
	return g
}

func edges(pairs ...string) []*models.Edge {
	var out []*models.Edge
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &models.Edge{Source: pairs[i], Target: pairs[i+1], Value: 1})
	}
	return out
}

func TestNew(t *testing.T) {
	g := newGraph(t)
	assert.NotEmpty(t, g.ID())
	assert.Equal(t, render.Canvas{Selector: "#graph", Width: 960, Height: 600}, g.Canvas())

	other := newGraph(t, WithSize(render.SizeViewport, 0))
	assert.NotEqual(t, g.ID(), other.ID())
	assert.Equal(t, 720.0, other.Canvas().Height)
}

func TestNewUnknownSelector(t *testing.T) {
	g, err := New(testPage(), "#nope")
	assert.Nil(t, g)
	assert.ErrorIs(t, err, render.ErrContainerNotFound)
}

func TestUpdateIdempotent(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)

	changes, err := g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)
	assert.Empty(t, changes.Nodes.Enter)
	assert.Empty(t, changes.Nodes.Exit)
	assert.Equal(t, []string{"a", "b", "c"}, changes.Nodes.Update)
	assert.Empty(t, changes.Links.Enter)
	assert.Empty(t, changes.Links.Exit)
	assert.Len(t, changes.Links.Update, 2)
}

func TestUpdateEnterAndExit(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)

	changes, err := g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, changes.Nodes.Enter)
	assert.Equal(t, []string{"a", "b"}, changes.Nodes.Update)
	assert.Equal(t, []string{models.LinkKey("b", "c")}, changes.Links.Enter)

	changes, err = g.Update(edges("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, changes.Nodes.Exit)
	assert.Equal(t, []string{"c"}, changes.Labels.Exit)
	assert.Equal(t, []string{models.LinkKey("b", "c")}, changes.Links.Exit)

	changes, err = g.Update(edges("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, changes.Nodes.Exit)
	assert.Empty(t, changes.Links.Exit)
}

func TestUpdateCarriesPositionsForward(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)

	old, err := g.Snapshot().FindNodeByID("a")
	require.NoError(t, err)
	old.X, old.Y = 10, 20
	old.VX, old.VY = 3, 4
	old.Pin(10, 20)

	_, err = g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)

	n, err := g.Snapshot().FindNodeByID("a")
	require.NoError(t, err)
	assert.NotSame(t, old, n)
	assert.Equal(t, 10.0, n.X)
	assert.Equal(t, 20.0, n.Y)
	assert.Zero(t, n.VX)
	assert.Zero(t, n.VY)
	assert.False(t, n.Pinned())

	c, err := g.Snapshot().FindNodeByID("c")
	require.NoError(t, err)
	assert.True(t, c.HasPosition(), "new nodes are placed by the simulation")
}

func TestUpdateSharesNodeReferences(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)

	snap := g.Snapshot()
	assert.Same(t, snap.Edges[0].ToNode, snap.Edges[1].FromNode)
}

func TestUpdateEmptyClears(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)

	changes, err := g.Update(nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, changes.Nodes.Exit)

	nodes, links := g.Snapshot().Len()
	assert.Zero(t, nodes)
	assert.Zero(t, links)

	out, err := g.Render("svg", nil)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<circle")
}

func TestUpdateRejectsMalformed(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)
	before := g.Snapshot()

	bad := append(edges("a", "b"), &models.Edge{Source: "x"})
	_, err = g.Update(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidEdge)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "target", verr.Field)

	assert.Same(t, before, g.Snapshot())
}

func TestUpdateSelfLoop(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "a"))
	require.NoError(t, err)
	g.Settle(500)

	out, err := g.Render("svg", nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `data-source="a" data-target="a"`)
	assert.NotContains(t, string(out), "NaN")
}

func TestDrag(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)
	g.Settle(1000)

	require.NoError(t, g.DragStart("a"))
	n, err := g.Snapshot().FindNodeByID("a")
	require.NoError(t, err)
	assert.True(t, n.Pinned())
	assert.Equal(t, n.X, *n.FX)
	assert.Equal(t, 1, g.Dragging())
	_, target := g.Alpha()
	assert.Zero(t, target, "a press alone does not reheat")

	require.NoError(t, g.DragMove("a", 5, 6))
	_, target = g.Alpha()
	assert.Equal(t, DefaultReheat, target)

	g.Tick()
	assert.Equal(t, 5.0, n.X)
	assert.Equal(t, 6.0, n.Y)

	// The target holds while the drag lasts.
	for i := 0; i < 400; i++ {
		g.Tick()
	}
	_, target = g.Alpha()
	assert.Equal(t, DefaultReheat, target)

	require.NoError(t, g.DragEnd("a"))
	assert.False(t, n.Pinned())
	assert.Zero(t, g.Dragging())
	_, target = g.Alpha()
	assert.Zero(t, target)
}

func TestDragUnknownNode(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)

	assert.ErrorIs(t, g.DragStart("zz"), models.ErrNodeNotFound)
	assert.ErrorIs(t, g.DragMove("zz", 1, 1), models.ErrNodeNotFound)
	assert.ErrorIs(t, g.DragEnd("zz"), models.ErrNodeNotFound)
}

func TestDragSurvivesUpdate(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)

	require.NoError(t, g.DragStart("a"))
	require.NoError(t, g.DragMove("a", 100, 200))
	require.NoError(t, g.DragStart("c"))

	_, err = g.Update(edges("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Dragging(), "drag of a removed node is forgotten")

	n, err := g.Snapshot().FindNodeByID("a")
	require.NoError(t, err)
	require.True(t, n.Pinned())
	assert.Equal(t, 100.0, *n.FX)
	assert.Equal(t, 200.0, *n.FY)
}

func TestReheatCools(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)
	g.Settle(1000)

	_, err = g.Update(edges("a", "b", "b", "c"))
	require.NoError(t, err)
	_, target := g.Alpha()
	assert.Equal(t, DefaultReheat, target)

	more := true
	ticks := 0
	for more && ticks < 5000 {
		_, more = g.Tick()
		ticks++
	}
	assert.False(t, more, "simulation must cool after a reheat")
	alpha, target := g.Alpha()
	assert.Zero(t, target)
	assert.Less(t, alpha, 0.001)
}

func TestTransitionsUseClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := newGraph(t, WithTransition(100*time.Millisecond), WithClock(func() time.Time { return now }))

	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)
	frame := g.Frame()
	require.Len(t, frame.Nodes, 2)
	assert.Equal(t, render.Entering, frame.Nodes[0].State)

	now = now.Add(time.Second)
	frame, _ = g.Tick()
	assert.Equal(t, render.Live, frame.Nodes[0].State)
	assert.Equal(t, 1.0, frame.Nodes[0].Opacity)

	_, err = g.Update(edges("a", "c"))
	require.NoError(t, err)
	frame = g.Frame()
	require.Len(t, frame.Nodes, 3)
	assert.Equal(t, render.Exiting, frame.Nodes[2].State)
	assert.Equal(t, "b", frame.Nodes[2].ID)
}

func TestPreview(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)
	before := g.Snapshot()

	changes, err := g.Preview(edges("b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, changes.Nodes.Enter)
	assert.Equal(t, []string{"a"}, changes.Nodes.Exit)
	assert.Same(t, before, g.Snapshot())

	_, err = g.Preview([]*models.Edge{nil})
	assert.ErrorIs(t, err, models.ErrInvalidEdge)
}

func TestNodeLookup(t *testing.T) {
	g := newGraph(t)
	_, err := g.Update(edges("a", "b", "c", "b", "b", "d"))
	require.NoError(t, err)

	n, in, out, err := g.Node("b")
	require.NoError(t, err)
	assert.Equal(t, "b", n.ID)
	assert.Len(t, in, 2)
	assert.Len(t, out, 1)

	_, _, _, err = g.Node("zz")
	assert.ErrorIs(t, err, models.ErrNodeNotFound)

	ids, err := g.Neighbors("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids)

	_, err = g.Neighbors("zz")
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}

func TestRunPublishesFrames(t *testing.T) {
	g := newGraph(t, WithTickInterval(time.Millisecond))
	frames, unsubscribe := g.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	_, err := g.Update(edges("a", "b"))
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-frames:
			if len(f.Nodes) == 2 {
				assert.NotZero(t, f.Seq)
				assert.Len(t, f.Links, 1)
				cancel()
				assert.ErrorIs(t, <-done, context.Canceled)
				return
			}
		case <-deadline:
			cancel()
			t.Fatal("no frame received")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	g := newGraph(t)
	frames, unsubscribe := g.Subscribe()
	unsubscribe()
	unsubscribe()

	_, ok := <-frames
	assert.False(t, ok)

	// Publishing with no subscribers must not block.
	g.publish(render.Frame{})
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	g := newGraph(t)
	frames, unsubscribe := g.Subscribe()
	defer unsubscribe()

	for i := 0; i < frameBuffer*3; i++ {
		g.publish(render.Frame{Seq: uint64(i)})
	}
	assert.Len(t, frames, frameBuffer)
}
