// Package graph provides the directed graph widget handle.
//
// A Graph owns one snapshot of nodes and edges, the force simulation laying
// it out and the keyed scene drawing it. Updates, drags and simulation ticks
// are serialised on the handle's mutex, so they may be called from any
// goroutine while Run drives the tick loop.
package graph

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/TFMV/dirgraph/models"
	"github.com/TFMV/dirgraph/physics"
	"github.com/TFMV/dirgraph/render"
)

const (
	// DefaultReheat is the alpha target set by updates and drags.
	DefaultReheat = 0.7
	// DefaultTickInterval is the period of the tick loop.
	DefaultTickInterval = 16 * time.Millisecond

	frameBuffer = 8
)

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger. The default, also used for nil, discards
// output.
func WithLogger(l *log.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithStyle sets node radius, label offsets, arc style and transition.
func WithStyle(s render.Style) Option {
	return func(g *Graph) { g.style = s }
}

// WithTransition sets the enter and exit duration.
func WithTransition(d time.Duration) Option {
	return func(g *Graph) { g.style.Transition = d }
}

// WithSize sets the sizing mode and the canvas height used in parent mode.
func WithSize(mode render.SizeMode, height float64) Option {
	return func(g *Graph) {
		g.mode = mode
		g.height = height
	}
}

// WithPhysics sets the simulation parameters. Width and height are always
// taken from the attached canvas.
func WithPhysics(cfg physics.Config) Option {
	return func(g *Graph) { g.physics = cfg }
}

// WithReheat sets the alpha target raised by updates and drags.
func WithReheat(target float64) Option {
	return func(g *Graph) { g.reheat = target }
}

// WithTickInterval sets the tick loop period.
func WithTickInterval(d time.Duration) Option {
	return func(g *Graph) { g.tickInterval = d }
}

// WithClock replaces time.Now for transitions.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// Graph is a force-directed directed graph attached to one container.
type Graph struct {
	id     string
	logger *log.Logger

	style        render.Style
	mode         render.SizeMode
	height       float64
	physics      physics.Config
	reheat       float64
	tickInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	scene    *render.Scene
	sim      *physics.Simulation
	snap     *models.Snapshot
	loaded   bool
	dragging map[string]bool
	seq      uint64

	wake chan struct{}

	subMu sync.Mutex
	subs  map[chan render.Frame]struct{}
}

// New attaches a graph to the container matching selector on page.
// It fails with render.ErrContainerNotFound when no container matches.
func New(page *render.Page, selector string, opts ...Option) (*Graph, error) {
	g := &Graph{
		id:           uuid.NewString(),
		logger:       log.New(io.Discard),
		style:        render.DefaultStyle(),
		mode:         render.SizeParent,
		height:       render.DefaultHeight,
		physics:      physics.DefaultConfig(),
		reheat:       DefaultReheat,
		tickInterval: DefaultTickInterval,
		now:          time.Now,
		snap:         models.NewSnapshot(),
		dragging:     make(map[string]bool),
		wake:         make(chan struct{}, 1),
		subs:         make(map[chan render.Frame]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	canvas, err := page.Attach(selector, g.mode, g.height)
	if err != nil {
		return nil, fmt.Errorf("create graph: %w", err)
	}

	g.physics.Width = canvas.Width
	g.physics.Height = canvas.Height
	g.sim = physics.NewSimulation(g.physics)
	g.scene = render.NewScene(canvas, g.style)

	g.logger.Debug("graph created", "id", g.id, "selector", selector,
		"width", canvas.Width, "height", canvas.Height)
	return g, nil
}

// ID returns the handle id.
func (g *Graph) ID() string {
	return g.id
}

// Canvas returns the attached canvas.
func (g *Graph) Canvas() render.Canvas {
	return g.scene.Canvas
}

// Update replaces the graph's data with edges.
//
// The edge list is validated first; on failure the previous state is left
// untouched. Nodes are derived from the edges, positions of nodes that
// survive from the previous snapshot are carried forward, the scene is
// reconciled and the simulation is reheated. An empty list clears the graph.
func (g *Graph) Update(edges []*models.Edge) (*render.Changes, error) {
	if err := models.Validate(edges); err != nil {
		return nil, fmt.Errorf("update graph %s: %w", g.id, err)
	}
	edges = append([]*models.Edge{}, edges...)

	g.mu.Lock()
	nodes := models.Derive(edges)
	if g.loaded {
		models.CarryForward(nodes, g.snap.Nodes)
	}
	next := &models.Snapshot{Nodes: nodes, Edges: edges}
	g.keepDrags(next)

	changes := g.scene.Update(next, g.now())
	g.snap = next
	g.sim.SetNodes(nodes)
	g.sim.SetLinks(edges)
	g.sim.Reheat(g.reheat)
	g.loaded = true
	g.scene.Apply()
	g.mu.Unlock()

	g.logger.Debug("graph updated", "id", g.id,
		"nodes", len(nodes), "edges", len(edges),
		"enter", len(changes.Nodes.Enter), "exit", len(changes.Nodes.Exit),
		"duplicates", changes.Links.Duplicates)
	g.signal()
	return changes, nil
}

// keepDrags re-pins dragged nodes that survive into next and forgets drags
// of nodes that left the graph.
func (g *Graph) keepDrags(next *models.Snapshot) {
	for id := range g.dragging {
		old, err := g.snap.FindNodeByID(id)
		n, err2 := next.FindNodeByID(id)
		if err != nil || err2 != nil || !old.Pinned() {
			delete(g.dragging, id)
			continue
		}
		n.Pin(*old.FX, *old.FY)
	}
}

// Snapshot returns the current nodes and edges. The returned snapshot is
// shared with the simulation; callers must not modify it.
func (g *Graph) Snapshot() *models.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Node returns a copy of the node with id together with its incoming and
// outgoing edges.
func (g *Graph) Node(id string) (models.Node, []*models.Edge, []*models.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.snap.FindNodeByID(id)
	if err != nil {
		return models.Node{}, nil, nil, err
	}
	return *n, g.snap.FindIncomingEdges(id), g.snap.FindOutgoingEdges(id), nil
}

// Neighbors returns the ids of nodes linked to id in either direction.
func (g *Graph) Neighbors(id string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.snap.FindNodeByID(id); err != nil {
		return nil, err
	}
	var ids []string
	for _, n := range g.snap.FindConnectedNodes(id) {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// DragStart pins the node at its current position. The simulation is
// reheated by the first DragMove.
func (g *Graph) DragStart(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.snap.FindNodeByID(id)
	if err != nil {
		return fmt.Errorf("drag start: %w", err)
	}
	n.Pin(n.X, n.Y)
	g.dragging[id] = true
	g.logger.Debug("drag start", "id", g.id, "node", id)
	return nil
}

// DragMove moves a pinned node and reheats the simulation.
func (g *Graph) DragMove(id string, x, y float64) error {
	g.mu.Lock()
	n, err := g.snap.FindNodeByID(id)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("drag: %w", err)
	}
	g.dragging[id] = true
	n.Pin(x, y)
	g.sim.Reheat(g.reheat)
	g.mu.Unlock()

	g.signal()
	return nil
}

// DragEnd releases the node. The alpha target drops to zero once no other
// drag is in progress.
func (g *Graph) DragEnd(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.dragging, id)
	if len(g.dragging) == 0 {
		g.sim.SetAlphaTarget(0)
	}

	n, err := g.snap.FindNodeByID(id)
	if err != nil {
		return fmt.Errorf("drag end: %w", err)
	}
	n.Unpin()
	g.logger.Debug("drag end", "id", g.id, "node", id)
	return nil
}

// Dragging returns the number of drags in progress.
func (g *Graph) Dragging() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.dragging)
}

// Alpha returns the simulation's current alpha and alpha target.
func (g *Graph) Alpha() (alpha, target float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sim.Alpha(), g.sim.AlphaTarget()
}

// Tick advances the simulation and the scene transitions by one step and
// returns the resulting frame. It reports whether more ticks are needed.
func (g *Graph) Tick() (render.Frame, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tickLocked()
}

func (g *Graph) tickLocked() (render.Frame, bool) {
	if g.sim.Active() {
		g.sim.Step()
		if len(g.dragging) == 0 && reached(g.sim.Alpha(), g.sim.AlphaTarget()) {
			g.sim.SetAlphaTarget(0)
		}
	}
	pending := g.scene.Advance(g.now())
	g.scene.Apply()

	g.seq++
	frame := g.scene.Frame(g.seq, g.sim.Alpha())
	return frame, g.sim.Active() || pending
}

// reached reports whether alpha has climbed to within one percent of a
// positive target.
func reached(alpha, target float64) bool {
	return target > 0 && alpha >= target*0.99
}

// Settle runs up to maxTicks ticks without publishing frames, for static
// output. Returns the number of ticks taken.
func (g *Graph) Settle(maxTicks int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sim.SetAlphaTarget(0)
	if g.sim.Alpha() < g.reheat {
		g.sim.SetAlpha(g.reheat)
	}
	n := g.sim.Settle(maxTicks)
	g.scene.Advance(g.now().Add(g.style.Transition))
	g.scene.Apply()
	return n
}

// Render serialises the current scene with the renderer for format.
func (g *Graph) Render(format string, options *render.OutputOptions) ([]byte, error) {
	r, err := render.GetRenderer(format)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out, err := r.Render(g.scene, options)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", r.Name(), err)
	}
	return out, nil
}

// Preview returns the changes Update would report for edges without
// modifying the graph.
func (g *Graph) Preview(edges []*models.Edge) (*render.Changes, error) {
	if err := models.Validate(edges); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	scene := render.NewScene(g.scene.Canvas, render.Style{})
	epoch := time.Time{}
	scene.Update(g.snap, epoch)
	next := &models.Snapshot{Edges: cloneEdges(edges)}
	next.Nodes = models.Derive(next.Edges)
	return scene.Update(next, epoch), nil
}

// Run drives the tick loop until ctx is cancelled. While the simulation is
// warm or transitions are running, each tick publishes a frame to
// subscribers; once everything is at rest the loop idles until the next
// update or drag.
func (g *Graph) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()

	g.logger.Debug("graph loop started", "id", g.id, "interval", g.tickInterval)
	running := true
	for {
		if running {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.wake:
			case <-ticker.C:
				frame, more := g.Tick()
				g.publish(frame)
				if !more {
					g.logger.Debug("graph at rest", "id", g.id, "seq", frame.Seq)
					running = false
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.wake:
			running = true
		}
	}
}

// Subscribe registers a frame subscriber. Frames are dropped for a
// subscriber that falls behind. The returned function unsubscribes and
// closes the channel.
func (g *Graph) Subscribe() (<-chan render.Frame, func()) {
	ch := make(chan render.Frame, frameBuffer)

	g.subMu.Lock()
	g.subs[ch] = struct{}{}
	g.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.subMu.Lock()
			delete(g.subs, ch)
			g.subMu.Unlock()
			close(ch)
		})
	}
}

// Frame returns the current frame without advancing the simulation.
func (g *Graph) Frame() render.Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scene.Frame(g.seq, g.sim.Alpha())
}

func (g *Graph) publish(frame render.Frame) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for ch := range g.subs {
		select {
		case ch <- frame:
		default:
			g.logger.Debug("frame dropped", "id", g.id, "seq", frame.Seq)
		}
	}
}

func (g *Graph) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func cloneEdges(edges []*models.Edge) []*models.Edge {
	out := make([]*models.Edge, len(edges))
	for i, e := range edges {
		out[i] = &models.Edge{Source: e.Source, Target: e.Target, Value: e.Value}
	}
	return out
}
