package render

import (
	"time"

	"github.com/TFMV/dirgraph/models"
)

// Style holds the visual parameters of a scene.
type Style struct {
	NodeRadius float64       // Circle radius
	LabelDX    float64       // Label offset from the node center
	LabelDY    string        // Baseline shift of labels
	Arc        ArcStyle      // Link curvature
	Transition time.Duration // Enter and exit duration, zero for immediate
}

// DefaultStyle returns the widget's default style.
func DefaultStyle() Style {
	return Style{
		NodeRadius: 10,
		LabelDX:    12,
		LabelDY:    ".35em",
		Arc:        DefaultArcStyle(),
	}
}

// Marker is the arrow head referenced by every link path.
type Marker struct {
	ID         string
	ViewBox    string
	RefX, RefY float64
	Width      float64
	Height     float64
	Path       string
}

// DefaultMarker returns the arrow marker used for directed links.
func DefaultMarker() Marker {
	return Marker{
		ID:      "end",
		ViewBox: "0 -5 10 10",
		RefX:    15,
		RefY:    -1.5,
		Width:   4,
		Height:  4,
		Path:    "M0,-5L10,0L0,5",
	}
}

// Changes reports the keyed joins of one scene update.
type Changes struct {
	Links  Join `json:"links"`
	Nodes  Join `json:"nodes"`
	Labels Join `json:"labels"`
}

// Scene is the set of visual elements of one graph.
type Scene struct {
	Canvas Canvas
	Style  Style
	Marker Marker
	Links  *Layer
	Nodes  *Layer
	Labels *Layer
}

// NewScene creates an empty scene on canvas.
func NewScene(canvas Canvas, style Style) *Scene {
	return &Scene{
		Canvas: canvas,
		Style:  style,
		Marker: DefaultMarker(),
		Links:  NewLayer(KindLink, style.Transition),
		Nodes:  NewLayer(KindNode, style.Transition),
		Labels: NewLayer(KindLabel, style.Transition),
	}
}

func nodeKey(n *models.Node) string { return n.ID }

func edgeKey(e *models.Edge) string { return e.Key() }

// Update reconciles all three layers against a snapshot.
func (s *Scene) Update(snap *models.Snapshot, now time.Time) *Changes {
	if snap == nil {
		snap = models.NewSnapshot()
	}
	return &Changes{
		Links:  Reconcile(s.Links, snap.Edges, edgeKey, now),
		Nodes:  Reconcile(s.Nodes, snap.Nodes, nodeKey, now),
		Labels: Reconcile(s.Labels, snap.Nodes, nodeKey, now),
	}
}

// Advance moves transitions forward. Returns true while any are running.
func (s *Scene) Advance(now time.Time) bool {
	links := s.Links.Advance(now)
	nodes := s.Nodes.Advance(now)
	labels := s.Labels.Advance(now)
	return links || nodes || labels
}

// Apply writes current node coordinates into the elements. It runs on every
// simulation tick.
func (s *Scene) Apply() {
	for _, el := range s.Nodes.Elements() {
		n := el.Node()
		el.X, el.Y = n.X, n.Y
		el.R = s.Style.NodeRadius * el.Scale
	}
	for _, el := range s.Labels.Elements() {
		n := el.Node()
		el.X, el.Y = n.X, n.Y
		el.Text = n.Label
	}
	for _, el := range s.Links.Elements() {
		el.Path = s.Style.Arc.ArcPath(el.Edge())
	}
}
