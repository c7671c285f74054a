package physics

import (
	"math"

	"github.com/TFMV/dirgraph/models"
)

// CenterForce translates all nodes so their mean position sits at the center.
type CenterForce struct {
	x, y     float64
	strength float64
	nodes    []*models.Node
}

// NewCenterForce creates a centering force at (x, y).
func NewCenterForce(x, y float64) *CenterForce {
	return &CenterForce{x: x, y: y, strength: 1}
}

// Name returns the name of the force
func (f *CenterForce) Name() string { return "center" }

// Initialize records the node set
func (f *CenterForce) Initialize(nodes []*models.Node, _ func() float64) {
	f.nodes = nodes
}

// Apply shifts every node by the offset of the mean from the center.
func (f *CenterForce) Apply(float64) {
	n := len(f.nodes)
	if n == 0 {
		return
	}

	var sx, sy float64
	for _, node := range f.nodes {
		sx += node.X
		sy += node.Y
	}

	sx = (sx/float64(n) - f.x) * f.strength
	sy = (sy/float64(n) - f.y) * f.strength
	for _, node := range f.nodes {
		node.X -= sx
		node.Y -= sy
	}
}

// ManyBodyForce applies pairwise charge between all nodes.
// Every pair is visited, which is fine for widget-sized graphs.
type ManyBodyForce struct {
	strength     float64
	distanceMin2 float64
	distanceMax2 float64
	nodes        []*models.Node
	jiggle       func() float64
}

// NewManyBodyForce creates a charge force. A maxDistance of zero leaves the
// force unbounded.
func NewManyBodyForce(strength, maxDistance float64) *ManyBodyForce {
	max2 := math.Inf(1)
	if maxDistance > 0 {
		max2 = maxDistance * maxDistance
	}
	return &ManyBodyForce{
		strength:     strength,
		distanceMin2: 1,
		distanceMax2: max2,
	}
}

// Name returns the name of the force
func (f *ManyBodyForce) Name() string { return "charge" }

// Initialize records the node set and jiggle source
func (f *ManyBodyForce) Initialize(nodes []*models.Node, jiggle func() float64) {
	f.nodes = nodes
	f.jiggle = jiggle
}

// Apply adds the charge of every other node to each node's velocity.
func (f *ManyBodyForce) Apply(alpha float64) {
	for i, node := range f.nodes {
		for j, other := range f.nodes {
			if i == j {
				continue
			}

			dx := other.X - node.X
			dy := other.Y - node.Y
			l := dx*dx + dy*dy
			if l >= f.distanceMax2 {
				continue
			}

			// Coincident nodes would otherwise never separate
			if dx == 0 {
				dx = f.jiggle()
				l += dx * dx
			}
			if dy == 0 {
				dy = f.jiggle()
				l += dy * dy
			}
			if l < f.distanceMin2 {
				l = math.Sqrt(f.distanceMin2 * l)
			}

			w := f.strength * alpha / l
			node.VX += dx * w
			node.VY += dy * w
		}
	}
}

// LinkForce pulls the endpoints of each edge towards a rest distance.
type LinkForce struct {
	distance float64
	links    []*models.Edge
	strength []float64
	bias     []float64
	jiggle   func() float64
}

// NewLinkForce creates a link force with the given rest distance.
func NewLinkForce(distance float64) *LinkForce {
	return &LinkForce{distance: distance}
}

// Name returns the name of the force
func (f *LinkForce) Name() string { return "link" }

// SetLinks replaces the edges of the force.
func (f *LinkForce) SetLinks(links []*models.Edge) {
	f.links = links
}

// Links returns the edges of the force.
func (f *LinkForce) Links() []*models.Edge {
	return f.links
}

// Initialize computes per-link strength and bias from node degrees.
// Edges with unresolved endpoints are ignored.
func (f *LinkForce) Initialize(_ []*models.Node, jiggle func() float64) {
	f.jiggle = jiggle

	count := make(map[*models.Node]int)
	for _, l := range f.links {
		if l.FromNode == nil || l.ToNode == nil {
			continue
		}
		count[l.FromNode]++
		count[l.ToNode]++
	}

	f.strength = make([]float64, len(f.links))
	f.bias = make([]float64, len(f.links))
	for i, l := range f.links {
		if l.FromNode == nil || l.ToNode == nil {
			continue
		}
		cs, ct := count[l.FromNode], count[l.ToNode]
		f.bias[i] = float64(cs) / float64(cs+ct)
		f.strength[i] = 1 / float64(min(cs, ct))
	}
}

// Apply moves linked nodes towards the rest distance.
func (f *LinkForce) Apply(alpha float64) {
	for i, l := range f.links {
		source, target := l.FromNode, l.ToNode
		if source == nil || target == nil {
			continue
		}

		x := target.X + target.VX - source.X - source.VX
		y := target.Y + target.VY - source.Y - source.VY
		if x == 0 {
			x = f.jiggle()
		}
		if y == 0 {
			y = f.jiggle()
		}

		d := math.Sqrt(x*x + y*y)
		d = (d - f.distance) / d * alpha * f.strength[i]
		x *= d
		y *= d

		b := f.bias[i]
		target.VX -= x * b
		target.VY -= y * b
		source.VX += x * (1 - b)
		source.VY += y * (1 - b)
	}
}
