// Package physics implements the force simulation that lays out a graph
// snapshot. The simulation integrates node positions over discrete ticks
// driven by a cooling alpha, in the manner of a velocity Verlet force layout.
//
// A Simulation is not safe for concurrent use. The graph handle that owns it
// serialises every call on its own event loop.
package physics

import (
	"math"

	"github.com/TFMV/dirgraph/models"
)

// Force is one contribution to node velocities.
type Force interface {
	// Initialize is called whenever the node set changes.
	Initialize(nodes []*models.Node, jiggle func() float64)
	// Apply adds the force's effect for the current alpha to node velocities.
	Apply(alpha float64)
	// Name identifies the force.
	Name() string
}

// Config holds simulation parameters.
type Config struct {
	Width         float64 // Layout width, used for placement and centering
	Height        float64 // Layout height
	Charge        float64 // Many-body strength, negative repels
	ChargeMaxDist float64 // Ignore charge beyond this distance, 0 means unbounded
	LinkDistance  float64 // Rest length of links
	AlphaMin      float64 // Simulation stops once alpha falls below this
	AlphaDecay    float64 // Fraction of the remaining distance to the target covered per tick
	VelocityDecay float64 // Fraction of velocity lost per tick
	Seed          int64   // Seed for the jiggle noise field
}

// DefaultConfig returns the parameters of the directed graph widget.
func DefaultConfig() Config {
	alphaMin := 0.001
	return Config{
		Width:         960,
		Height:        600,
		Charge:        -20,
		LinkDistance:  60,
		AlphaMin:      alphaMin,
		AlphaDecay:    AlphaDecayFor(alphaMin),
		VelocityDecay: 0.6,
		Seed:          1,
	}
}

// AlphaDecayFor returns the decay that cools alpha from 1 to alphaMin in
// 300 ticks.
func AlphaDecayFor(alphaMin float64) float64 {
	return 1 - math.Pow(alphaMin, 1.0/300)
}

const (
	initialRadius = 10.0
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// Simulation integrates node positions under a set of forces.
type Simulation struct {
	nodes       []*models.Node
	forces      []Force
	link        *LinkForce
	alpha       float64
	alphaMin    float64
	alphaDecay  float64
	alphaTarget float64
	friction    float64 // 1 - VelocityDecay
	originX     float64
	originY     float64
	ticks       int
	jiggle      *Jiggler
}

// NewSimulation creates a simulation with the charge, link and center
// forces configured from cfg.
func NewSimulation(cfg Config) *Simulation {
	s := &Simulation{
		nodes:      []*models.Node{},
		alpha:      1,
		alphaMin:   cfg.AlphaMin,
		alphaDecay: cfg.AlphaDecay,
		friction:   1 - cfg.VelocityDecay,
		originX:    cfg.Width / 2,
		originY:    cfg.Height / 2,
		jiggle:     NewJiggler(cfg.Seed),
	}

	s.link = NewLinkForce(cfg.LinkDistance)
	s.forces = []Force{
		NewManyBodyForce(cfg.Charge, cfg.ChargeMaxDist),
		NewCenterForce(cfg.Width/2, cfg.Height/2),
		s.link,
	}
	return s
}

// SetNodes replaces the simulated node set.
// Nodes without a position are placed on a phyllotaxis spiral around the
// layout center. The previous slice is released.
func (s *Simulation) SetNodes(nodes []*models.Node) {
	if nodes == nil {
		nodes = []*models.Node{}
	}
	s.nodes = nodes

	for i, n := range nodes {
		n.Index = i
		if n.FX != nil {
			n.X = *n.FX
		}
		if n.FY != nil {
			n.Y = *n.FY
		}
		if !n.HasPosition() {
			radius := initialRadius * math.Sqrt(0.5+float64(i))
			angle := float64(i) * initialAngle
			n.X = s.originX + radius*math.Cos(angle)
			n.Y = s.originY + radius*math.Sin(angle)
		}
		if math.IsNaN(n.VX) || math.IsNaN(n.VY) {
			n.VX, n.VY = 0, 0
		}
	}

	for _, f := range s.forces {
		f.Initialize(nodes, s.jiggle.Next)
	}
}

// SetLinks replaces the edges pulled together by the link force.
// Edges must already be resolved against the current node set.
func (s *Simulation) SetLinks(edges []*models.Edge) {
	s.link.SetLinks(edges)
	s.link.Initialize(s.nodes, s.jiggle.Next)
}

// Nodes returns the simulated nodes.
func (s *Simulation) Nodes() []*models.Node {
	return s.nodes
}

// Force returns the force registered under name, or nil.
func (s *Simulation) Force(name string) Force {
	for _, f := range s.forces {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 { return s.alpha }

// SetAlpha sets the current alpha.
func (s *Simulation) SetAlpha(alpha float64) { s.alpha = clamp01(alpha) }

// AlphaTarget returns the alpha the simulation decays towards.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// SetAlphaTarget sets the alpha the simulation decays towards. A target
// above AlphaMin keeps the simulation running.
func (s *Simulation) SetAlphaTarget(target float64) { s.alphaTarget = clamp01(target) }

// Ticks returns the number of steps taken since creation.
func (s *Simulation) Ticks() int { return s.ticks }

// Reheat raises the alpha target. Alpha climbs towards it on the following
// ticks, so a cooled simulation starts moving again.
func (s *Simulation) Reheat(target float64) {
	s.SetAlphaTarget(target)
}

// Active reports whether the simulation still has energy to spend, or is
// being held warm by its alpha target.
func (s *Simulation) Active() bool {
	return s.alpha >= s.alphaMin || s.alphaTarget >= s.alphaMin
}

// Step performs one tick of the simulation.
// Returns true once the simulation has cooled.
func (s *Simulation) Step() bool {
	s.alpha += (s.alphaTarget - s.alpha) * s.alphaDecay

	for _, f := range s.forces {
		f.Apply(s.alpha)
	}

	for _, n := range s.nodes {
		if n.FX == nil {
			n.VX *= s.friction
			n.X += n.VX
		} else {
			n.X = *n.FX
			n.VX = 0
		}
		if n.FY == nil {
			n.VY *= s.friction
			n.Y += n.VY
		} else {
			n.Y = *n.FY
			n.VY = 0
		}
	}

	s.ticks++
	return !s.Active()
}

// Settle steps the simulation until it cools or maxTicks is reached.
// Returns the number of ticks taken.
func (s *Simulation) Settle(maxTicks int) int {
	n := 0
	for n < maxTicks && s.Active() {
		s.Step()
		n++
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
