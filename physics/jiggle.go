package physics

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// jiggleScale keeps separation offsets far below a pixel.
const jiggleScale = 1e-6

// Jiggler yields tiny non-zero offsets used to separate coincident nodes.
// Offsets are sampled along a line through an OpenSimplex noise field, so a
// given seed always produces the same sequence.
type Jiggler struct {
	noise opensimplex.Noise
	t     float64
}

// NewJiggler creates a jiggler seeded with seed.
func NewJiggler(seed int64) *Jiggler {
	return &Jiggler{noise: opensimplex.New(seed)}
}

// Next returns the next offset. It is never zero.
func (j *Jiggler) Next() float64 {
	j.t += 0.61803398875
	v := j.noise.Eval2(j.t, 0.5)
	if v == 0 {
		v = 0.5
	}
	return v * jiggleScale
}
