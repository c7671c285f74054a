package render

import (
	"math"
	"strconv"
	"strings"

	"github.com/TFMV/dirgraph/models"
)

// Arc geometry defaults.
const (
	DefaultArcScale   = 1.5
	DefaultLoopRadius = 12.0
)

// ArcStyle controls the curvature of link paths.
type ArcStyle struct {
	Scale      float64 // Arc radius as a multiple of the endpoint distance
	LoopRadius float64 // Radius of the loop drawn for zero-length links
}

// DefaultArcStyle returns the widget's arc parameters.
func DefaultArcStyle() ArcStyle {
	return ArcStyle{Scale: DefaultArcScale, LoopRadius: DefaultLoopRadius}
}

// ArcRadius returns the arc radius for an edge, or NaN when an endpoint is
// missing or unplaced.
func (s ArcStyle) ArcRadius(e *models.Edge) float64 {
	if !placed(e) {
		return math.NaN()
	}
	dx := e.ToNode.X - e.FromNode.X
	dy := e.ToNode.Y - e.FromNode.Y
	return math.Sqrt(dx*dx+dy*dy) * s.Scale
}

// ArcPath returns the SVG path data of a curved directed link.
// All links bend with the same sweep, so a pair of opposite links between two
// nodes curve apart instead of overlapping. Zero-length links become a closed
// loop above the node. Missing or unplaced endpoints give an empty path.
func (s ArcStyle) ArcPath(e *models.Edge) string {
	if !placed(e) {
		return ""
	}

	sx, sy := e.FromNode.X, e.FromNode.Y
	tx, ty := e.ToNode.X, e.ToNode.Y
	dr := s.ArcRadius(e)

	var b strings.Builder
	if dr == 0 {
		r := s.LoopRadius
		top := sy - 2*r
		b.WriteString("M")
		writePoint(&b, sx, sy)
		b.WriteString("A")
		writePoint(&b, r, r)
		b.WriteString(" 0 1,1 ")
		writePoint(&b, sx, top)
		b.WriteString("A")
		writePoint(&b, r, r)
		b.WriteString(" 0 1,1 ")
		writePoint(&b, sx, sy)
		return b.String()
	}

	b.WriteString("M")
	writePoint(&b, sx, sy)
	b.WriteString("A")
	writePoint(&b, dr, dr)
	b.WriteString(" 0 0,1 ")
	writePoint(&b, tx, ty)
	return b.String()
}

// ArcPath computes a link path with the default style.
func ArcPath(e *models.Edge) string {
	return DefaultArcStyle().ArcPath(e)
}

// ArcRadius computes a link's arc radius with the default style.
func ArcRadius(e *models.Edge) float64 {
	return DefaultArcStyle().ArcRadius(e)
}

func placed(e *models.Edge) bool {
	return e != nil && e.FromNode != nil && e.ToNode != nil &&
		e.FromNode.HasPosition() && e.ToNode.HasPosition()
}

func writePoint(b *strings.Builder, x, y float64) {
	b.WriteString(formatNumber(x))
	b.WriteByte(',')
	b.WriteString(formatNumber(y))
}

// formatNumber writes v in its shortest round-trip form.
func formatNumber(v float64) string {
	if v == 0 {
		return "0" // avoids "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
