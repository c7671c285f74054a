// Package render turns a graph snapshot into visual elements.
//
// A Scene keeps three keyed layers (links, nodes and labels) that are
// reconciled against every new snapshot so that unchanged elements persist,
// new ones enter and missing ones exit. Renderers serialise a scene as SVG,
// JSON, Graphviz DOT or Graphviz-rendered SVG.
package render

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math"
	"strings"
	"time"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string // Output format (svg, json, dot, graphviz)
	Background string // Background color, empty for transparent
	Timestamp  bool   // Include a timestamp in the output
	ShowLabels bool   // Draw node labels
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render serialises the scene using the provided options
	Render(scene *Scene, options *OutputOptions) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		ShowLabels: true,
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "svg", "":
		return &SVGRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "dot":
		return &DOTRenderer{}, nil
	case "graphviz":
		return &GraphvizRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the scene as an SVG document with arc links, arrow markers, nodes and labels"
}

// Render creates an SVG representation of the scene
func (r *SVGRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	if options == nil {
		options = NewDefaultOptions("svg")
	}

	var buf bytes.Buffer
	w, h := formatNumber(scene.Canvas.Width), formatNumber(scene.Canvas.Height)
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n", w, h, w, h)

	if options.Background != "" {
		fmt.Fprintf(&buf, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", escape(options.Background))
	}

	m := scene.Marker
	fmt.Fprintf(&buf, `<defs><marker id="%s" viewBox="%s" refX="%s" refY="%s" markerWidth="%s" markerHeight="%s" orient="auto"><path d="%s"/></marker></defs>`+"\n",
		escape(m.ID), m.ViewBox, formatNumber(m.RefX), formatNumber(m.RefY),
		formatNumber(m.Width), formatNumber(m.Height), m.Path)

	// Group order matches the live widget: nodes, then links, then labels.
	buf.WriteString(`<g class="nodes dirGraph">` + "\n")
	for _, el := range scene.Nodes.Elements() {
		fmt.Fprintf(&buf, `<circle class="node %s" data-key="%s" cx="%s" cy="%s" r="%s"%s/>`+"\n",
			el.State, escape(el.Key), formatNumber(finite(el.X)), formatNumber(finite(el.Y)),
			formatNumber(el.R), opacityAttr(el.Opacity))
	}
	buf.WriteString("</g>\n")

	buf.WriteString(`<g class="links dirGraph">` + "\n")
	for _, el := range scene.Links.Elements() {
		if el.Path == "" {
			continue
		}
		e := el.Edge()
		fmt.Fprintf(&buf, `<path class="link %s" data-source="%s" data-target="%s" d="%s" fill="none" marker-end="url(#%s)"%s/>`+"\n",
			el.State, escape(e.Source), escape(e.Target), el.Path, escape(m.ID), opacityAttr(el.Opacity))
	}
	buf.WriteString("</g>\n")

	if options.ShowLabels {
		buf.WriteString(`<g class="texts dirGraph">` + "\n")
		for _, el := range scene.Labels.Elements() {
			fmt.Fprintf(&buf, `<text x="%s" y="%s" dx="%s" dy="%s"%s>%s</text>`+"\n",
				formatNumber(finite(el.X)), formatNumber(finite(el.Y)),
				formatNumber(scene.Style.LabelDX), scene.Style.LabelDY,
				opacityAttr(el.Opacity), escape(el.Text))
		}
		buf.WriteString("</g>\n")
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%s" font-size="8" fill="#808080">%s</text>`+"\n",
			formatNumber(scene.Canvas.Height-5), time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the laid out graph as JSON for machine consumption or custom front ends"
}

type jsonNode struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Pinned bool     `json:"pinned"`
}

type jsonLink struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Value  *float64 `json:"value"` // null when the input value was not numeric
	Path   string   `json:"path"`
}

type jsonGraph struct {
	Canvas   Canvas         `json:"canvas"`
	Nodes    []jsonNode     `json:"nodes"`
	Links    []jsonLink     `json:"links"`
	Metadata map[string]any `json:"metadata"`
}

// Render creates a JSON representation of the scene
func (r *JSONRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	doc := jsonGraph{
		Canvas: scene.Canvas,
		Nodes:  make([]jsonNode, 0, scene.Nodes.Len()),
		Links:  make([]jsonLink, 0, scene.Links.Len()),
		Metadata: map[string]any{
			"nodeCount": scene.Nodes.Len(),
			"linkCount": scene.Links.Len(),
		},
	}
	if options != nil && options.Timestamp {
		doc.Metadata["timestamp"] = time.Now().Format(time.RFC3339)
	}

	for _, k := range scene.Nodes.Keys() {
		el, _ := scene.Nodes.Get(k)
		n := el.Node()
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:     n.ID,
			Label:  n.Label,
			X:      number(n.X),
			Y:      number(n.Y),
			Pinned: n.Pinned(),
		})
	}

	for _, k := range scene.Links.Keys() {
		el, _ := scene.Links.Get(k)
		e := el.Edge()
		doc.Links = append(doc.Links, jsonLink{
			Source: e.Source,
			Target: e.Target,
			Value:  number(e.Value),
			Path:   el.Path,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders the graph in Graphviz DOT format with node positions pinned to the layout"
}

// Render creates a DOT representation of the scene
func (r *DOTRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	return []byte(ToDOT(scene, options)), nil
}

// ToDOT converts a scene to DOT. Node positions are pinned in points with
// the y axis flipped, so neato reproduces the simulated layout.
func ToDOT(scene *Scene, options *OutputOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")

	bg := "transparent"
	if options != nil && options.Background != "" {
		bg = options.Background
	}
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, inputscale=72, splines=curved, overlap=true];\n", bg)
	fmt.Fprintf(&buf, "  node [shape=circle, fixedsize=true, width=%s, label=\"\", xlabel=\"\"];\n",
		formatNumber(2*scene.Style.NodeRadius/72))
	buf.WriteString("  edge [arrowsize=0.6];\n\n")

	for _, k := range scene.Nodes.Keys() {
		el, _ := scene.Nodes.Get(k)
		n := el.Node()
		label := ""
		if options == nil || options.ShowLabels {
			label = n.Label
		}
		fmt.Fprintf(&buf, "  %q [xlabel=%q, pos=\"%s,%s!\"];\n",
			n.ID, label, formatNumber(finite(n.X)), formatNumber(scene.Canvas.Height-finite(n.Y)))
	}

	buf.WriteString("\n")
	for _, k := range scene.Links.Keys() {
		el, _ := scene.Links.Get(k)
		e := el.Edge()
		if !(e.Value > 0) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [weight=%s];\n", e.Source, e.Target, formatNumber(e.Value))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// number returns nil for values JSON cannot represent.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func opacityAttr(o float64) string {
	if o >= 1 {
		return ""
	}
	return fmt.Sprintf(` opacity="%s"`, formatNumber(math.Round(o*1000)/1000))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
