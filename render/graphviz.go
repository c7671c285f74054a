package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// GraphvizRenderer renders the scene through Graphviz. The neato engine
// keeps every node at its pinned simulated position and routes the edges.
type GraphvizRenderer struct{}

// Name returns the name of the renderer
func (r *GraphvizRenderer) Name() string {
	return "Graphviz Renderer"
}

// Description returns a description of the renderer
func (r *GraphvizRenderer) Description() string {
	return "Renders the laid out graph to SVG with Graphviz, for static export"
}

// Render creates a Graphviz SVG of the scene
func (r *GraphvizRenderer) Render(scene *Scene, options *OutputOptions) ([]byte, error) {
	return RenderDOT(context.Background(), ToDOT(scene, options))
}

// RenderDOT renders DOT source to SVG with the neato engine.
func RenderDOT(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	gv.SetLayout(graphviz.NEATO)

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
