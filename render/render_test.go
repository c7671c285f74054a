package render

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/dirgraph/models"
)

func renderedScene() *Scene {
	s := testScene(0)
	sn := snap("a", "b", "b", "c")
	sn.Edges[1].Value = math.NaN()
	sn.Nodes[2].Label = "<c & d>"
	s.Update(sn, epoch)
	s.Apply()
	return s
}

func TestGetRenderer(t *testing.T) {
	for _, format := range []string{"svg", "json", "dot", "graphviz", "SVG"} {
		r, err := GetRenderer(format)
		require.NoError(t, err, format)
		assert.NotEmpty(t, r.Name())
		assert.NotEmpty(t, r.Description())
	}

	_, err := GetRenderer("webgl")
	assert.Error(t, err)
}

func TestSVGRenderer(t *testing.T) {
	out, err := (&SVGRenderer{}).Render(renderedScene(), nil)
	require.NoError(t, err)
	svg := string(out)

	assert.True(t, strings.HasPrefix(svg, "<svg "))
	assert.Contains(t, svg, `width="960" height="600"`)
	assert.Contains(t, svg, `<marker id="end" viewBox="0 -5 10 10" refX="15" refY="-1.5" markerWidth="4" markerHeight="4" orient="auto">`)
	assert.Equal(t, 3, strings.Count(svg, "<circle "))
	assert.Equal(t, 2, strings.Count(svg, `marker-end="url(#end)"`))
	assert.Equal(t, 3, strings.Count(svg, "<text "))
	assert.Contains(t, svg, "&lt;c &amp; d&gt;")
	assert.NotContains(t, svg, "NaN")

	nodes := strings.Index(svg, `class="nodes dirGraph"`)
	links := strings.Index(svg, `class="links dirGraph"`)
	texts := strings.Index(svg, `class="texts dirGraph"`)
	assert.Less(t, nodes, links)
	assert.Less(t, links, texts)
}

func TestSVGRendererWithoutLabels(t *testing.T) {
	opts := NewDefaultOptions("svg")
	opts.ShowLabels = false
	opts.Background = "#fff"

	out, err := (&SVGRenderer{}).Render(renderedScene(), opts)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<text ")
	assert.Contains(t, string(out), `fill="#fff"`)
}

func TestJSONRenderer(t *testing.T) {
	out, err := (&JSONRenderer{}).Render(renderedScene(), nil)
	require.NoError(t, err)

	var doc struct {
		Nodes []struct {
			ID string   `json:"id"`
			X  *float64 `json:"x"`
		} `json:"nodes"`
		Links []struct {
			Source string   `json:"source"`
			Value  *float64 `json:"value"`
			Path   string   `json:"path"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, "a", doc.Nodes[0].ID)
	require.NotNil(t, doc.Nodes[1].X)
	assert.Equal(t, 10.0, *doc.Nodes[1].X)

	require.Len(t, doc.Links, 2)
	require.NotNil(t, doc.Links[0].Value)
	assert.Equal(t, 1.0, *doc.Links[0].Value)
	assert.Nil(t, doc.Links[1].Value)
	assert.NotEmpty(t, doc.Links[0].Path)
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(renderedScene(), NewDefaultOptions("dot"))

	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, `"a" [xlabel="a", pos="0,600!"];`)
	assert.Contains(t, dot, `"b" [xlabel="b", pos="10,580!"];`)
	assert.Contains(t, dot, `"a" -> "b" [weight=1];`)
	assert.Contains(t, dot, `"b" -> "c";`)
}

func TestRenderDOT(t *testing.T) {
	if testing.Short() {
		t.Skip("graphviz runtime start-up is slow")
	}
	out, err := (&GraphvizRenderer{}).Render(renderedScene(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<svg")
}

func TestPageAttach(t *testing.T) {
	p := NewPage(1280, 720, Container{Selector: "#graph", Width: 800})

	c, err := p.Attach("#graph", SizeParent, 0)
	require.NoError(t, err)
	assert.Equal(t, Canvas{Selector: "#graph", Width: 800, Height: DefaultHeight}, c)

	c, err = p.Attach("#graph", SizeViewport, 0)
	require.NoError(t, err)
	assert.Equal(t, 1280.0, c.Width)
	assert.Equal(t, 720.0, c.Height)

	_, err = p.Attach("#missing", SizeParent, 0)
	assert.True(t, errors.Is(err, ErrContainerNotFound))

	_, err = p.Attach("#graph", SizeMode("fullscreen"), 0)
	assert.Error(t, err)

	p.Add(Container{Selector: "#aside", Width: 300})
	assert.Equal(t, []string{"#aside", "#graph"}, p.Selectors())
}

func TestFrameSkipsNonFinite(t *testing.T) {
	s := testScene(0)
	n := models.NewNode("a")
	s.Update(&models.Snapshot{Nodes: []*models.Node{n}}, epoch)
	s.Apply()

	f := s.Frame(1, 1)
	require.Len(t, f.Nodes, 1)
	assert.Zero(t, f.Nodes[0].X)
	_, err := json.Marshal(f)
	assert.NoError(t, err)
}
