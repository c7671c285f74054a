package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/dirgraph/graph"
	"github.com/TFMV/dirgraph/render"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 600.0, cfg.Canvas.Height)
	assert.Equal(t, "parent", cfg.Canvas.Size)
	assert.Equal(t, -20.0, cfg.Forces.Charge)
	assert.Equal(t, 60.0, cfg.Forces.LinkDistance)
	assert.Equal(t, 10.0, cfg.Scene.NodeRadius)
	assert.Equal(t, 0.7, cfg.Simulation.Reheat)
	assert.Equal(t, 1.5, cfg.Scene.ArcScale)
	assert.Equal(t, ".35em", cfg.Scene.LabelDY)
	require.NoError(t, cfg.Validate())
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	assert.Equal(t, "/tmp/test-xdg/dirgraph", ConfigDir())
	assert.Equal(t, "/tmp/test-xdg/dirgraph/config.toml", DefaultPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".config", "dirgraph"), ConfigDir())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirgraph.toml")
	data := `
[canvas]
selector = "#main"
size = "viewport"

[forces]
charge = -40

[simulation]
tick_interval = "32ms"

[scene]
transition = "250ms"

[[page.containers]]
selector = "#main"
width = 500
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "#main", cfg.Canvas.Selector)
	assert.Equal(t, "viewport", cfg.Canvas.Size)
	assert.Equal(t, -40.0, cfg.Forces.Charge)
	assert.Equal(t, 60.0, cfg.Forces.LinkDistance, "unset keys keep their defaults")
	assert.Equal(t, 32*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Scene.Transition)
	require.Len(t, cfg.Page.Containers, 1)
	assert.Equal(t, 500.0, cfg.Page.Containers[0].Width)
}

func TestLoadMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "syntax", data: "[canvas\n"},
		{name: "size mode", data: "[canvas]\nsize = \"fullscreen\"\n"},
		{name: "height", data: "[canvas]\nheight = -1\n"},
		{name: "reheat", data: "[simulation]\nreheat = 2\n"},
		{name: "arc scale", data: "[scene]\narc_scale = 0.0\n"},
		{name: "loop radius", data: "[scene]\nloop_radius = -4.0\n"},
		{name: "level", data: "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Forces.LinkDistance = 80
	cfg.Scene.Transition = time.Second

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))
	assert.Contains(t, buf.String(), "[forces]")
	assert.Contains(t, buf.String(), "link_distance = 60.0")
}

func TestGraphOptions(t *testing.T) {
	cfg := Default()
	cfg.Scene.NodeRadius = 6
	cfg.Canvas.Height = 400

	g, err := graph.New(cfg.NewPage(), "#graph", cfg.GraphOptions(log.Default())...)
	require.NoError(t, err)
	assert.Equal(t, render.Canvas{Selector: "#graph", Width: 960, Height: 400}, g.Canvas())

	p := cfg.Physics()
	assert.Equal(t, -20.0, p.Charge)
	assert.InDelta(t, 0.0228, p.AlphaDecay, 1e-4)
	assert.Equal(t, 6.0, cfg.Style().NodeRadius)
}

func TestLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, log.InfoLevel, cfg.Level())
	cfg.Log.Level = "debug"
	assert.Equal(t, log.DebugLevel, cfg.Level())
}
