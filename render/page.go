package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrContainerNotFound is returned when a selector matches no container.
var ErrContainerNotFound = errors.New("container not found")

// SizeMode selects how a canvas is sized.
type SizeMode string

// Canvas sizing modes
const (
	SizeParent   SizeMode = "parent"   // Container width, fixed height
	SizeViewport SizeMode = "viewport" // Full viewport
)

// DefaultHeight is the canvas height in parent mode.
const DefaultHeight = 600.0

// Container is a host element a graph can attach to.
type Container struct {
	Selector string  `toml:"selector" json:"selector"`
	Width    float64 `toml:"width" json:"width"` // Measured width in pixels
}

// Canvas is the drawable surface attached to a container.
type Canvas struct {
	Selector string  `json:"selector"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// Page describes the host page: its viewport and the containers on it.
type Page struct {
	ViewportWidth  float64
	ViewportHeight float64

	mu         sync.RWMutex
	containers map[string]Container
}

// NewPage creates a page with the given viewport and containers.
func NewPage(viewportWidth, viewportHeight float64, containers ...Container) *Page {
	p := &Page{
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
		containers:     make(map[string]Container),
	}
	for _, c := range containers {
		p.Add(c)
	}
	return p
}

// Add registers or replaces a container.
func (p *Page) Add(c Container) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.containers[c.Selector] = c
}

// Selectors returns the registered selectors in sorted order.
func (p *Page) Selectors() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.containers))
	for s := range p.containers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Attach sizes a canvas for selector. In parent mode the canvas takes the
// container width and the given height (DefaultHeight when zero); in
// viewport mode it fills the viewport.
func (p *Page) Attach(selector string, mode SizeMode, height float64) (Canvas, error) {
	p.mu.RLock()
	c, ok := p.containers[selector]
	p.mu.RUnlock()
	if !ok {
		return Canvas{}, fmt.Errorf("%w: %q", ErrContainerNotFound, selector)
	}

	switch mode {
	case SizeParent, "":
		if height <= 0 {
			height = DefaultHeight
		}
		return Canvas{Selector: selector, Width: c.Width, Height: height}, nil
	case SizeViewport:
		return Canvas{Selector: selector, Width: p.ViewportWidth, Height: p.ViewportHeight}, nil
	default:
		return Canvas{}, fmt.Errorf("unsupported size mode: %s", mode)
	}
}
