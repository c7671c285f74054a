package render

import (
	"fmt"
	"time"

	"github.com/TFMV/dirgraph/models"
)

// Kind is the visual category of a layer.
type Kind string

// Layer kinds
const (
	KindLink  Kind = "link"
	KindNode  Kind = "node"
	KindLabel Kind = "label"
)

// State is the lifecycle state of a bound element.
type State int

// Element lifecycle states
const (
	Entering State = iota
	Live
	Exiting
)

func (s State) String() string {
	switch s {
	case Entering:
		return "entering"
	case Live:
		return "live"
	case Exiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "entering":
		*s = Entering
	case "live":
		*s = Live
	case "exiting":
		*s = Exiting
	default:
		return fmt.Errorf("unknown element state %q", text)
	}
	return nil
}

// Element is one visual element bound to a datum.
type Element struct {
	Key     string
	Kind    Kind
	Datum   any // *models.Node for nodes and labels, *models.Edge for links
	State   State
	Opacity float64
	Scale   float64

	// Position attributes written by Scene.Apply
	X, Y float64
	R    float64
	Path string
	Text string

	born  time.Time
	dying time.Time
}

// Node returns the bound node, or nil for links.
func (e *Element) Node() *models.Node {
	n, _ := e.Datum.(*models.Node)
	return n
}

// Edge returns the bound edge, or nil for nodes and labels.
func (e *Element) Edge() *models.Edge {
	l, _ := e.Datum.(*models.Edge)
	return l
}

// Join is the outcome of binding a data array to a layer.
type Join struct {
	Enter      []string `json:"enter"`
	Update     []string `json:"update"`
	Exit       []string `json:"exit"`
	Duplicates int      `json:"duplicates"`
}

// Layer holds the elements of one visual category, indexed by key.
type Layer struct {
	kind       Kind
	transition time.Duration
	order      []string
	index      map[string]*Element
	exiting    []*Element
}

// NewLayer creates an empty layer. A zero transition makes entering elements
// visible at once and removes exiting elements immediately.
func NewLayer(kind Kind, transition time.Duration) *Layer {
	return &Layer{
		kind:       kind,
		transition: transition,
		index:      make(map[string]*Element),
	}
}

// Reconcile binds items to the layer by key and returns the keyed join.
//
// Items whose key is already bound update that element in place and swap its
// datum. New keys enter as new elements. Bound keys missing from items exit:
// they leave the index at once, so each one is reported exactly once, and
// fade out separately when the layer has a transition. Later items with a
// key already seen in the same call are dropped.
func Reconcile[T any](l *Layer, items []T, key func(T) string, now time.Time) Join {
	var join Join
	seen := make(map[string]bool, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		k := key(item)
		if seen[k] {
			join.Duplicates++
			continue
		}
		seen[k] = true
		order = append(order, k)

		if el, ok := l.index[k]; ok {
			el.Datum = item
			join.Update = append(join.Update, k)
			continue
		}

		el := &Element{Key: k, Kind: l.kind, Datum: item, born: now}
		if l.transition > 0 {
			el.State = Entering
		} else {
			el.State, el.Opacity, el.Scale = Live, 1, 1
		}
		l.index[k] = el
		join.Enter = append(join.Enter, k)
	}

	for _, k := range l.order {
		if seen[k] {
			continue
		}
		el := l.index[k]
		delete(l.index, k)
		join.Exit = append(join.Exit, k)

		if l.transition > 0 {
			el.State = Exiting
			el.dying = now
			l.exiting = append(l.exiting, el)
		}
	}

	l.order = order
	return join
}

// Advance moves entering and exiting elements along their transitions.
// Returns true while any transition is still running.
func (l *Layer) Advance(now time.Time) bool {
	pending := false

	for _, k := range l.order {
		el := l.index[k]
		if el.State != Entering {
			continue
		}
		p := l.progress(el.born, now)
		el.Opacity, el.Scale = p, p
		if p >= 1 {
			el.State = Live
		} else {
			pending = true
		}
	}

	kept := l.exiting[:0]
	for _, el := range l.exiting {
		p := l.progress(el.dying, now)
		if p >= 1 {
			continue
		}
		el.Opacity = 1 - p
		if l.kind == KindNode {
			el.Scale = 1 - p
		}
		kept = append(kept, el)
	}
	for i := len(kept); i < len(l.exiting); i++ {
		l.exiting[i] = nil
	}
	l.exiting = kept

	return pending || len(l.exiting) > 0
}

func (l *Layer) progress(start, now time.Time) float64 {
	if l.transition <= 0 {
		return 1
	}
	p := float64(now.Sub(start)) / float64(l.transition)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Kind returns the layer's category.
func (l *Layer) Kind() Kind { return l.kind }

// Get returns the bound element for key.
func (l *Layer) Get(key string) (*Element, bool) {
	el, ok := l.index[key]
	return el, ok
}

// Keys returns bound keys in data order.
func (l *Layer) Keys() []string {
	return append([]string(nil), l.order...)
}

// Len returns the number of bound elements.
func (l *Layer) Len() int { return len(l.order) }

// Elements returns bound elements in data order followed by exiting ones.
func (l *Layer) Elements() []*Element {
	out := make([]*Element, 0, len(l.order)+len(l.exiting))
	for _, k := range l.order {
		out = append(out, l.index[k])
	}
	return append(out, l.exiting...)
}

// Exiting returns elements still fading out.
func (l *Layer) Exiting() []*Element {
	return append([]*Element(nil), l.exiting...)
}
