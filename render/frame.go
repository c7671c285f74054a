package render

import (
	"math"
)

// Frame is the state of every element after one tick, as sent to live clients.
type Frame struct {
	Seq    uint64       `json:"seq"`
	Alpha  float64      `json:"alpha"`
	Canvas Canvas       `json:"canvas"`
	Links  []LinkFrame  `json:"links"`
	Nodes  []NodeFrame  `json:"nodes"`
	Labels []LabelFrame `json:"labels"`
}

// LinkFrame is one link path.
type LinkFrame struct {
	Key     string  `json:"key"`
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	D       string  `json:"d"`
	Opacity float64 `json:"opacity"`
	State   State   `json:"state"`
}

// NodeFrame is one node circle.
type NodeFrame struct {
	ID      string  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	R       float64 `json:"r"`
	Opacity float64 `json:"opacity"`
	Pinned  bool    `json:"pinned"`
	State   State   `json:"state"`
}

// LabelFrame is one node label.
type LabelFrame struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Opacity float64 `json:"opacity"`
	State   State   `json:"state"`
}

// Frame captures the scene's current element state.
func (s *Scene) Frame(seq uint64, alpha float64) Frame {
	f := Frame{
		Seq:    seq,
		Alpha:  alpha,
		Canvas: s.Canvas,
		Links:  make([]LinkFrame, 0, s.Links.Len()),
		Nodes:  make([]NodeFrame, 0, s.Nodes.Len()),
		Labels: make([]LabelFrame, 0, s.Labels.Len()),
	}

	for _, el := range s.Links.Elements() {
		e := el.Edge()
		f.Links = append(f.Links, LinkFrame{
			Key:     el.Key,
			Source:  e.Source,
			Target:  e.Target,
			D:       el.Path,
			Opacity: el.Opacity,
			State:   el.State,
		})
	}
	for _, el := range s.Nodes.Elements() {
		f.Nodes = append(f.Nodes, NodeFrame{
			ID:      el.Key,
			X:       finite(el.X),
			Y:       finite(el.Y),
			R:       el.R,
			Opacity: el.Opacity,
			Pinned:  el.Node().Pinned(),
			State:   el.State,
		})
	}
	for _, el := range s.Labels.Elements() {
		f.Labels = append(f.Labels, LabelFrame{
			ID:      el.Key,
			Text:    el.Text,
			X:       finite(el.X),
			Y:       finite(el.Y),
			Opacity: el.Opacity,
			State:   el.State,
		})
	}

	return f
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
