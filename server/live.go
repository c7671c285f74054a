package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/TFMV/dirgraph/graph"
	"github.com/TFMV/dirgraph/render"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Drag message types sent by the client.
const (
	MsgDragStart = "dragstart"
	MsgDrag      = "drag"
	MsgDragEnd   = "dragend"
)

// DragMessage is a pointer event sent by the client.
type DragMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// handleLive streams frames to a websocket client and applies the drags it
// sends back.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graph(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	frames, unsubscribe := g.Subscribe()
	defer unsubscribe()

	var closeOnce sync.Once
	done := make(chan struct{})
	cleanup := func() {
		closeOnce.Do(func() {
			close(done)
			conn.Close()
		})
	}
	defer cleanup()

	s.logger.Debug("live session opened", "id", g.ID(), "remote", r.RemoteAddr)
	go func() {
		defer cleanup()
		s.readDrags(conn, g)
	}()

	s.writeFrames(conn, g.Frame(), frames, done)
	s.logger.Debug("live session closed", "id", g.ID(), "remote", r.RemoteAddr)
}

// writeFrames sends the initial frame, then every published frame, with
// periodic pings. It returns when the connection fails or done closes.
func (s *Server) writeFrames(conn *websocket.Conn, initial render.Frame, frames <-chan render.Frame, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(f render.Frame) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			s.logger.Debug("frame write failed", "err", err)
			return false
		}
		return true
	}

	if !write(initial) {
		return
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(f) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readDrags applies client drag messages until the connection closes, then
// releases every drag the session still holds.
func (s *Server) readDrags(conn *websocket.Conn, g *graph.Graph) {
	held := make(map[string]bool)
	defer func() {
		for id := range held {
			if err := g.DragEnd(id); err != nil {
				s.logger.Debug("release drag", "id", g.ID(), "node", id, "err", err)
			}
		}
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("live session read failed", "id", g.ID(), "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg DragMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("bad live message", "id", g.ID(), "err", err)
			continue
		}
		if err := applyDrag(g, msg); err != nil {
			s.logger.Warn("drag rejected", "id", g.ID(), "type", msg.Type, "node", msg.ID, "err", err)
			continue
		}
		if msg.Type == MsgDragEnd {
			delete(held, msg.ID)
		} else {
			held[msg.ID] = true
		}
	}
}

func applyDrag(g *graph.Graph, msg DragMessage) error {
	switch msg.Type {
	case MsgDragStart:
		return g.DragStart(msg.ID)
	case MsgDrag:
		return g.DragMove(msg.ID, msg.X, msg.Y)
	case MsgDragEnd:
		return g.DragEnd(msg.ID)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
