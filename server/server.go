// Package server hosts dirgraph widgets over HTTP.
//
// Graphs are created against the configured page, fed edge lists through a
// REST API and streamed to browsers as tick frames over a websocket, which
// also carries pointer drags back to the graph.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/dirgraph/graph"
	"github.com/TFMV/dirgraph/ingest"
	"github.com/TFMV/dirgraph/models"
	"github.com/TFMV/dirgraph/render"
)

// ErrGraphNotFound is returned for an unknown graph id.
var ErrGraphNotFound = errors.New("graph not found")

const maxBodySize = 10 << 20 // 10 MB

// Config for the server
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type entry struct {
	graph    *graph.Graph
	selector string
	cancel   context.CancelFunc
}

// Server is the graph registry and its HTTP front end.
type Server struct {
	cfg      Config
	page     *render.Page
	opts     []graph.Option
	logger   *log.Logger
	router   chi.Router
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	graphs   map[string]*entry
	fallback string
	loops    *errgroup.Group
	loopCtx  context.Context
}

// New creates a server for page. Graph options apply to every graph it
// creates.
func New(cfg Config, page *render.Page, logger *log.Logger, opts ...graph.Option) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		cfg:    cfg,
		page:   page,
		opts:   append([]graph.Option{graph.WithLogger(logger)}, opts...),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		graphs: make(map[string]*entry),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Route("/api/graphs", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleRender("json", "application/json"))
			r.Delete("/", s.handleDelete)
			r.Get("/svg", s.handleRender("svg", "image/svg+xml"))
			r.Get("/dot", s.handleRender("dot", "text/vnd.graphviz"))
			r.Post("/edges", s.handleEdges)
			r.Post("/preview", s.handlePreview)
			r.Get("/nodes/{node}", s.handleNode)
			r.Get("/ws", s.handleLive)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CreateGraph attaches a new graph to selector and starts its tick loop
// once the server is running. The first graph becomes the one shown by the
// host page.
func (s *Server) CreateGraph(selector string) (*graph.Graph, error) {
	g, err := graph.New(s.page, selector, s.opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := &entry{graph: g, selector: selector}
	s.graphs[g.ID()] = e
	if s.fallback == "" {
		s.fallback = g.ID()
	}
	if s.loops != nil {
		s.startLocked(e)
	}

	s.logger.Info("graph created", "id", g.ID(), "selector", selector)
	return g, nil
}

// Graph returns the graph with id.
func (s *Server) Graph(id string) (*graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	return e.graph, nil
}

// RemoveGraph stops and forgets the graph with id.
func (s *Server) RemoveGraph(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.graphs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, id)
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(s.graphs, id)
	if s.fallback == id {
		s.fallback = ""
	}
	s.logger.Info("graph removed", "id", id)
	return nil
}

func (s *Server) startLocked(e *entry) {
	ctx, cancel := context.WithCancel(s.loopCtx)
	e.cancel = cancel
	g := e.graph
	s.loops.Go(func() error {
		if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("graph %s: %w", g.ID(), err)
		}
		return nil
	})
}

// Run serves HTTP and drives every graph's tick loop until ctx is
// cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.loops, s.loopCtx = group, ctx
	for _, e := range s.graphs {
		s.startLocked(e)
	}
	s.mu.Unlock()

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	group.Go(func() error {
		s.logger.Info("starting server", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type graphInfo struct {
	ID       string `json:"id"`
	Selector string `json:"selector"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
}

// handleList lists the registered graphs
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	infos := make([]graphInfo, 0, len(s.graphs))
	for id, e := range s.graphs {
		nodes, edges := e.graph.Snapshot().Len()
		infos = append(infos, graphInfo{ID: id, Selector: e.selector, Nodes: nodes, Edges: edges})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	writeJSON(w, http.StatusOK, infos)
}

// handleCreate attaches a new graph to the selector in the request body
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selector string `json:"selector"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	g, err := s.CreateGraph(req.Selector)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": g.ID()})
}

// handleDelete removes a graph
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.RemoveGraph(chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRender serialises a graph in the given format
func (s *Server) handleRender(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := s.Graph(chi.URLParam(r, "id"))
		if err != nil {
			s.writeErr(w, err)
			return
		}

		options := render.NewDefaultOptions(format)
		options.Background = r.URL.Query().Get("background")
		options.Timestamp = r.URL.Query().Get("timestamp") == "true"

		output, err := g.Render(format, options)
		if err != nil {
			s.logger.Error("render failed", "id", g.ID(), "format", format, "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(output)
	}
}

func (s *Server) readEdges(r *http.Request) ([]*models.Edge, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = ingest.FormatFromContentType(r.Header.Get("Content-Type"))
	}
	processor, err := ingest.GetProcessor(format)
	if err != nil {
		return nil, err
	}
	return processor.ProcessData(body)
}

// handleEdges replaces a graph's edge list
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graph(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	edges, err := s.readEdges(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	changes, err := g.Update(edges)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// handlePreview reports the changes an edge list would cause
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graph(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	edges, err := s.readEdges(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	changes, err := g.Preview(edges)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

type nodeView struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Pinned bool     `json:"pinned"`
}

type edgeView struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Value  *float64 `json:"value"`
}

// handleNode returns one node and its incident edges
func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	g, err := s.Graph(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	id := chi.URLParam(r, "node")
	n, in, out, err := g.Node(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	neighbors, err := g.Neighbors(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"node": nodeView{
			ID:     n.ID,
			Label:  n.Label,
			X:      number(n.X),
			Y:      number(n.Y),
			Pinned: n.Pinned(),
		},
		"incoming":  edgeViews(in),
		"outgoing":  edgeViews(out),
		"neighbors": neighbors,
	})
}

func edgeViews(edges []*models.Edge) []edgeView {
	out := make([]edgeView, 0, len(edges))
	for _, e := range edges {
		out = append(out, edgeView{Source: e.Source, Target: e.Target, Value: number(e.Value)})
	}
	return out
}

func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// writeErr maps domain errors to HTTP status codes.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": err.Error(),
			"index": verr.Index,
			"field": verr.Field,
		})
	case errors.Is(err, ErrGraphNotFound),
		errors.Is(err, render.ErrContainerNotFound),
		errors.Is(err, models.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Warn("request failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
