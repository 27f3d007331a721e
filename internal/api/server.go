package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

const defaultShutdownTimeout = 5 * time.Second

// StatusSource is the read-only view of a pool the server reports on.
type StatusSource interface {
	ID() string
	Name() string
	Running() bool
	NumWorkers() int
	Workers() int
	Alive() int
	Busy() int
	QueueSize() int
}

// Server exposes pool status, metrics and a live event stream over HTTP.
type Server struct {
	addr     string
	pool     StatusSource
	bus      *events.Bus
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	ShutdownTimeout time.Duration
	StatusInterval  time.Duration

	server *http.Server
}

// NewServer creates a server for pool. bus, m and gatherer may be nil, in
// which case the matching routes report nothing.
func NewServer(addr string, pool StatusSource, bus *events.Bus, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{
		addr:            addr,
		pool:            pool,
		bus:             bus,
		metrics:         m,
		gatherer:        gatherer,
		ShutdownTimeout: defaultShutdownTimeout,
		StatusInterval:  time.Second,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Start serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	logger.Info("", "API server listening on http://%s", s.addr)

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StatusResponse describes the pool.
type StatusResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Running    bool   `json:"running"`
	NumWorkers int    `json:"num_workers"`
	Workers    int    `json:"workers"`
	Alive      int    `json:"alive"`
	Busy       int    `json:"busy"`
	Queued     int    `json:"queued"`
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		ID:         s.pool.ID(),
		Name:       s.pool.Name(),
		Running:    s.pool.Running(),
		NumWorkers: s.pool.NumWorkers(),
		Workers:    s.pool.Workers(),
		Alive:      s.pool.Alive(),
		Busy:       s.pool.Busy(),
		Queued:     s.pool.QueueSize(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.metrics == nil {
		s.writeJSON(w, metrics.Snapshot{Pool: s.pool.Name()})
		return
	}
	s.writeJSON(w, s.metrics.Snapshot(s.pool.Name()))
}

// Message is one frame on the /ws stream.
type Message struct {
	Type   string          `json:"type"`
	Event  *events.Event   `json:"event,omitempty"`
	Status *StatusResponse `json:"status,omitempty"`
}

// handleWebSocket streams pool events and a periodic status frame until
// the client disconnects.
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()

	var sub <-chan events.Event
	if s.bus != nil {
		sub = s.bus.Subscribe()
		defer s.bus.Unsubscribe(sub)
	}

	// the reader only exists to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg string
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()

	for {
		var msg Message
		select {
		case <-gone:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			msg = Message{Type: "event", Event: &ev}
		case <-ticker.C:
			status := s.status()
			msg = Message{Type: "status", Status: &status}
		}

		if err := websocket.JSON.Send(ws, msg); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
