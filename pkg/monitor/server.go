package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/bglane/internal/observability"
	"github.com/harun/bglane/pkg/lanes"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// DefaultAddr is used when Config.Addr is empty
const DefaultAddr = "127.0.0.1:7411"

var schedulerEvents = []string{
	lanes.EventSpawned,
	lanes.EventEnqueued,
	lanes.EventStarted,
	lanes.EventCompleted,
	lanes.EventRetired,
	lanes.EventEnabled,
	lanes.EventDisabled,
}

// Config holds monitor configuration
type Config struct {
	Addr          string
	Scheduler     *lanes.Scheduler
	Logger        zerolog.Logger
	SnapshotWidth int
	SourceChars   int
}

// Server exposes the scheduler over HTTP: metrics, health, lane snapshots and
// a websocket stream of scheduler events.
type Server struct {
	addr          string
	scheduler     *lanes.Scheduler
	logger        zerolog.Logger
	snapshotWidth int
	sourceChars   int

	server      *http.Server
	listener    net.Listener
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *EventBroadcaster

	mu             sync.RWMutex
	isShuttingDown bool
	connWG         sync.WaitGroup
}

// New creates a monitor and subscribes it to the scheduler's events
func New(cfg Config) (*Server, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.SnapshotWidth < 1 {
		cfg.SnapshotWidth = 1
	}
	if cfg.SourceChars <= 0 {
		cfg.SourceChars = lanes.DefaultSummaryChars
	}

	logger := cfg.Logger.With().Str("module", "monitor").Logger()
	clients := NewClientRegistry()

	s := &Server{
		addr:          cfg.Addr,
		scheduler:     cfg.Scheduler,
		logger:        logger,
		snapshotWidth: cfg.SnapshotWidth,
		sourceChars:   cfg.SourceChars,
		clients:       clients,
		broadcaster:   NewEventBroadcaster(clients, logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	for _, eventType := range schedulerEvents {
		cfg.Scheduler.On(eventType, s.broadcaster.HandleEvent)
	}

	return s, nil
}

// Handler returns the monitor's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/lanes", s.handleLanes)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting monitor")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Monitor server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes client connections and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.isShuttingDown = true
	s.mu.Unlock()

	s.logger.Info().Msg("Shutting down monitor")

	for _, client := range s.clients.GetAll() {
		client.Close()
	}
	s.connWG.Wait()

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown monitor: %w", err)
	}

	s.logger.Info().Msg("Monitor stopped")
	return nil
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

func (s *Server) handleLanes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := s.snapshotWidth
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.lanesView(n)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode lanes response")
	}
}

func (s *Server) lanesView(n int) LanesResponse {
	resp := LanesResponse{
		State:   s.scheduler.State().String(),
		Pending: s.scheduler.PendingCount(),
		Lanes:   make([]LaneView, 0),
	}
	if lane, ok := s.scheduler.CurrentLane(); ok {
		resp.CurrentLane = lane
	}

	for _, snap := range s.scheduler.SnapshotPending(n) {
		view := LaneView{
			LaneID: snap.LaneID,
			Items:  make([]ItemView, 0, len(snap.Items)),
		}
		for _, item := range snap.Items {
			view.Items = append(view.Items, ItemView{
				ID:          item.ID,
				Summary:     lanes.Summary(item.Source, s.sourceChars),
				SubmittedAt: item.SubmittedAt,
			})
		}
		resp.Lanes = append(resp.Lanes, view)
	}

	return resp
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	if s.isShuttingDown {
		s.mu.RUnlock()
		http.Error(w, "monitor is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.connWG.Add(1)
	s.mu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.connWG.Done()
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		clientID = r.RemoteAddr
	}
	client := NewClient(clientID, conn, r.RemoteAddr)
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	s.connWG.Add(1)
	go s.writeClient(client)
	go s.handleClient(client)
}

func (s *Server) writeClient(client *Client) {
	defer s.connWG.Done()

	if err := client.writePump(); err != nil {
		s.logger.Debug().Err(err).Str("clientId", client.ID).Msg("WebSocket write failed")
		client.Close()
	}
}

// handleClient reads until the peer goes away; clients never send commands
func (s *Server) handleClient(client *Client) {
	defer s.connWG.Done()
	defer func() {
		client.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("clientId", client.ID).Msg("WebSocket closed")
			}
			return
		}
	}
}
