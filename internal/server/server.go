package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greenfelt/holdem/internal/game"
	"github.com/greenfelt/holdem/internal/randutil"
	"github.com/greenfelt/holdem/internal/store"
)

// Server hosts the WebSocket endpoint and the room actors behind it.
type Server struct {
	cfg      *ServerConfig
	upgrader websocket.Upgrader
	registry *Registry
	store    store.Store
	logger   *log.Logger
	metrics  *Metrics
	promReg  *prometheus.Registry
	clock    quartz.Clock

	httpServer *http.Server

	mu          sync.Mutex
	connections map[*Connection]struct{}
}

// NewServer wires a server from its configuration and store.
func NewServer(cfg *ServerConfig, st store.Store, clock quartz.Clock, logger *log.Logger) *Server {
	promReg := prometheus.NewRegistry()
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients are served from other origins in
				// development. Tighten before exposing publicly.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		registry:    NewRegistry(),
		store:       st,
		logger:      logger.WithPrefix("server"),
		metrics:     NewMetrics(promReg),
		promReg:     promReg,
		clock:       clock,
		connections: make(map[*Connection]struct{}),
	}
}

// Registry exposes the routing table, mainly for tests.
func (s *Server) Registry() *Registry { return s.registry }

// SetupRooms seeds the room listing if empty and spawns one actor per
// configured room.
func (s *Server) SetupRooms(ctx context.Context) error {
	infos := make([]store.RoomInfo, 0, len(s.cfg.Rooms))
	for _, rc := range s.cfg.Rooms {
		infos = append(infos, store.RoomInfo{
			ID:         uuid.New(),
			Name:       rc.Name,
			SmallBlind: rc.SmallBlind,
			BigBlind:   rc.BigBlind,
			BuyInMin:   rc.BuyInMin,
			BuyInMax:   rc.BuyInMax,
			MaxSeats:   rc.MaxPlayers,
		})
	}
	if err := s.store.SeedRooms(ctx, infos); err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	listed, err := s.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	for _, ri := range listed {
		room := game.NewRoom(ri.ID, game.Config{
			SmallBlind: ri.SmallBlind,
			BigBlind:   ri.BigBlind,
			BuyInMin:   ri.BuyInMin,
			BuyInMax:   ri.BuyInMax,
			MaxSeats:   ri.MaxSeats,
		}, randutil.NewCrypto())
		actor := NewActor(room, s.store, s.registry, s.clock, s.logger, s.metrics,
			s.cfg.Game.TurnTimeout(), s.cfg.Game.NextHandDelay())
		s.registry.AddRoom(actor)
		s.logger.Info("room ready", "name", ri.Name, "blinds", fmt.Sprintf("%d/%d", ri.SmallBlind, ri.BigBlind))
	}
	return nil
}

// Start serves HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rooms", s.handleRooms)
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              s.cfg.GetServerAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains every room, refunding stacks, and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	for _, actor := range s.registry.Rooms() {
		actor.Close()
	}
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.registry, s.store, s.logger)
	s.mu.Lock()
	s.connections[client] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.metrics.ConnectionsActive.Inc()
	s.logger.Info("client connected", "total", total)

	client.Start()
	go func() {
		<-client.Done()
		client.teardown()
		s.mu.Lock()
		delete(s.connections, client)
		total := len(s.connections)
		s.mu.Unlock()
		s.metrics.ConnectionsActive.Dec()
		s.logger.Info("client disconnected", "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// handleRooms serves the lobby listing over plain HTTP so clients can browse
// before opening a socket.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	rooms, err := s.store.ListRooms(ctx)
	if err != nil {
		s.logger.Error("failed to list rooms", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := RoomListData{Rooms: make([]RoomInfoData, 0, len(rooms))}
	for _, ri := range rooms {
		data.Rooms = append(data.Rooms, RoomInfoData{
			ID:          ri.ID.String(),
			Name:        ri.Name,
			SmallBlind:  ri.SmallBlind,
			BigBlind:    ri.BigBlind,
			BuyInMin:    ri.BuyInMin,
			BuyInMax:    ri.BuyInMax,
			MaxPlayers:  ri.MaxSeats,
			PlayerCount: ri.PlayerCount,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode room list", "error", err)
	}
}
