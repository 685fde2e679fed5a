// Package main implements the pong match server.
//
// Architecture Overview:
// - Clients connect over WebSocket and pick a JSON or msgpack codec
// - Waiting players are paired into sessions by the session manager
// - Each session runs its own authoritative truth loop
// - Finished matches are reported to the configured history stores
//
// Connection Flow:
// 1. Client connects to /ws with a token (or a user id in dev mode)
// 2. Server sends a connection message and queues the player
// 3. When two players are queued a session is created for them
// 4. Client sends input and ping messages, server broadcasts game updates
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/auth"
	"github.com/pong/server/internal/matchmaker"
	"github.com/pong/server/internal/network"
	"github.com/pong/server/internal/report"
)

const shutdownTimeout = 15 * time.Second

// GameServer owns the HTTP listener and the session manager.
type GameServer struct {
	config   *config.ServerConfig
	manager  *matchmaker.SessionManager
	verifier *auth.Verifier // nil in dev mode
	upgrader websocket.Upgrader
	http     *http.Server
}

func main() {
	dumpTuning := flag.Bool("dump-tuning", false, "print the effective tuning as TOML and exit")
	flag.Parse()

	if err := run(*dumpTuning); err != nil {
		log.Criticalf("Server error: %v", err)
		os.Exit(1)
	}
}

func run(dumpTuning bool) error {
	// A missing .env is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := loadConfig()
	if err := setLogLevels(cfg.LogLevel); err != nil {
		return err
	}

	tuning := config.DefaultTuning()
	if cfg.TuningFile != "" {
		t, err := config.LoadTuning(cfg.TuningFile)
		if err != nil {
			return err
		}
		tuning = t
	}
	if dumpTuning {
		return config.WriteTuning(os.Stdout, tuning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter, closeReporters, err := openReporters(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeReporters()

	server := NewGameServer(cfg, matchmaker.NewSessionManager(tuning, reporter))

	log.Infof("=================================")
	log.Infof("  Pong Match Server")
	log.Infof("=================================")
	log.Infof("  Host: %s", cfg.Host)
	log.Infof("  Port: %d", cfg.Port)
	log.Infof("  Frame Rate: %d Hz", config.FrameRate)
	log.Infof("  Poll Rate: %d Hz", config.PollRate)
	log.Infof("  Arena: %gx%g", tuning.Arena.Width, tuning.Arena.Length)
	log.Infof("  Winning Score: %d", tuning.Match.WinningScore)
	log.Infof("  Auth: %v", server.verifier != nil)
	log.Infof("=================================")

	return server.Run(ctx)
}

// loadConfig reads configuration from environment variables.
// Falls back to default values if environment variables are not set.
func loadConfig() *config.ServerConfig {
	cfg := config.DefaultServerConfig()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	// CORS can be disabled for production behind a reverse proxy
	if cors := os.Getenv("ENABLE_CORS"); cors == "false" {
		cfg.EnableCORS = false
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if db := os.Getenv("MONGO_DB"); db != "" {
		cfg.MongoDB = db
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.TuningFile = os.Getenv("TUNING_FILE")
	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	cfg.MongoURI = os.Getenv("MONGO_URI")

	return cfg
}

// openReporters always logs results and also stores them in every configured
// database.
func openReporters(ctx context.Context, cfg *config.ServerConfig) (report.Reporter, func(), error) {
	reporters := report.Multi{report.LogReporter{}}
	var closers []func()

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.PostgresDSN != "" {
		pg, err := report.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, pg)
		closers = append(closers, func() { pg.Close() })
	}

	if cfg.MongoURI != "" {
		mg, err := report.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		reporters = append(reporters, mg)
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mg.Close(ctx)
		})
	}

	return reporters, closeAll, nil
}

// NewGameServer creates a server around manager.
func NewGameServer(cfg *config.ServerConfig, manager *matchmaker.SessionManager) *GameServer {
	s := &GameServer{
		config:  cfg,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.EnableCORS
			},
		},
	}
	if cfg.JWTSecret != "" {
		s.verifier = auth.NewVerifier(cfg.JWTSecret)
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then ends every session and waits for
// their results to be reported.
func (s *GameServer) Run(ctx context.Context) error {
	go s.logStats(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server listening on %s", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	return s.manager.Shutdown(shutdownCtx)
}

// logStats logs server statistics every 5 minutes while there is activity.
func (s *GameServer) logStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.manager.Stats()
			if stats.ActiveSessions > 0 || stats.QueuedPlayers > 0 {
				log.Infof("Stats: %d sessions, %d in game, %d queued",
					stats.ActiveSessions, stats.PlayersInGame, stats.QueuedPlayers)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Write response: %v", err)
	}
}

// handleHealth responds to health check requests.
func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStats returns session manager counters.
func (s *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.manager.Stats())
}

type sessionView struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Players      [2]string `json:"players"`
	Connected    [2]bool   `json:"connected"`
	Scores       [2]int    `json:"scores"`
	Ticks        uint64    `json:"ticks"`
	CappedSweeps uint64    `json:"cappedSweeps"`
	LostImpacts  uint64    `json:"lostImpacts"`
	Violations   [2]int    `json:"violations"`
}

// handleSessions lists live sessions.
func (s *GameServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.manager.Sessions()
	views := make([]sessionView, 0, len(infos))
	for _, info := range infos {
		views = append(views, sessionView{
			ID:           info.ID,
			State:        info.State.String(),
			Players:      info.Players,
			Connected:    info.Connected,
			Scores:       info.Scores,
			Ticks:        info.Ticks,
			CappedSweeps: info.Stats.CappedSweeps,
			LostImpacts:  info.Stats.LostImpacts,
			Violations:   info.Violations,
		})
	}
	writeJSON(w, views)
}

// identify resolves the user behind an upgrade request. With a JWT secret
// configured a valid ?token= is required; otherwise ?user= is trusted and a
// random id is assigned when it is missing.
func (s *GameServer) identify(r *http.Request) (string, error) {
	q := r.URL.Query()
	if s.verifier != nil {
		claims, err := s.verifier.Verify(q.Get("token"))
		if err != nil {
			return "", err
		}
		return claims.ID, nil
	}
	if user := q.Get("user"); user != "" {
		return user, nil
	}
	return uuid.NewString(), nil
}

// handleWebSocket upgrades HTTP connections to WebSocket and hands the client
// to the session manager.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identify(r)
	if err != nil {
		log.Debugf("Rejected connection from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	codec := network.CodecJSON
	if c := r.URL.Query().Get("codec"); c != "" {
		if codec, err = network.ParseCodec(c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	proto := network.NewProtocol(codec)
	conn := newClientConnection(ws, s, userID, proto)
	log.Infof("New connection from %s: user %s (%s)", ws.RemoteAddr(), userID, codec)

	// Join before reading so a disconnect always finds the player to remove.
	conn.Send(proto.EncodeConnection(uuid.NewString(), userID))
	if err := s.manager.Join(userID, conn); err != nil {
		log.Warnf("Join %s: %v", userID, err)
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteMessage(conn.frameType(), proto.EncodeError(network.ErrorCodeServerError, err.Error()))
		conn.Close()
		return
	}

	go conn.writePump()
	go conn.readPump()
}
