// Package httpapi implements the engine's read/write HTTP control surface:
// GET /stats, GET /opportunities, GET /trades, POST /config, POST
// /subsystems/{name}/start|stop. Routes are registered on a gorilla/mux
// router, with zerolog request logging around every handler.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/riftline/ineffic-engine/internal/config"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/stats"
)

// Subsystems is the control-plane port the server drives for
// start/stop(scope) requests against named engine subsystems.
type Subsystems interface {
	Start(name string) error
	Stop(name string) error
}

// OpportunityLister exposes the engine's currently tracked opportunities.
type OpportunityLister interface {
	Opportunities() []events.ArbitrageOpportunity
}

// TradeLister exposes the engine's currently tracked trades.
type TradeLister interface {
	Trades() []events.Trade
}

// Config holds the listener settings for Server.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns sane local-only defaults.
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the engine's HTTP control surface.
type Server struct {
	router *mux.Router
	server *http.Server
	cfg    Config
	log    zerolog.Logger

	stats  *stats.Recorder
	cfgStore *config.Store
	subsys Subsystems
	opps   OpportunityLister
	trades TradeLister
}

// New constructs a Server wired to the given stats recorder, config
// store, subsystem controller, and opportunity/trade listers.
func New(cfg Config, log zerolog.Logger, st *stats.Recorder, cfgStore *config.Store, subsys Subsystems, opps OpportunityLister, trades TradeLister) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		cfg:      cfg,
		log:      log.With().Str("component", "httpapi").Logger(),
		stats:    st,
		cfgStore: cfgStore,
		subsys:   subsys,
		opps:     opps,
		trades:   trades,
	}
	s.setupRoutes()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.jsonContentTypeMiddleware)

	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	s.router.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPost)
	s.router.HandleFunc("/subsystems/{name}/start", s.handleSubsystem(s.subsysStart)).Methods(http.MethodPost)
	s.router.HandleFunc("/subsystems/{name}/stop", s.handleSubsystem(s.subsysStop)).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type requestIDKey struct{}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Info().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.All())
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if s.opps == nil {
		writeJSON(w, http.StatusOK, []events.ArbitrageOpportunity{})
		return
	}
	writeJSON(w, http.StatusOK, s.opps.Opportunities())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		writeJSON(w, http.StatusOK, []events.Trade{})
		return
	}
	writeJSON(w, http.StatusOK, s.trades.Trades())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var next config.Config
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding config body: %w", err))
		return
	}
	if err := s.cfgStore.Update(next); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *Server) subsysStart(name string) error { return s.subsys.Start(name) }
func (s *Server) subsysStop(name string) error  { return s.subsys.Stop(name) }

func (s *Server) handleSubsystem(action func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.subsys == nil {
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("subsystem control not wired"))
			return
		}
		name := mux.Vars(r)["name"]
		if err := action(name); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"subsystem": name, "status": "ok"})
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Errorf("no such route: %s %s", r.Method, r.URL.Path))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Start binds the listener and serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.log.Info().Str("addr", addr).Msg("http control surface listening")
	return s.server.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address returns the configured listen address, host:port form.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}
