package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/monitor"
	"github.com/elys-network/clmm-monitor/internal/state"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const defaultCycleLimit = 20

// Monitor is the part of monitor.Monitor the API exposes.
type Monitor interface {
	WalletAddress() string
	RunCycle(ctx context.Context) (types.CycleSummary, error)
	Latest() (types.CycleSummary, bool)
	Positions(ctx context.Context) ([]types.PositionSnapshot, error)
	Evaluate(ctx context.Context, walletAddress, positionID string, opts types.RebalanceOptions) (monitor.Evaluation, error)
}

// PoolLister lists the pools known to the position source.
type PoolLister interface {
	GetPools(ctx context.Context) ([]types.Pool, error)
}

// History is the persisted cycle history.
type History interface {
	Ping(ctx context.Context) error
	RecentCycles(ctx context.Context, limit int) ([]types.CycleSummary, error)
	LatestCycle(ctx context.Context) (types.CycleSummary, error)
	Stats(ctx context.Context) (state.MonitorStats, error)
	RebalanceHistory(ctx context.Context, positionID string, limit int) ([]types.ExecutionResult, error)
}

// Config holds the configuration for creating a new Server
type Config struct {
	Port    string
	Monitor Monitor
	Pools   PoolLister   // Optional
	History History      // Optional, enables the persisted history endpoints
	Metrics http.Handler // Optional, served on /metrics
}

// Server exposes monitor state over HTTP.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	monitor    Monitor
	pools      PoolLister
	history    History
	metrics    http.Handler
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer creates a new web server instance
func NewServer(cfg Config) (*Server, error) {
	if cfg.Monitor == nil {
		return nil, errors.New("web server requires a monitor")
	}
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	s := &Server{
		router:    mux.NewRouter(),
		monitor:   cfg.Monitor,
		pools:     cfg.Pools,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		logger:    logger.GetForComponent("web_server"),
		startedAt: time.Now(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Manual cycles run inside the request
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/cycles", s.handleGetCycles).Methods(http.MethodGet)
	api.HandleFunc("/cycles/latest", s.handleGetLatestCycle).Methods(http.MethodGet)
	api.HandleFunc("/cycles/run", s.handleRunCycle).Methods(http.MethodPost)
	api.HandleFunc("/positions", s.handleGetPositions).Methods(http.MethodGet)
	api.HandleFunc("/positions/{id}/evaluate", s.handleEvaluatePosition).Methods(http.MethodGet)
	api.HandleFunc("/positions/{id}/history", s.handleGetPositionHistory).Methods(http.MethodGet)
	api.HandleFunc("/pools", s.handleGetPools).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet)

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down web server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := "OK"
	degraded := false

	cycleInfo := map[string]interface{}{
		"current_cycle":   0,
		"last_cycle_time": nil,
		"last_error":      nil,
	}
	if latest, ok := s.monitor.Latest(); ok {
		cycleInfo["current_cycle"] = latest.CycleNumber
		cycleInfo["last_cycle_time"] = latest.StartedAt
		cycleInfo["out_of_range"] = latest.OutOfRange
		if latest.FetchError != "" {
			cycleInfo["last_error"] = latest.FetchError
			degraded = true
		}
	} else {
		status = "STARTING"
	}

	dbStatus := "disabled"
	if s.history != nil {
		dbStatus = "healthy"
		if err := s.history.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Health check: database unreachable")
			dbStatus = "unreachable"
			degraded = true
		}
	}

	statusCode := http.StatusOK
	if degraded {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(s.startedAt).Seconds()),
		},
		"monitor": map[string]interface{}{
			"wallet":     s.monitor.WalletAddress(),
			"database":   dbStatus,
			"cycle_info": cycleInfo,
		},
	})
}

func (s *Server) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultCycleLimit)

	if s.history == nil {
		cycles := []types.CycleSummary{}
		if latest, ok := s.monitor.Latest(); ok {
			cycles = append(cycles, latest)
		}
		s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"cycles":    cycles,
			"count":     len(cycles),
			"limit":     limit,
			"persisted": false,
		})
		return
	}

	cycles, err := s.history.RecentCycles(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get recent cycles")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cycles":    cycles,
		"count":     len(cycles),
		"limit":     limit,
		"persisted": true,
	})
}

func (s *Server) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if latest, ok := s.monitor.Latest(); ok {
		s.writeJSONResponse(w, http.StatusOK, latest)
		return
	}

	if s.history != nil {
		latest, err := s.history.LatestCycle(r.Context())
		if err == nil {
			s.writeJSONResponse(w, http.StatusOK, latest)
			return
		}
		if !errors.Is(err, state.ErrNoCycles) {
			s.logger.Error().Err(err).Msg("Failed to get latest cycle")
			s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
			return
		}
	}
	s.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives a disconnecting client.
	summary, err := s.monitor.RunCycle(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		s.writeErrorResponse(w, http.StatusConflict, "A cycle is already in progress")
	case err != nil:
		s.logger.Error().Err(err).Msg("Manual cycle failed")
		s.writeJSONResponse(w, http.StatusBadGateway, summary)
	default:
		s.writeJSONResponse(w, http.StatusOK, summary)
	}
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.monitor.Positions(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get positions")
		s.writeErrorResponse(w, http.StatusBadGateway, "Failed to retrieve positions")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"wallet":    s.monitor.WalletAddress(),
		"positions": positions,
		"count":     len(positions),
	})
}

// handleEvaluatePosition evaluates without executing. Query parameters:
// range (percent override) and force.
func (s *Server) handleEvaluatePosition(w http.ResponseWriter, r *http.Request) {
	positionID := mux.Vars(r)["id"]

	opts := types.RebalanceOptions{}
	if v := r.URL.Query().Get("range"); v != "" {
		rangePercent, err := strconv.ParseFloat(v, 64)
		if err != nil || rangePercent <= 0 || rangePercent >= 100 {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid range percent")
			return
		}
		opts.RangePercent = rangePercent
	}
	if v := r.URL.Query().Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid force flag")
			return
		}
		opts.Force = force
	}

	eval, err := s.monitor.Evaluate(r.Context(), s.monitor.WalletAddress(), positionID, opts)
	switch {
	case errors.Is(err, monitor.ErrPositionNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, "Position not found")
	case errors.Is(err, types.ErrInvalidSnapshot):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.logger.Error().Err(err).Str("positionID", positionID).Msg("Failed to evaluate position")
		s.writeErrorResponse(w, http.StatusBadGateway, "Failed to evaluate position")
	default:
		s.writeJSONResponse(w, http.StatusOK, eval)
	}
}

func (s *Server) handleGetPositionHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "Persistence is disabled")
		return
	}

	positionID := mux.Vars(r)["id"]
	history, err := s.history.RebalanceHistory(r.Context(), positionID, queryInt(r, "limit", defaultCycleLimit))
	if err != nil {
		s.logger.Error().Err(err).Str("positionID", positionID).Msg("Failed to get rebalance history")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalance history")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"position_id": positionID,
		"rebalances":  history,
		"count":       len(history),
	})
}

func (s *Server) handleGetPools(w http.ResponseWriter, r *http.Request) {
	if s.pools == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "Pool listing is not supported by this source")
		return
	}

	pools, err := s.pools.GetPools(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get pools")
		s.writeErrorResponse(w, http.StatusBadGateway, "Failed to retrieve pools")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, http.StatusNotImplemented, "Persistence is disabled")
		return
	}

	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get monitor stats")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			return parsed
		}
	}
	return fallback
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
