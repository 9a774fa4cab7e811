// Package httpapi serves the strategy, backtest and market data REST API.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"optionforge/internal/dispatcher"
	"optionforge/internal/domain"
	"optionforge/internal/metrics"
	"optionforge/internal/observability"
	"optionforge/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Dispatcher queues backtests and streams their progress.
// Implemented by *dispatcher.Dispatcher.
type Dispatcher interface {
	Submit(ctx context.Context, req dispatcher.SubmitRequest) (*domain.BacktestRun, error)
	Subscribe(runID string) (<-chan dispatcher.Progress, func())
}

// Options configures a Server.
type Options struct {
	Strategies storage.StrategyStore
	Runs       storage.BacktestRunStore
	Quotes     storage.OptionQuoteStore
	Dispatcher Dispatcher
	Metrics    *observability.Metrics // nil uses DefaultMetrics
	Logger     *log.Logger            // nil discards
}

// Server serves the HTTP API.
type Server struct {
	strategies storage.StrategyStore
	runs       storage.BacktestRunStore
	quotes     storage.OptionQuoteStore
	dispatcher Dispatcher
	aggregator *metrics.Aggregator
	metrics    *observability.Metrics
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

// New creates a new Server.
func New(opts Options) *Server {
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		strategies: opts.Strategies,
		runs:       opts.Runs,
		quotes:     opts.Quotes,
		dispatcher: opts.Dispatcher,
		aggregator: metrics.NewAggregator(opts.Runs),
		metrics:    m,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/strategies", s.handleCreateStrategy)
	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/strategies/{id}", s.handleGetStrategy)
	mux.HandleFunc("GET /api/strategies/{id}/summary", s.handleStrategySummary)
	mux.HandleFunc("POST /api/strategies/{id}/backtests", s.handleLaunchBacktest)
	mux.HandleFunc("GET /api/backtests/{id}/status", s.handleBacktestStatus)
	mux.HandleFunc("GET /api/backtests/{id}/results", s.handleBacktestResults)
	mux.HandleFunc("GET /api/data/option-chain", s.handleOptionChain)
	mux.HandleFunc("GET /ws/backtests/{id}", s.handleProgressStream)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
}

// Handler returns an http.Handler with CORS and request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.instrument(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status. It forwards Hijack so the
// websocket upgrade works through the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeStoreError maps storage errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Printf("%s: %v", what, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// absoluteURL builds an external URL for path on the request's host.
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + path
}
