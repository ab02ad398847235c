// Package server exposes the sensor read API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"farm_monitor/config"
	"farm_monitor/logger"
	"farm_monitor/metric"
	"farm_monitor/query"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// localOrigin matches dev servers on any localhost port
var localOrigin = regexp.MustCompile(`^http://(localhost|127\.0\.0\.1)(:\d+)?$`)

// Pinger reports whether storage is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes API requests to the query service
type Server struct {
	handler http.Handler
	router  *mux.Router
	query   *query.Service
	pinger  Pinger
	metrics *metric.Metrics

	allowedOrigins []string
	accessLog      io.Writer
}

// Option configures a Server
type Option func(s *Server)

// WithAllowedOrigins restricts CORS to the given origins instead of localhost
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithMetrics records request metrics and serves /metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAccessLog writes an Apache combined log line per request to w
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// New creates the API handler
func New(svc *query.Service, pinger Pinger, opts ...Option) *Server {
	s := &Server{
		query:  svc,
		pinger: pinger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.newRouter()

	var h http.Handler = s.router
	h = s.corsHandler(h)
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	s.handler = h

	return s
}

// newRouter mounts the API at the root and under /api
func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.instrument)

	s.registerAPI(router)
	s.registerAPI(router.PathPrefix("/api").Subrouter())

	router.HandleFunc("/health", s.handleHealth).Methods("GET").Name("Health")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET").Name("Metrics")
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})

	return router
}

func (s *Server) registerAPI(r *mux.Router) {
	r.HandleFunc("/sensors", s.handleGetSensors).Methods("GET").Name("GetSensors")
	r.HandleFunc("/sensors/{sensor_id}/readings", s.handleGetReadings).Methods("GET").Name("GetReadings")
}

func (s *Server) corsHandler(h http.Handler) http.Handler {
	opts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	}
	if len(s.allowedOrigins) > 0 {
		opts = append(opts, handlers.AllowedOrigins(s.allowedOrigins))
	} else {
		opts = append(opts, handlers.AllowedOriginValidator(localOrigin.MatchString))
	}
	return handlers.CORS(opts...)(h)
}

// instrument records request count and latency per route template
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.metrics.ObserveRequest(route, strconv.Itoa(m.Code), m.Duration)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleGetSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.query.ListSensors(r.Context())
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["sensor_id"]
	sensorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("sensor_id: %q is not an integer", raw))
		return
	}

	q := r.URL.Query()
	start, end, err := query.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	readings, err := s.query.ListReadings(r.Context(), sensorID, start, end)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		logger.Warnf("health check failed: %v\n", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeQueryError maps validation failures to 400 and everything else to 500
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	var verr *query.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	logger.Errorf("query failed: %v\n", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Run listens on cfg.ListenAddress until ctx is canceled
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve handles requests on ln until ctx is canceled, then drains in-flight
// requests for at most the shutdown timeout. It returns once no handler is running.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  config.Timeout(cfg.ReadTimeout),
		WriteTimeout: config.Timeout(cfg.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Printf("Listening on http://%s\n", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Println("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Timeout(cfg.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
