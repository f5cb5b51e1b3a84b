// Package httpx serves the admin endpoints: liveness and Prometheus metrics.
package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// State is the monitor view shown by /healthz.
type State interface {
	Running() bool
}

type Server struct {
	address  string
	db       Pinger
	monitor  State
	gatherer prometheus.Gatherer
	logger   logging.Logger
}

func NewServer(address string, db Pinger, monitor State, g prometheus.Gatherer, l logging.Logger) *Server {
	return &Server{address: address, db: db, monitor: monitor, gatherer: g, logger: l.With("module", "http_server")}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("db: unavailable\n"))
		return
	}
	monitoring := "stopped"
	if s.monitor.Running() {
		monitoring = "running"
	}
	_, _ = w.Write([]byte("ok\nmonitoring: " + monitoring + "\n"))
}

// Serve handles requests on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
