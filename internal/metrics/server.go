package metrics

import (
	"context"
	"net/http"
	"time"
)

// Server serves the Prometheus /metrics endpoint plus a /health endpoint.
type Server struct {
	httpServer *http.Server
}

// NewServer builds an HTTP server bound to addr, serving collector's
// metrics at /metrics and a liveness check at /health.
func NewServer(addr string, collector *Collector) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the HTTP server until ctx is cancelled, returning any error
// from ListenAndServe other than the clean-shutdown sentinel.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

const shutdownGrace = 5 * time.Second
