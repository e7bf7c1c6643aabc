package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abroadly/xamanlink/service/config"
	"github.com/abroadly/xamanlink/service/metrics"
	"github.com/abroadly/xamanlink/service/verify"
	"github.com/abroadly/xamanlink/service/xumm"
)

// Server is the HTTP facade over the wallet-payload service. It is stateless:
// every request stands alone and nothing is persisted locally.
type Server struct {
	addr     string
	cfg      *config.Config
	gateway  *xumm.Client
	verifier *verify.Verifier
	tokens   *verify.TokenIssuer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the /metrics endpoint won't be available
// and no request metrics will be recorded.
func New(addr string, cfg *config.Config, gateway *xumm.Client, verifier *verify.Verifier, tokens *verify.TokenIssuer, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		gateway:  gateway,
		verifier: verifier,
		tokens:   tokens,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the route table. Exposed separately from Start so tests can
// drive the full mux through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	withMetrics := func(name string, h http.Handler) http.Handler {
		if s.metrics == nil {
			return h
		}
		return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
	}

	mux.Handle("POST /api/wallets/xaman/createpayload",
		withMetrics("/api/wallets/xaman/createpayload",
			handleCreatePayload(s.gateway, s.cfg, s.metrics, s.logger)))
	mux.Handle("GET /api/wallets/xaman/getpayload",
		withMetrics("/api/wallets/xaman/getpayload",
			handleGetPayload(s.gateway, s.logger)))
	mux.Handle("GET /api/wallets/xaman/checksign",
		withMetrics("/api/wallets/xaman/checksign",
			handleCheckSign(s.verifier, s.tokens, s.logger)))

	mux.Handle("GET /health", handleHealth())

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// CORS wraps the whole table so the preflight method is answered for
	// every route, including unknown ones.
	return corsMiddleware(s.cfg.AllowedOrigin)(mux)
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("HTTP server starting", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// corsMiddleware emits permissive cross-origin headers on every response and
// answers the OPTIONS preflight with no body.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// handleHealth returns a trivial liveness handler.
func handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
}
