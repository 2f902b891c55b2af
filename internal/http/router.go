// Package http expone la superficie HTTP mínima del kernel: upserts,
// autenticación y métricas. El transporte es una capa fina sobre
// internal/command; toda la lógica vive en los aggregates.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyfold/keyfold/internal/command"
	"github.com/keyfold/keyfold/internal/metrics"
	"github.com/keyfold/keyfold/internal/observability/logger"
)

type Server struct {
	cmds *command.Service
}

func NewRouter(cmds *command.Service) http.Handler {
	s := &Server{cmds: cmds}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/realms/{realm}", func(r chi.Router) {
		r.Put("/roles", s.replaceRole)
		r.Delete("/roles/{id}", s.deleteRole)
		r.Put("/api-keys", s.replaceAPIKey)
		r.Delete("/api-keys/{id}", s.deleteAPIKey)
		r.Post("/api-keys/authenticate", s.authenticateAPIKey)
		r.Post("/sessions", s.startSession)
		r.Post("/sessions/renew", s.renewSession)
		r.Post("/sessions/{id}/signout", s.signOutSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Post("/otp", s.createOTP)
		r.Post("/otp/{id}/validate", s.validateOTP)
		r.Delete("/otp/{id}", s.deleteOTP)
	})

	return r
}

// Start levanta el servidor con timeouts razonables.
func Start(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv.ListenAndServe()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := logger.L().With(
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(logger.ToContext(r.Context(), l)))
		elapsed := time.Since(start)
		metrics.RequestLatency.Observe(float64(elapsed.Milliseconds()))
		l.Debug("request served", logger.Duration(elapsed))
	})
}
