// Package httpserver is the gateway's HTTP boundary: it wires the chi
// router, request/response envelope, and auth middleware over the
// credential, audio-normalization, dispatch, and operator packages, via a
// Server struct constructed once in main and a Router() method that builds
// the route tree.
package httpserver

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/audionorm"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/dispatcher"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/operator"
)

type Server struct {
	cfg         config.Config
	credentials *credential.Store
	auth        verifier
	normalizer  *audionorm.Normalizer
	dispatch    *dispatcher.Dispatcher
	op          *operator.Operator
	log         *log.Logger
}

func New(cfg config.Config, credentials *credential.Store, auth verifier, normalizer *audionorm.Normalizer, dispatch *dispatcher.Dispatcher, op *operator.Operator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "lingualink ", log.LstdFlags|log.LUTC)
	}
	return &Server{
		cfg:         cfg,
		credentials: credentials,
		auth:        auth,
		normalizer:  normalizer,
		dispatch:    dispatch,
		op:          op,
		log:         logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/supported_formats", s.handleSupportedFormats)

		r.Group(func(r chi.Router) {
			if s.cfg.AuthEnabled {
				r.Use(requireAuth(s.auth))
			}
			r.Post("/translate_audio", s.handleTranslateAudio)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth(s.auth))
			r.Use(requireAdmin)

			r.Get("/backends", s.handleListBackends)
			r.Post("/backends", s.handleAddBackend)
			r.Delete("/backends/{name}", s.handleRemoveBackend)
			r.Post("/backends/{name}/enable", s.handleEnableBackend)
			r.Post("/backends/{name}/disable", s.handleDisableBackend)

			r.Get("/strategy", s.handleGetStrategy)
			r.Put("/strategy", s.handleSetStrategy)

			r.Post("/health_check", s.handleRunHealthCheckNow)
			r.Post("/health_check/start", s.handleStartHealthChecks)
			r.Post("/health_check/stop", s.handleStopHealthChecks)

			r.Get("/status", s.handleStatus)
			r.Get("/metrics", s.handleStatus)

			r.Get("/credentials", s.handleListCredentials)
			r.Post("/credentials", s.handleCreateCredential)
			r.Delete("/credentials/{secret}", s.handleRevokeCredential)
			r.Post("/credentials/cleanup_expired", s.handleCleanupExpiredCredentials)
		})
	})

	return r
}
