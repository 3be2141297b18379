package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/secmon-lab/gyges/pkg/utils/safe"
)

type Server struct {
	router             *chi.Mux
	eventHandler       *SlackEventHandler
	interactionHandler *SlackInteractionHandler
	slackSigningSecret string
	signatureOpts      []SignatureOption
}

type Options func(*Server)

// WithSlack mounts the Slack webhooks. Both routes sit behind signature
// verification with signingSecret.
func WithSlack(uc *usecase.UseCases, signingSecret string) Options {
	return func(s *Server) {
		s.eventHandler = NewSlackEventHandler(uc.Slack)
		s.interactionHandler = NewSlackInteractionHandler(uc.Interaction)
		s.slackSigningSecret = signingSecret
	}
}

func WithSignatureOptions(opts ...SignatureOption) Options {
	return func(s *Server) {
		s.signatureOpts = append(s.signatureOpts, opts...)
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(r.Context(), w, []byte("ok"))
	})

	if s.eventHandler != nil {
		r.Route("/hooks/slack", func(r chi.Router) {
			r.Use(SlackSignatureMiddleware(s.slackSigningSecret, s.signatureOpts...))
			r.Post("/events", s.eventHandler.ServeHTTP)
			r.Post("/interactions", s.interactionHandler.ServeHTTP)
		})
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
