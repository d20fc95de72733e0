package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/voice-intake/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/voice-intake/internal/http/middleware"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	VoiceTools         *handlers.VoiceToolHandler
	Sessions           *handlers.SessionHandler
	Stream             *handlers.SnapshotStreamHandler
	SessionJWTSecret   string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (vendor webhook, health, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.VoiceTools != nil {
			public.Post("/webhooks/voice/tool-call", cfg.VoiceTools.HandleToolCall)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Review UI, bearer JWT
	if cfg.Sessions != nil {
		r.Route("/v1", func(v1 chi.Router) {
			v1.Use(httpmiddleware.SessionJWT(cfg.SessionJWTSecret))
			v1.Get("/stats", cfg.Sessions.Stats)
			v1.Route("/sessions/{id}", func(s chi.Router) {
				s.Get("/", cfg.Sessions.GetSnapshot)
				s.Delete("/", cfg.Sessions.Reset)
				s.Put("/fields/{field}", cfg.Sessions.EditField)
				s.Post("/finalize", cfg.Sessions.Finalize)
				if cfg.Stream != nil {
					s.Get("/stream", cfg.Stream.Stream)
				}
			})
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
