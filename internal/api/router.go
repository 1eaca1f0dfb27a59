package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bookbot/internal/bookservice"
	"github.com/starford/bookbot/internal/session"
	"github.com/starford/bookbot/internal/sse"
)

// RouterConfig holds the API settings.
type RouterConfig struct {
	AuthEnabled    bool
	Token          string
	MaxUploadBytes int64
}

// NewRouter creates a chi router with all API routes mounted.
// Every route runs inside the caller's session. broker, if non-nil, serves
// GET /events.
func NewRouter(svc *bookservice.Service, sessions *session.Manager, broker *sse.Broker, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, broker, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	r.Use(SessionMiddleware(sessions))

	r.Get("/session", h.Session)
	r.Post("/book", h.UploadBook)
	r.Put("/settings", h.UpdateSettings)
	r.Post("/ask", h.Ask)
	r.Get("/transcript", h.Transcript)
	r.Get("/transcript/export", h.ExportTranscript)
	r.Post("/reset", h.Reset)
	r.Get("/books", h.ListBooks)
	r.Get("/books/{fingerprint}", h.GetBook)
	r.Delete("/books/{fingerprint}", h.EvictBook)

	if broker != nil {
		r.Get("/events", h.Events)
	}

	return r
}

// UIHandler serves the single-page UI.
func UIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})
}
