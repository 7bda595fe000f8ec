package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"animator/internal/http/handlers"
	"animator/internal/middleware"
)

type Options struct {
	ServerSecret string
	// Media serves locally stored videos under /media; nil disables it.
	Media  http.Handler
	Logger zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)

	r.Get("/healthz", app.Health)

	if opts.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media", opts.Media))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ServerAuth(opts.ServerSecret))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/{id}", app.JobStatus)
		})
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", app.CreateConversation)
			r.Get("/{id}", app.GetConversation)
			r.Delete("/{id}", app.DeleteConversation)
		})
	})

	return r
}
