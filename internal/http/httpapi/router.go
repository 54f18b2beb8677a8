package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videojobs/internal/http/handlers"
	"videojobs/internal/infra"
	"videojobs/internal/middleware"
)

type Options struct {
	JWTSecret       string
	DefaultLanguage string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	CORSOrigins     []string
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.AccessLog(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.AuthJWT(opts.JWTSecret),
				middleware.Language(opts.DefaultLanguage, opts.CountryLookup),
				middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
			)

			r.Get("/quota", app.Quota)

			r.Get("/presets", app.ListPresets)
			r.Post("/presets/estimate", app.EstimatePreset)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", app.CreateJob)
				r.Route("/{job_id}", func(r chi.Router) {
					r.Get("/", app.GetJob)
					r.Post("/submit", app.SubmitJob)
					r.Post("/cancel", app.CancelJob)
					r.Get("/steps", app.JobSteps)
					r.Get("/events", app.JobEvents)
				})
			})

			r.Route("/batches", func(r chi.Router) {
				r.Post("/", app.CreateBatch)
				r.Route("/{batch_id}", func(r chi.Router) {
					r.Get("/", app.GetBatch)
					r.Post("/cancel", app.CancelBatch)
				})
			})
		})
	})

	return r
}
