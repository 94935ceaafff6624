package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/config"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/handlers"
	authmw "github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/middleware"
)

type Deps struct {
	Applications *handlers.ApplicationsHandler
	Jobs         *handlers.JobsHandler
	Profile      *handlers.ProfileHandler
	Health       *handlers.HealthHandler

	Auth        *authmw.AuthMiddleware
	Limiter     *resilience.RateLimiter
	Idempotency *idempotency.Store

	Cfg *config.Config
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(authmw.RequestID)
	r.Use(authmw.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(authmw.AccessLog)

	// Edge IP limiter in front of everything, including unauthenticated reads.
	r.Use(httprate.Limit(
		d.Cfg.RateLimit.EdgeLimit,
		d.Cfg.RateLimit.EdgeWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/internal/pipeline-health", d.Health.PipelineHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public read paths.
		r.Group(func(r chi.Router) {
			r.Use(authmw.RateLimit(d.Limiter, "search", d.Cfg.RateLimit.SearchLimit, d.Cfg.RateLimit.SearchWindow))
			r.Get("/jobs", d.Jobs.Search)
		})
		r.Get("/jobs/{job_id}", d.Jobs.Detail)

		// Authenticated command and read paths.
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Require)
			r.Use(authmw.CSRFPresence)
			r.Use(authmw.IdempotencyKey(d.Idempotency))

			r.Post("/applications", d.Applications.Create)
			r.Get("/applications", d.Applications.ListMine)
			r.Get("/applications/{application_id}", d.Applications.Get)
			r.Put("/applications/{application_id}/status", d.Applications.ChangeStatus)
			r.Post("/applications/{application_id}/withdraw", d.Applications.Withdraw)

			r.Post("/jobs", d.Jobs.Create)
			r.Patch("/jobs/{job_id}", d.Jobs.Update)
			r.Put("/jobs/{job_id}/status", d.Jobs.ChangeStatus)

			r.Get("/profile", d.Profile.Get)
			r.Put("/profile", d.Profile.Save)
		})
	})

	return r
}
