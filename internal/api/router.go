// Package api exposes the HTTP control surface: run triggering, job and run
// state inspection, preference toggles, and stored digests.
package api

import (
	"github.com/go-chi/chi/v5"

	"sift/internal/api/handlers"
	"sift/internal/pipeline"
)

// NewRouter builds the chi router over the runner and its job registry.
// Everything lives under /api; there is no static frontend to serve.
func NewRouter(runner *pipeline.Runner, jobs *pipeline.Jobs) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestLogger)
	r.Use(Recovery)

	store := runner.Store()

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", handlers.GetStatus(runner))

		api.Get("/preferences", handlers.GetPreferences(store))
		api.Put("/preferences", handlers.UpdatePreferences(store))

		api.Post("/run", handlers.TriggerRun(runner, jobs))
		api.Get("/jobs", handlers.ListJobs(jobs))
		api.Get("/jobs/{id}", handlers.GetJob(jobs))

		api.Get("/digests", handlers.ListDigests(store))
		api.Get("/digests/latest", handlers.LatestDigest(store))
		api.Get("/digests/{id}", handlers.GetDigest(store))
	})

	return r
}
