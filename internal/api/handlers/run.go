package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sift/internal/pipeline"
)

// runRequest is the optional POST /api/run body.
type runRequest struct {
	// SummaryMode skips ingestion and generates a digest from what is
	// already stored.
	SummaryMode bool `json:"summary_mode"`
}

// TriggerRun handles POST /api/run. The run executes as a background job;
// the response carries the job handle for polling. An in-flight run yields
// 409 without creating a job.
func TriggerRun(runner *pipeline.Runner, jobs *pipeline.Jobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		if runner.Status().Running {
			writeError(w, http.StatusConflict, "A pipeline run is already in progress")
			return
		}

		run := runner.Run
		if req.SummaryMode {
			run = runner.RunGeneration
		}
		job := jobs.Start(r.Context(), run)

		writeJSON(w, http.StatusAccepted, job)
	}
}

// GetJob handles GET /api/jobs/{id}.
func GetJob(jobs *pipeline.Jobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := jobs.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}

		writeJSON(w, http.StatusOK, job)
	}
}

// ListJobs handles GET /api/jobs: every job this process has run, most
// recent first.
func ListJobs(jobs *pipeline.Jobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs.List()})
	}
}
