package handlers

import (
	"net/http"
	"time"

	"sift/internal/pipeline"
)

// version is reported by the status endpoint.
const version = "1.0.0"

type statusResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	Running bool       `json:"running"`
	Since   *time.Time `json:"since,omitempty"`
}

// GetStatus handles GET /api/status: liveness plus the current run state.
func GetStatus(runner *pipeline.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := runner.Status()

		resp := statusResponse{
			Status:  "ok",
			Version: version,
			Running: status.Running,
		}
		if status.Running {
			resp.Since = &status.Since
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
