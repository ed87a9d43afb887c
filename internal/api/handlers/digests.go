package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"sift/internal/models"
	"sift/internal/storage"
)

// digestListLimit caps how many rows GET /api/digests returns.
const digestListLimit = 30

// ListDigests handles GET /api/digests: the most recent digest rows, newest
// first, without their rendered bodies.
func ListDigests(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		digests, err := store.ListDigests(r.Context(), digestListLimit)
		if err != nil {
			slog.Error("failed to list digests", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list digests")
			return
		}
		if digests == nil {
			digests = []models.Digest{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"digests": digests})
	}
}

// LatestDigest handles GET /api/digests/latest: the newest digest with its
// full markdown body.
func LatestDigest(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		digest, err := store.LatestDigest(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No digest generated yet")
			return
		}
		if err != nil {
			slog.Error("failed to load latest digest", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load digest")
			return
		}

		writeJSON(w, http.StatusOK, digest)
	}
}

// GetDigest handles GET /api/digests/{id}.
func GetDigest(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid digest id")
			return
		}

		digest, err := store.GetDigest(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Digest not found")
			return
		}
		if err != nil {
			slog.Error("failed to load digest", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load digest")
			return
		}

		writeJSON(w, http.StatusOK, digest)
	}
}
