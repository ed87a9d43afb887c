package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"sift/internal/storage"
)

// preferenceUpdate is one entry of the PUT /api/preferences body.
type preferenceUpdate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetPreferences handles GET /api/preferences. Every key the pipeline
// consults is present; unset keys carry their default.
func GetPreferences(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := store.AllPreferences(r.Context())
		if err != nil {
			slog.Error("failed to get preferences", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get preferences")
			return
		}

		writeJSON(w, http.StatusOK, prefs)
	}
}

// UpdatePreferences handles PUT /api/preferences. The body is a list of
// {key, value} pairs. Values are stored lowercased so the toggle reads never
// depend on the caller's casing. Responds with the full merged preference
// set after the write.
func UpdatePreferences(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var updates []preferenceUpdate
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		for _, update := range updates {
			if update.Key == "" {
				writeError(w, http.StatusBadRequest, "Preference key must not be empty")
				return
			}
			if err := store.SetPreference(ctx, update.Key, strings.ToLower(update.Value)); err != nil {
				slog.Error("failed to set preference", "key", update.Key, "error", err)
				writeError(w, http.StatusInternalServerError, "Failed to save preferences")
				return
			}
		}

		prefs, err := store.AllPreferences(ctx)
		if err != nil {
			slog.Error("failed to get preferences after save", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get preferences")
			return
		}

		writeJSON(w, http.StatusOK, prefs)
	}
}
