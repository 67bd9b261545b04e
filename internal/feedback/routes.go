package feedback

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the feedback endpoints under /api/feedback.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Post("/api/feedback", handleRecord(store))
	r.Get("/api/feedback/priors", handlePriors(store))
}

func handleRecord(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if ev.ArticleSlug == "" {
			http.Error(w, "article_slug is required", http.StatusBadRequest)
			return
		}
		recorded, err := store.Record(r.Context(), ev)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, recorded)
	}
}

func handlePriors(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		priors, err := store.ArticlePriors(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if priors == nil {
			priors = map[string]float64{}
		}
		writeJSON(w, http.StatusOK, priors)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
