package kb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helpdeskbr/n1agent/internal/search"
)

// Reindexer rebuilds the retrieval index from the current article set.
type Reindexer interface {
	Reindex(ctx context.Context) (search.Stats, error)
}

// RegisterRoutes mounts the knowledge admin endpoints under /api/kb.
func RegisterRoutes(r chi.Router, store *Store, reindexer Reindexer) {
	r.Route("/api/kb", func(r chi.Router) {
		r.Get("/articles", handleList(store))
		r.Post("/articles", handleCreate(store))
		r.Get("/articles/{slug}", handleGet(store))
		r.Put("/articles/{slug}", handleUpdate(store))
		r.Post("/reindex", handleReindex(reindexer))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articles, err := store.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if articles == nil {
			articles = []Article{}
		}
		writeJSON(w, http.StatusOK, articles)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		a, err := store.Get(r.Context(), slug)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "article not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleCreate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a Article
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		created, err := store.Create(r.Context(), a)
		switch {
		case errors.Is(err, ErrInvalidSlug):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrDuplicateSlug):
			http.Error(w, err.Error(), http.StatusConflict)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusCreated, created)
		}
	}
}

func handleUpdate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		var a Article
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if a.Slug != "" && a.Slug != slug {
			http.Error(w, "payload slug must match the route slug", http.StatusBadRequest)
			return
		}
		a.Slug = slug
		updated, err := store.Update(r.Context(), a)
		switch {
		case errors.Is(err, ErrInvalidSlug):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrNotFound):
			http.Error(w, "article not found", http.StatusNotFound)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, updated)
		}
	}
}

func handleReindex(reindexer Reindexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := reindexer.Reindex(r.Context())
		if err != nil {
			if errors.Is(err, search.ErrEmptyCorpus) {
				// The previous snapshot keeps serving; report the failure
				// with empty statistics instead of degrading silently.
				writeJSON(w, http.StatusConflict, map[string]any{
					"error": err.Error(),
					"stats": stats,
				})
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
