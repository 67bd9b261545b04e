package ingest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// webhookPayload is the inbound ticket notification.
type webhookPayload struct {
	ID             string `json:"id"`
	TicketID       string `json:"ticket_id"` // alternate field name
	Subject        string `json:"subject"`
	Description    string `json:"description"`
	RequesterEmail string `json:"requester_email"`
}

// RegisterRoutes mounts the ingestion webhook. secret guards the endpoint;
// with an empty secret ingestion is disabled entirely.
func RegisterRoutes(r chi.Router, store *Store, classifier *Classifier, secret string) {
	r.Post("/api/ingest", handleIngest(store, classifier, secret))
	r.Get("/api/ingest/tickets/{id}", handleGetTicket(store))
}

func handleIngest(store *Store, classifier *Classifier, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			http.Error(w, "ingestion is not configured", http.StatusServiceUnavailable)
			return
		}
		got := r.URL.Query().Get("t")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, "invalid secret", http.StatusUnauthorized)
			return
		}

		var p webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		id := p.ID
		if id == "" {
			id = p.TicketID
		}
		if id == "" {
			http.Error(w, "ticket id is required", http.StatusBadRequest)
			return
		}

		cls := classifier.Classify(r.Context(), p.Subject, p.Description)
		ticket, err := store.Upsert(r.Context(), Ticket{
			ID:             id,
			Subject:        p.Subject,
			Description:    p.Description,
			RequesterEmail: p.RequesterEmail,
			Classification: cls,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	}
}

func handleGetTicket(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, ErrUnknownTicket) {
				http.Error(w, "ticket not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
