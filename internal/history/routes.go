package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

const defaultLimit = 50

// RegisterRoutes mounts history endpoints under /api/history on the given router.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/history", func(r chi.Router) {
		r.Get("/", handleQuery(store))
		r.Get("/summary", handleSummary(store))
		r.Get("/{id}", handleGetByID(store))
	})
}

func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	filter := Filter{
		SessionID:  q.Get("session"),
		Operation:  gateway.Operation(q.Get("operation")),
		Mode:       prompts.Mode(q.Get("mode")),
		FailedOnly: q.Get("failed") == "true",
		Limit:      defaultLimit,
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	return filter
}

func handleQuery(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := store.Query(r.Context(), filterFromQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleSummary(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := store.Summarize(r.Context(), filterFromQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
