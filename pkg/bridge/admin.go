package bridge

import (
	"encoding/json"
	"net/http"
)

// AdminHandler serves the operator surface: listing live sessions and
// forcing a hangup.
func AdminHandler(reg *Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /admin/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reg.Snapshot())
	})

	mux.HandleFunc("POST /admin/sessions/{id}/hangup", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		session, ok := reg.Lookup(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		session.Hangup(ReasonAdmin)
		w.WriteHeader(http.StatusAccepted)
	})

	return mux
}
