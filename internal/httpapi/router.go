package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts every endpoint behind the auth middleware. Health stays
// outside it for load balancer probes.
func NewRouter(h *Handler, jwtSecret string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(jwtSecret))

	api.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", h.CreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/messages", h.History).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/read", h.MarkRead).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/archive", h.Archive).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/open", h.OpenThread).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/close", h.CloseThread).Methods(http.MethodPost)

	api.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}", h.DeleteMessage).Methods(http.MethodDelete)

	api.HandleFunc("/unread", h.Unread).Methods(http.MethodGet)
	api.HandleFunc("/presence", h.Heartbeat).Methods(http.MethodPost)
	api.HandleFunc("/typing", h.Typing).Methods(http.MethodPost)

	api.HandleFunc("/notifications", h.Notifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.ReadNotification).Methods(http.MethodPost)

	api.HandleFunc("/contacts", h.Contacts).Methods(http.MethodGet)

	api.HandleFunc("/sync/stream", h.Stream).Methods(http.MethodGet)

	return r
}
