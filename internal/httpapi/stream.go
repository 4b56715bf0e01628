package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const streamKeepAlive = 25 * time.Second

// Stream is the server-sent-event endpoint carrying a user's live sync
// session: new-message, conversation-list, thread, and unread frames. The
// session's coordinator, presence heartbeat, and typing debouncer live for
// exactly as long as this request.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session, err := h.sessions.Open(r.Context(), userID)
	if err != nil {
		h.log.Error("sync session open failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "sync channel unavailable")
		return
	}
	defer h.sessions.Close(session)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case ev := <-session.Events:
			data, err := json.Marshal(ev.Data)
			if err != nil {
				h.log.Warn("unencodable stream event", zap.String("type", ev.Type), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// OpenThread subscribes the caller's session to a conversation's thread
// channel. Requires a live stream.
func (h *Handler) OpenThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	conversationID := mux.Vars(r)["id"]

	session := h.sessions.Get(userID)
	if session == nil {
		writeError(w, http.StatusConflict, "no live sync stream for this user")
		return
	}
	if !h.participates(r, userID, conversationID) {
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}
	if err := session.Coordinator.OpenThread(r.Context(), conversationID); err != nil {
		writeError(w, http.StatusBadGateway, "thread subscription failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseThread drops the caller's thread subscription.
func (h *Handler) CloseThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	session := h.sessions.Get(userID)
	if session == nil {
		writeError(w, http.StatusConflict, "no live sync stream for this user")
		return
	}
	session.Coordinator.CloseThread(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}
