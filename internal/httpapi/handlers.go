// Package httpapi exposes the conversation sync core over HTTP: JSON
// endpoints for the store-backed operations and a server-sent-event stream
// carrying each user's live sync session.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"carematch/internal/config"
	"carematch/internal/identity"
	"carematch/internal/messaging"
	"carematch/internal/notify"
	"carematch/internal/presence"
	"carematch/internal/store"
	"carematch/internal/unread"
)

// TypingState is the ephemeral typing flag store, scalar per user.
type TypingState interface {
	Set(ctx context.Context, userID, conversationID string) error
	Clear(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (conversationID string, ok bool, err error)
}

type Handler struct {
	cfg           *config.Config
	conversations store.ConversationRepository
	messages      store.MessageRepository
	profiles      store.ProfileRepository
	pipeline      *messaging.Pipeline
	resolver      *identity.Resolver
	notifications *notify.Service
	typing        TypingState
	sessions      *SessionRegistry
	log           *zap.Logger
}

func NewHandler(
	cfg *config.Config,
	conversations store.ConversationRepository,
	messages store.MessageRepository,
	profiles store.ProfileRepository,
	pipeline *messaging.Pipeline,
	resolver *identity.Resolver,
	notifications *notify.Service,
	typing TypingState,
	sessions *SessionRegistry,
	log *zap.Logger,
) *Handler {
	return &Handler{
		cfg:           cfg,
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
		pipeline:      pipeline,
		resolver:      resolver,
		notifications: notifications,
		typing:        typing,
		sessions:      sessions,
		log:           log,
	}
}

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	RecipientID    string `json:"recipient_id"`
	Content        string `json:"content"`
}

// SendMessage performs the optimistic send. A pipeline failure surfaces as
// a 502 with no partial body; the caller may re-invoke, there is no retry
// here.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" || req.RecipientID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "conversation_id, recipient_id and content are required")
		return
	}

	// a connected session's coordinator primes its own seen state and
	// echo markers; streamless clients go through the shared pipeline
	var result *messaging.SendResult
	if session := h.sessions.Get(userID); session != nil {
		result = session.Coordinator.Send(r.Context(), req.ConversationID, req.RecipientID, req.Content)
	} else {
		result = h.pipeline.Send(r.Context(), req.ConversationID, userID, req.RecipientID, req.Content)
	}
	if result == nil {
		writeError(w, http.StatusBadGateway, "message could not be delivered")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type createConversationRequest struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantRole string `json:"participant_role"`
}

// CreateConversation finds or creates the single conversation between the
// caller and the given participant, regardless of who initiated first.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	callerRole := h.callerRole(r, userID)
	conv, err := h.conversations.FindOrCreate(r.Context(), userID, req.ParticipantID, callerRole, req.ParticipantRole)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// conversationView is one row of the conversation list, enriched with the
// other participant's resolved profile and the caller's unread count.
type conversationView struct {
	*store.Conversation
	Other       *identity.Profile `json:"other_participant,omitempty"`
	UnreadCount int               `json:"unread_count"`
	OtherTyping bool              `json:"other_typing"`
}

// ListConversations returns the caller's conversations ordered newest
// first, each enriched with the other participant's profile, unread count,
// presence, and typing state.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	rows, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	otherIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		id, _ := row.OtherParticipant(userID)
		otherIDs = append(otherIDs, id)
	}
	resolved, err := h.resolver.Resolve(r.Context(), otherIDs)
	if err != nil {
		h.log.Warn("profile resolve failed for conversation list", zap.Error(err))
		resolved = map[string]*identity.Profile{}
	}

	unreadRows, err := h.messages.ListUnread(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to tally unread messages")
		return
	}
	counts := unread.Tally(unreadRows)

	now := time.Now().UTC()
	views := make([]conversationView, 0, len(rows))
	for _, row := range rows {
		otherID, _ := row.OtherParticipant(userID)
		view := conversationView{
			Conversation: row,
			Other:        resolved[otherID],
			UnreadCount:  counts[row.ID],
		}
		if view.Other != nil {
			view.Other.IsOnline = presence.Online(
				view.Other.IsOnline, view.Other.LastActivityAt,
				h.cfg.Presence.StalenessThreshold, now)
		}
		if typingConv, typingOK, err := h.typing.Get(r.Context(), otherID); err == nil && typingOK {
			view.OtherTyping = typingConv == row.ID
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

// History returns the full message history of one conversation.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	conversationID := mux.Vars(r)["id"]
	if !h.participates(r, userID, conversationID) {
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	messages, err := h.pipeline.History(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// MarkRead flips every unread message addressed to the caller in the
// conversation and reports how many rows changed.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	conversationID := mux.Vars(r)["id"]

	affected, err := h.pipeline.MarkRead(r.Context(), conversationID, userID)
	if err != nil {
		h.log.Error("mark read failed", zap.String("conversation_id", conversationID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark conversation read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked_read": affected})
}

// Archive flips the conversation's status so it no longer appears in the
// default list.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	conversationID := mux.Vars(r)["id"]
	if !h.participates(r, userID, conversationID) {
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	if err := h.conversations.Archive(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to archive conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessage removes one of the caller's own messages.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	messageID := mux.Vars(r)["id"]

	if err := h.pipeline.Delete(r.Context(), messageID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found or not yours")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unread returns the caller's per-conversation unread counts plus the total
// used for the badge. Recomputed from scratch on every call.
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	rows, err := h.messages.ListUnread(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to tally unread messages")
		return
	}
	counts := unread.Tally(rows)
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counts": counts,
		"total":  total,
	})
}

type presenceRequest struct {
	IsOnline bool `json:"is_online"`
}

// Heartbeat records a presence write for the caller. Clients that cannot
// hold the sync stream open use this as their heartbeat endpoint.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	req := presenceRequest{IsOnline: true}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.profiles.SetPresence(r.Context(), userID, req.IsOnline, time.Now().UTC()); err != nil {
		h.log.Warn("presence write failed", zap.String("user_id", userID), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

type typingRequest struct {
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// Typing records or clears the caller's typing signal. A user is typing in
// at most one conversation at a time; a write for a second conversation
// replaces the first. Failures degrade to not-typing silently.
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.IsTyping && req.ConversationID != "" {
		if session := h.sessions.Get(userID); session != nil {
			session.Typing.OnTextChange(r.Context(), req.ConversationID)
		} else if err := h.typing.Set(r.Context(), userID, req.ConversationID); err != nil {
			h.log.Warn("typing write failed", zap.String("user_id", userID), zap.Error(err))
		}
	} else {
		if session := h.sessions.Get(userID); session != nil {
			session.Typing.Clear(r.Context())
		} else if err := h.typing.Clear(r.Context(), userID); err != nil {
			h.log.Warn("typing clear failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// notificationView adds the derived grouped count next to the raw record.
type notificationView struct {
	*store.Notification
	Count int `json:"count"`
}

// Notifications lists the caller's notifications, newest activity first.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	rows, err := h.notifications.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	views := make([]notificationView, 0, len(rows))
	for _, row := range rows {
		views = append(views, notificationView{Notification: row, Count: notify.GroupedCount(row)})
	}
	writeJSON(w, http.StatusOK, views)
}

// ReadNotification marks one of the caller's notifications read, which also
// ends its grouping window.
func (h *Handler) ReadNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	id := mux.Vars(r)["id"]

	if err := h.notifications.MarkRead(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Contacts lists profiles the caller is allowed to start conversations
// with. Employers see workers and agencies, workers see employers and
// agencies, agencies see both client sides.
func (h *Handler) Contacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var roles []string
	switch h.callerRole(r, userID) {
	case store.RoleEmployer:
		roles = []string{store.RoleWorker, store.RoleAgency}
	case store.RoleWorker:
		roles = []string{store.RoleEmployer, store.RoleAgency}
	case store.RoleAgency:
		roles = []string{store.RoleEmployer, store.RoleWorker}
	default:
		writeError(w, http.StatusForbidden, "caller has no recognized role")
		return
	}

	contacts, err := h.profiles.ListByRoles(r.Context(), roles, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *Handler) callerRole(r *http.Request, userID string) string {
	resolved, err := h.resolver.Resolve(r.Context(), []string{userID})
	if err != nil {
		h.log.Warn("caller role resolve failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if p, ok := resolved[userID]; ok {
		return p.Role
	}
	return ""
}

func (h *Handler) participates(r *http.Request, userID, conversationID string) bool {
	conv, err := h.conversations.ByID(r.Context(), conversationID)
	if err != nil {
		return false
	}
	return conv.Involves(userID)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
