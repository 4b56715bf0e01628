package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carematch/internal/config"
	"carematch/internal/identity"
	"carematch/internal/logger"
	"carematch/internal/messaging"
	"carematch/internal/notify"
	"carematch/internal/realtime"
	"carematch/internal/store"
	"carematch/internal/store/mocks"
)

const testSecret = "test-secret"

type fakeTyping struct {
	conversations map[string]string
}

func (f *fakeTyping) Set(_ context.Context, userID, conversationID string) error {
	f.conversations[userID] = conversationID
	return nil
}

func (f *fakeTyping) Clear(_ context.Context, userID string) error {
	delete(f.conversations, userID)
	return nil
}

func (f *fakeTyping) Get(_ context.Context, userID string) (string, bool, error) {
	id, ok := f.conversations[userID]
	return id, ok, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishConversation(context.Context, string, realtime.Event) error { return nil }
func (nopPublisher) PublishThread(context.Context, string, realtime.Event) error       { return nil }

type testEnv struct {
	router        http.Handler
	conversations *mocks.MockConversationRepository
	messages      *mocks.MockMessageRepository
	profiles      *mocks.MockProfileRepository
	notifications *mocks.MockNotificationRepository
	typing        *fakeTyping
}

func newTestEnv(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	env := &testEnv{
		conversations: mocks.NewMockConversationRepository(ctrl),
		messages:      mocks.NewMockMessageRepository(ctrl),
		profiles:      mocks.NewMockProfileRepository(ctrl),
		notifications: mocks.NewMockNotificationRepository(ctrl),
		typing:        &fakeTyping{conversations: make(map[string]string)},
	}

	cfg := &config.Config{
		Messaging: config.MessagingConfig{PreviewLength: 100, TypingDebounce: 3 * time.Second},
		Presence:  config.PresenceConfig{StalenessThreshold: 5 * time.Minute},
		Sync:      config.SyncConfig{PollInterval: 5 * time.Second, SelfEchoWindow: 5 * time.Second},
	}

	log := logger.NewNop()
	resolver := identity.NewResolver(env.profiles, log)
	notifications := notify.NewService(env.notifications, log)
	pipeline := messaging.NewPipeline(
		env.messages, resolver, notifications, nopPublisher{},
		messaging.NewSentMarkers(cfg.Sync.SelfEchoWindow), cfg.Messaging.PreviewLength, log)

	handler := NewHandler(
		cfg, env.conversations, env.messages, env.profiles,
		pipeline, resolver, notifications, env.typing,
		NewSessionRegistry(nil, log), log)
	env.router = NewRouter(handler, testSecret)
	return env
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, userID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		token, err := GenerateToken(testSecret, userID, store.RoleWorker)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAuth_MissingTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/unread", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_GarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/unread", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)

	env.messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), "hello").
		DoAndReturn(func(_ context.Context, msg *store.Message, _ string) (*store.Message, *store.Conversation, error) {
			msg.ID = "m1"
			return msg, &store.Conversation{ID: "conv-1", ParticipantAID: "alice", ParticipantBID: "bob"}, nil
		})
	env.profiles.EXPECT().Resolve(gomock.Any(), []string{"alice"}).
		Return(&store.ProfileRows{Base: []store.Profile{{ID: "alice", DisplayName: "Alice"}}}, nil)
	env.notifications.EXPECT().FindGroupable(gomock.Any(), "bob", "conv-1").
		Return(nil, store.ErrNotFound)
	env.notifications.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	rec := env.request(t, http.MethodPost, "/api/messages", sendRequest{
		ConversationID: "conv-1", RecipientID: "bob", Content: "hello",
	}, "alice")

	require.Equal(t, http.StatusCreated, rec.Code)
	var result messaging.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "m1", result.Message.ID)
}

func TestSendMessage_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPost, "/api/messages", sendRequest{Content: "hi"}, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_WriteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil, assert.AnError)

	rec := env.request(t, http.MethodPost, "/api/messages", sendRequest{
		ConversationID: "conv-1", RecipientID: "bob", Content: "hello",
	}, "alice")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)
	lastAt := time.Now().UTC().Add(-time.Minute)

	env.conversations.EXPECT().List(gomock.Any(), "alice").
		Return([]*store.Conversation{{
			ID:               "conv-1",
			ParticipantAID:   "alice",
			ParticipantBID:   "bob",
			ParticipantBRole: store.RoleWorker,
			LastMessageAt:    &lastAt,
		}}, nil)
	env.profiles.EXPECT().Resolve(gomock.Any(), []string{"bob"}).
		Return(&store.ProfileRows{Base: []store.Profile{{ID: "bob", DisplayName: "Bob"}}}, nil)
	env.messages.EXPECT().ListUnread(gomock.Any(), "alice").
		Return([]store.UnreadMessage{
			{ID: "m1", ConversationID: "conv-1"},
			{ID: "m2", ConversationID: "conv-1"},
		}, nil)
	env.typing.conversations["bob"] = "conv-1"

	rec := env.request(t, http.MethodGet, "/api/conversations", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []conversationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].UnreadCount)
	assert.True(t, views[0].OtherTyping)
	require.NotNil(t, views[0].Other)
	assert.Equal(t, "Bob", views[0].Other.DisplayName)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	env.messages.EXPECT().MarkRead(gomock.Any(), "conv-1", "alice").Return(int64(3), nil)

	rec := env.request(t, http.MethodPost, "/api/conversations/conv-1/read", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body["marked_read"])
}

func TestUnreadBadge(t *testing.T) {
	env := newTestEnv(t)
	env.messages.EXPECT().ListUnread(gomock.Any(), "alice").
		Return([]store.UnreadMessage{
			{ID: "m1", ConversationID: "conv-1"},
			{ID: "m2", ConversationID: "conv-1"},
			{ID: "m3", ConversationID: "conv-2"},
		}, nil)

	rec := env.request(t, http.MethodGet, "/api/unread", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Counts map[string]int `json:"counts"`
		Total  int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.Counts["conv-1"])
}

func TestContacts_RoleGated(t *testing.T) {
	env := newTestEnv(t)

	// the caller is a worker, so only employers and agencies come back
	env.profiles.EXPECT().Resolve(gomock.Any(), []string{"alice"}).
		Return(&store.ProfileRows{Base: []store.Profile{{ID: "alice", Role: store.RoleWorker}}}, nil)
	env.profiles.EXPECT().
		ListByRoles(gomock.Any(), []string{store.RoleEmployer, store.RoleAgency}, "alice").
		Return([]store.Profile{{ID: "emp-1", Role: store.RoleEmployer}}, nil)

	rec := env.request(t, http.MethodGet, "/api/contacts", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var contacts []store.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, "emp-1", contacts[0].ID)
}

func TestArchive_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.conversations.EXPECT().ByID(gomock.Any(), "conv-9").
		Return(&store.Conversation{ID: "conv-9", ParticipantAID: "alice", ParticipantBID: "bob"}, nil)
	env.conversations.EXPECT().Archive(gomock.Any(), "conv-9").Return(store.ErrNotFound)

	rec := env.request(t, http.MethodPost, "/api/conversations/conv-9/archive", nil, "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMessage_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	env.messages.EXPECT().Delete(gomock.Any(), "m1", "alice").Return(store.ErrNotFound)

	rec := env.request(t, http.MethodDelete, "/api/messages/m1", nil, "alice")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotifications_ListWithCounts(t *testing.T) {
	env := newTestEnv(t)

	// grouped message notifications carry a count; other notification
	// types share the row shape but have no grouping concept
	env.notifications.EXPECT().ByRecipient(gomock.Any(), "alice", 50, 0).
		Return([]*store.Notification{
			{ID: "n1", Type: store.MessageReceivedType, Title: "Bob (3 messages)", GroupedCount: 3},
			{ID: "n2", Type: store.SystemType, Title: "Welcome to CareMatch"},
		}, nil)

	rec := env.request(t, http.MethodGet, "/api/notifications", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []notificationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, 3, views[0].Count)
	assert.Equal(t, 1, views[1].Count)
}

func TestReadNotification(t *testing.T) {
	env := newTestEnv(t)
	env.notifications.EXPECT().MarkRead(gomock.Any(), "n1", "alice").Return(nil)

	rec := env.request(t, http.MethodPost, "/api/notifications/n1/read", nil, "alice")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTyping_WritesAndClears(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/typing", typingRequest{
		ConversationID: "conv-1", IsTyping: true,
	}, "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "conv-1", env.typing.conversations["alice"])

	rec = env.request(t, http.MethodPost, "/api/typing", typingRequest{IsTyping: false}, "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := env.typing.conversations["alice"]
	assert.False(t, ok)
}
