package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carematch/internal/identity"
	"carematch/internal/logger"
	"carematch/internal/realtime"
	"carematch/internal/store"
	"carematch/internal/store/mocks"
)

type notifyCall struct {
	recipientID    string
	conversationID string
	senderName     string
	preview        string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, recipientID, conversationID, senderName, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{recipientID, conversationID, senderName, preview})
	return f.err
}

type fakePublisher struct {
	mu            sync.Mutex
	conversations []realtime.Event
	threads       []realtime.Event
	err           error
}

func (f *fakePublisher) PublishConversation(_ context.Context, _ string, ev realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, ev)
	return f.err
}

func (f *fakePublisher) PublishThread(_ context.Context, _ string, ev realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, ev)
	return f.err
}

func newTestPipeline(t *testing.T) (*Pipeline, *mocks.MockMessageRepository, *mocks.MockProfileRepository, *fakeNotifier, *fakePublisher, *SentMarkers) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	messages := mocks.NewMockMessageRepository(ctrl)
	profiles := mocks.NewMockProfileRepository(ctrl)
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	markers := NewSentMarkers(5 * time.Second)

	resolver := identity.NewResolver(profiles, logger.NewNop())
	pipeline := NewPipeline(messages, resolver, notifier, publisher, markers, 100, logger.NewNop())
	return pipeline, messages, profiles, notifier, publisher, markers
}

func conversationFixture() *store.Conversation {
	return &store.Conversation{
		ID:               "conv-1",
		ParticipantAID:   "alice",
		ParticipantBID:   "bob",
		ParticipantARole: store.RoleWorker,
		ParticipantBRole: store.RoleEmployer,
		Status:           store.ConversationActive,
	}
}

func TestPipeline_SendSuccess(t *testing.T) {
	pipeline, messages, profiles, notifier, publisher, markers := newTestPipeline(t)

	content := strings.Repeat("x", 120)
	wantPreview := strings.Repeat("x", 100) + "..."

	messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), wantPreview).
		DoAndReturn(func(_ context.Context, msg *store.Message, preview string) (*store.Message, *store.Conversation, error) {
			// the echo marker must already be down when the write runs
			assert.True(t, markers.IsSelfEcho("conv-1", time.Now()))
			msg.ID = "m1"
			msg.CreatedAt = time.Now().UTC()
			conv := conversationFixture()
			conv.LastMessagePreview = preview
			conv.LastMessageAt = &msg.CreatedAt
			return msg, conv, nil
		})
	profiles.EXPECT().
		Resolve(gomock.Any(), []string{"alice"}).
		Return(&store.ProfileRows{
			Base: []store.Profile{{ID: "alice", DisplayName: "Alice", Role: store.RoleWorker}},
		}, nil)

	result := pipeline.Send(context.Background(), "conv-1", "alice", "bob", content)

	require.NotNil(t, result)
	assert.Equal(t, "m1", result.Message.ID)
	assert.Equal(t, wantPreview, result.Conversation.LastMessagePreview)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, notifyCall{"bob", "conv-1", "Alice", wantPreview}, notifier.calls[0])

	require.Len(t, publisher.conversations, 1)
	require.Len(t, publisher.threads, 1)
	assert.Equal(t, "m1", publisher.threads[0].MessageID)
	assert.Equal(t, "alice", publisher.threads[0].SenderID)
}

func TestPipeline_SendMissingIDsIsNoOp(t *testing.T) {
	pipeline, _, _, notifier, publisher, _ := newTestPipeline(t)

	assert.Nil(t, pipeline.Send(context.Background(), "", "alice", "bob", "hi"))
	assert.Nil(t, pipeline.Send(context.Background(), "conv-1", "", "bob", "hi"))
	assert.Empty(t, notifier.calls)
	assert.Empty(t, publisher.conversations)
}

func TestPipeline_SendWriteFailureReturnsNil(t *testing.T) {
	pipeline, messages, _, notifier, publisher, _ := newTestPipeline(t)

	messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil, errors.New("connection reset"))

	result := pipeline.Send(context.Background(), "conv-1", "alice", "bob", "hi")

	assert.Nil(t, result, "write failure yields an empty result, not a panic")
	assert.Empty(t, notifier.calls, "no notification for a send that never landed")
	assert.Empty(t, publisher.threads)
}

func TestPipeline_NotifierFailureDoesNotFailSend(t *testing.T) {
	pipeline, messages, profiles, notifier, _, _ := newTestPipeline(t)
	notifier.err = errors.New("notification table locked")

	messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *store.Message, _ string) (*store.Message, *store.Conversation, error) {
			msg.ID = "m1"
			return msg, conversationFixture(), nil
		})
	profiles.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(&store.ProfileRows{}, nil)

	result := pipeline.Send(context.Background(), "conv-1", "alice", "bob", "hi")
	require.NotNil(t, result, "notification failure must not roll back the send")
}

func TestPipeline_SenderNameFallsBackToRole(t *testing.T) {
	pipeline, messages, profiles, notifier, _, _ := newTestPipeline(t)

	messages.EXPECT().
		Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *store.Message, _ string) (*store.Message, *store.Conversation, error) {
			msg.ID = "m1"
			return msg, conversationFixture(), nil
		})
	// no profile rows at all for the sender
	profiles.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(&store.ProfileRows{}, nil)

	result := pipeline.Send(context.Background(), "conv-1", "alice", "bob", "hi")

	require.NotNil(t, result)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "Worker", notifier.calls[0].senderName)
}
