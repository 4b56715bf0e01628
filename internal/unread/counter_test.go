package unread

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carematch/internal/store"
)

type fakeLister struct {
	rows []store.UnreadMessage
	err  error
}

func (f *fakeLister) ListUnread(context.Context, string) ([]store.UnreadMessage, error) {
	return f.rows, f.err
}

func TestTally_Idempotent(t *testing.T) {
	rows := []store.UnreadMessage{
		{ID: "m1", ConversationID: "c1"},
		{ID: "m2", ConversationID: "c2"},
		{ID: "m3", ConversationID: "c1"},
		{ID: "m4", ConversationID: "c1"},
	}

	first := Tally(rows)
	second := Tally(rows)

	assert.Equal(t, map[string]int{"c1": 3, "c2": 1}, first)
	assert.Equal(t, first, second)
}

func TestCounter_RefreshReplacesCounts(t *testing.T) {
	lister := &fakeLister{rows: []store.UnreadMessage{
		{ID: "m1", ConversationID: "c1"},
		{ID: "m2", ConversationID: "c1"},
	}}
	counter := NewCounter(lister, "u1")

	_, err := counter.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Count("c1"))
	assert.Equal(t, 2, counter.Total())

	// all messages in c1 marked read: the next refresh drives it to zero
	lister.rows = nil
	_, err = counter.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counter.Count("c1"))
	assert.Equal(t, 0, counter.Total())
}

func TestCounter_RefreshErrorKeepsStaleCounts(t *testing.T) {
	lister := &fakeLister{rows: []store.UnreadMessage{{ID: "m1", ConversationID: "c1"}}}
	counter := NewCounter(lister, "u1")

	_, err := counter.Refresh(context.Background())
	require.NoError(t, err)

	lister.err = errors.New("connection reset")
	_, err = counter.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, counter.Count("c1"), "list stays stale on read failure")
}

func TestCounter_UnknownConversationIsZero(t *testing.T) {
	counter := NewCounter(&fakeLister{}, "u1")
	assert.Equal(t, 0, counter.Count("nope"))
}
