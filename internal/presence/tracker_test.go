package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carematch/internal/logger"
)

type presenceWrite struct {
	userID string
	online bool
	at     time.Time
}

type fakeWriter struct {
	mu     sync.Mutex
	writes []presenceWrite
}

func (f *fakeWriter) SetPresence(_ context.Context, userID string, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, presenceWrite{userID, online, at})
	return nil
}

func (f *fakeWriter) snapshot() []presenceWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presenceWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func TestTracker_HeartbeatAndStop(t *testing.T) {
	writer := &fakeWriter{}
	tracker := NewTracker(writer, "u1", 20*time.Millisecond, logger.NewNop())

	tracker.Start(context.Background())

	// immediate mark-online plus at least one heartbeat
	require.Eventually(t, func() bool {
		return len(writer.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	first := writer.snapshot()[0]
	assert.Equal(t, "u1", first.userID)
	assert.True(t, first.online)

	tracker.Stop()

	writes := writer.snapshot()
	last := writes[len(writes)-1]
	assert.False(t, last.online, "Stop issues a best-effort offline write")

	// all heartbeats before Stop are online writes
	for _, w := range writes[:len(writes)-1] {
		assert.True(t, w.online)
	}
}

func TestTracker_StartIsIdempotent(t *testing.T) {
	writer := &fakeWriter{}
	tracker := NewTracker(writer, "u1", time.Hour, logger.NewNop())

	tracker.Start(context.Background())
	tracker.Start(context.Background())
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		return len(writer.snapshot()) >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, writer.snapshot(), 1, "second Start must not double the heartbeat")
}

func TestOnline_StalenessInference(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Minute)
	stale := now.Add(-10 * time.Minute)

	tests := []struct {
		name     string
		flag     bool
		activity *time.Time
		want     bool
	}{
		{"online with fresh heartbeat", true, &fresh, true},
		{"flag set but heartbeat stale", true, &stale, false},
		{"flag cleared", false, &fresh, false},
		{"no activity recorded", true, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Online(tt.flag, tt.activity, 5*time.Minute, now)
			assert.Equal(t, tt.want, got)
		})
	}
}
