package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carematch/internal/logger"
)

type fakeStore struct {
	mu       sync.Mutex
	sets     []string // conversation ids
	setTimes []time.Time
	clears   int
}

func (f *fakeStore) Set(_ context.Context, _, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, conversationID)
	f.setTimes = append(f.setTimes, time.Now())
	return nil
}

func (f *fakeStore) Clear(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeStore) counts() (sets, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets), f.clears
}

func TestController_DebounceClearsExactlyOnce(t *testing.T) {
	store := &fakeStore{}
	c := NewController(store, "u1", 50*time.Millisecond, logger.NewNop())

	c.OnTextChange(context.Background(), "conv-1")
	c.OnTextChange(context.Background(), "conv-1")
	c.OnTextChange(context.Background(), "conv-1")

	require.Eventually(t, func() bool {
		_, clears := store.counts()
		return clears == 1
	}, time.Second, 5*time.Millisecond)

	// settle past another debounce window: still exactly one clear
	time.Sleep(80 * time.Millisecond)
	sets, clears := store.counts()
	assert.Equal(t, 3, sets, "every keystroke refreshes the typing flag")
	assert.Equal(t, 1, clears)
}

func TestController_KeystrokeRestartsTimer(t *testing.T) {
	store := &fakeStore{}
	c := NewController(store, "u1", 60*time.Millisecond, logger.NewNop())

	c.OnTextChange(context.Background(), "conv-1")
	time.Sleep(40 * time.Millisecond)
	c.OnTextChange(context.Background(), "conv-1")
	time.Sleep(40 * time.Millisecond)

	_, clears := store.counts()
	assert.Equal(t, 0, clears, "timer restarted by second keystroke")

	require.Eventually(t, func() bool {
		_, clears := store.counts()
		return clears == 1
	}, time.Second, 5*time.Millisecond)
}

func TestController_SwitchingConversationWritesAgain(t *testing.T) {
	store := &fakeStore{}
	c := NewController(store, "u1", time.Hour, logger.NewNop())
	defer c.Clear(context.Background())

	c.OnTextChange(context.Background(), "conv-1")
	c.OnTextChange(context.Background(), "conv-2")

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"conv-1", "conv-2"}, store.sets)
}

func TestController_LongBurstKeepsFlagAlive(t *testing.T) {
	// the backing store expires the flag on its own; a burst of typing
	// longer than that TTL must keep writing so the flag never lapses
	const storeTTL = 250 * time.Millisecond
	store := &fakeStore{}
	c := NewController(store, "u1", 100*time.Millisecond, logger.NewNop())

	deadline := time.Now().Add(2 * storeTTL)
	for time.Now().Before(deadline) {
		c.OnTextChange(context.Background(), "conv-1")
		time.Sleep(25 * time.Millisecond)
	}

	store.mu.Lock()
	times := append([]time.Time(nil), store.setTimes...)
	clears := store.clears
	store.mu.Unlock()

	require.Greater(t, len(times), 1)
	for i := 1; i < len(times); i++ {
		assert.Less(t, times[i].Sub(times[i-1]), storeTTL,
			"consecutive writes must land before the store TTL can elapse")
	}
	assert.Equal(t, 0, clears, "no clear while keystrokes keep arriving")

	require.Eventually(t, func() bool {
		_, clears := store.counts()
		return clears == 1
	}, time.Second, 10*time.Millisecond)
}

func TestController_ExplicitClear(t *testing.T) {
	store := &fakeStore{}
	c := NewController(store, "u1", time.Hour, logger.NewNop())

	c.OnTextChange(context.Background(), "conv-1")
	c.Clear(context.Background())
	c.Clear(context.Background()) // second clear is a no-op

	sets, clears := store.counts()
	assert.Equal(t, 1, sets)
	assert.Equal(t, 1, clears)
}
