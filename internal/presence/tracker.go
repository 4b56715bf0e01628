// Package presence maintains a user's online state via an immediate
// mark-online write and a fixed-period heartbeat. Going offline is inferred
// by other clients from timestamp staleness; the explicit offline write on
// Stop is a latency optimization only, since client teardown is not
// guaranteed to run.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Writer persists one user's presence record. Each client writes only its
// own row, so no read-modify-write handling is needed.
type Writer interface {
	SetPresence(ctx context.Context, userID string, online bool, activityAt time.Time) error
}

type Tracker struct {
	writer   Writer
	userID   string
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTracker(writer Writer, userID string, interval time.Duration, log *zap.Logger) *Tracker {
	return &Tracker{
		writer:   writer,
		userID:   userID,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Start marks the user online immediately and begins the heartbeat loop.
// Write failures are logged and swallowed; presence is best-effort.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.write(ctx, true)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.write(ctx, true)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the heartbeat and issues a best-effort offline write.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	t.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	t.write(ctx, false)
}

func (t *Tracker) write(ctx context.Context, online bool) {
	if err := t.writer.SetPresence(ctx, t.userID, online, t.now()); err != nil {
		t.log.Warn("presence write failed",
			zap.String("user_id", t.userID), zap.Bool("online", online), zap.Error(err))
	}
}

// Online derives the displayed state from the flag plus timestamp
// staleness: a stale heartbeat means offline regardless of the flag.
func Online(isOnline bool, lastActivityAt *time.Time, threshold time.Duration, now time.Time) bool {
	if !isOnline || lastActivityAt == nil {
		return false
	}
	return now.Sub(*lastActivityAt) <= threshold
}
