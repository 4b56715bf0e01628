package messaging

import (
	"sync"
	"time"
)

// SentMarkers records when this client last sent into each conversation so
// inbound push events that merely echo a local send can be recognized.
// Markers are recorded before the network call is issued: a push event that
// arrives before the write resolves must still classify correctly.
type SentMarkers struct {
	window time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewSentMarkers(window time.Duration) *SentMarkers {
	return &SentMarkers{
		window:   window,
		lastSent: make(map[string]time.Time),
	}
}

// MarkSent records a local send into the conversation at the given time.
func (m *SentMarkers) MarkSent(conversationID string, at time.Time) {
	m.mu.Lock()
	m.lastSent[conversationID] = at
	m.mu.Unlock()
}

// IsSelfEcho reports whether an event timestamp falls inside the echo
// window after the conversation's last local send: delta in [0, window).
// Events before the marker or at/after the window boundary are not echoes.
func (m *SentMarkers) IsSelfEcho(conversationID string, eventTime time.Time) bool {
	m.mu.Lock()
	last, ok := m.lastSent[conversationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	delta := eventTime.Sub(last)
	return delta >= 0 && delta < m.window
}
