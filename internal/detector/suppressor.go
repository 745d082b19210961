package detector

import (
	"sync"
	"time"

	"crypto-volatility-alerts/internal/asset"
)

type suppressKey struct {
	asset     asset.Asset
	direction Direction
}

// Suppressor de-duplicates alert emissions: a repeat event for the
// same asset and direction within one window of the previous emission
// is dropped, which keeps a sustained spike from producing an alert
// storm. State is explicit and owned by the caller, keeping the
// Detector itself pure.
type Suppressor struct {
	window time.Duration

	mu   sync.Mutex
	last map[suppressKey]time.Time
}

// NewSuppressor constructs a Suppressor with the given de-dup window.
func NewSuppressor(window time.Duration) *Suppressor {
	return &Suppressor{
		window: window,
		last:   make(map[suppressKey]time.Time),
	}
}

// Allow reports whether the event should be delivered, recording the
// emission time when it is. Decisions compare event window ends rather
// than wall clock so replayed history behaves the same as live ticks.
func (s *Suppressor) Allow(event AlertEvent) bool {
	key := suppressKey{asset: event.Asset, direction: event.Direction}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.last[key]; ok && event.WindowEnd.Sub(prev) < s.window {
		return false
	}
	s.last[key] = event.WindowEnd
	return true
}
