package infra

import (
	"sync"
	"time"
)

// ErrorBudget counts transient errors inside a rolling one-hour window.
// When the count crosses the limit the budget reports exhausted; the
// window start resets once an hour has elapsed. Thread-safe.
type ErrorBudget struct {
	mu          sync.Mutex
	limit       int
	count       int
	windowStart time.Time

	now func() time.Time // test seam
}

// NewErrorBudget creates a budget. A non-positive limit disables
// exhaustion entirely.
func NewErrorBudget(limit int) *ErrorBudget {
	return &ErrorBudget{limit: limit, now: time.Now}
}

// Record counts one error and reports whether the budget is now exhausted.
func (b *ErrorBudget) Record() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	b.count++
	return b.limit > 0 && b.count > b.limit
}

// Count returns the errors recorded in the current window.
func (b *ErrorBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	return b.count
}

// Reset clears the window. Called by the housekeeping loop.
func (b *ErrorBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count = 0
	b.windowStart = b.now()
}

// roll must be called with the lock held.
func (b *ErrorBudget) roll() {
	now := b.now()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= time.Hour {
		b.windowStart = now
		b.count = 0
	}
}
