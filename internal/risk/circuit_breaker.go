package risk

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState represents the portfolio circuit-breaker state.
type BreakerState int

const (
	BreakerNormal BreakerState = iota
	BreakerEmergencyStop
)

func (s BreakerState) String() string {
	switch s {
	case BreakerNormal:
		return "NORMAL"
	case BreakerEmergencyStop:
		return "EMERGENCY_STOP"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker is the portfolio-wide kill switch. Once tripped, every
// trade is rejected until the cooldown elapses. Recovery is lazy: the
// transition back to Normal happens on the first read after the cooldown,
// not on a timer. Thread-safe.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     BreakerState
	reason    string
	trippedAt time.Time
	cooldown  time.Duration

	now func() time.Time // test seam
}

// NewCircuitBreaker creates a breaker in the Normal state.
func NewCircuitBreaker(cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:    BreakerNormal,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Trip flips the breaker to EmergencyStop, recording the reason and the
// trigger time. Tripping an already-open breaker refreshes neither.
func (cb *CircuitBreaker) Trip(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerEmergencyStop {
		return
	}
	cb.state = BreakerEmergencyStop
	cb.reason = reason
	cb.trippedAt = cb.now()
	slog.Warn("Circuit breaker EMERGENCY_STOP",
		slog.String("reason", reason),
		slog.Duration("cooldown", cb.cooldown))
}

// Active reports whether the emergency stop is in force, transitioning back
// to Normal first when the cooldown has elapsed.
func (cb *CircuitBreaker) Active() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != BreakerEmergencyStop {
		return false
	}
	if cb.now().Sub(cb.trippedAt) >= cb.cooldown {
		cb.state = BreakerNormal
		cb.reason = ""
		slog.Info("Circuit breaker recovered to NORMAL (cooldown elapsed)")
		return false
	}
	return true
}

// Remaining returns the cooldown left before recovery, zero when Normal.
func (cb *CircuitBreaker) Remaining() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != BreakerEmergencyStop {
		return 0
	}
	left := cb.cooldown - cb.now().Sub(cb.trippedAt)
	if left < 0 {
		return 0
	}
	return left
}

// State returns the raw state without triggering lazy recovery.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reason returns what tripped the breaker, empty when Normal.
func (cb *CircuitBreaker) Reason() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.reason
}
