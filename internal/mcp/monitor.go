package mcp

import (
	"sync"
	"time"
)

// maxBackoffShift bounds the exponent so the doubling arithmetic can never
// overflow a Duration regardless of how many attempts accumulate.
const maxBackoffShift = 20

// backoffSchedule computes retry delays for the reconnect loop: exponential
// doubling from an initial delay up to a ceiling, and a single long cooldown
// once the attempt budget is spent, after which the ladder starts over.
//
// Thread Safety: all methods are safe for concurrent use.
type backoffSchedule struct {
	initial     time.Duration
	max         time.Duration
	cooldown    time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts int
}

func newBackoffSchedule(initial, max, cooldown time.Duration, maxAttempts int) *backoffSchedule {
	return &backoffSchedule{
		initial:     initial,
		max:         max,
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
	}
}

// next records one failed attempt and returns the delay to wait before the
// next try. The boolean reports whether the delay is the long cooldown; when
// it is, the attempt counter has been reset and the following failure starts
// the ladder from the initial delay again.
func (b *backoffSchedule) next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if b.attempts >= b.maxAttempts {
		b.attempts = 0
		return b.cooldown, true
	}

	shift := b.attempts - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := b.initial << shift
	if delay > b.max || delay <= 0 {
		delay = b.max
	}
	return delay, false
}

// reset clears the consecutive failure counter after a successful connect.
func (b *backoffSchedule) reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}

// count returns the consecutive failures since the last reset or cooldown.
func (b *backoffSchedule) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
