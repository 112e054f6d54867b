package core

import "time"

// Backoff describes how the core re-subscribes after the item feed fails.
// Delays grow as Base * 2^attempt, capped at Max. Attempts of zero means
// retry without limit.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// DefaultBackoff is used by WithRetry when a zero Backoff is passed.
var DefaultBackoff = Backoff{
	Base: 250 * time.Millisecond,
	Max:  30 * time.Second,
}

// Delay returns how long to wait before retry number attempt (zero-based),
// and false once the attempts are exhausted.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if b.Attempts > 0 && attempt >= b.Attempts {
		return 0, false
	}

	base := b.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = DefaultBackoff.Max
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling, true
		}
	}
	if delay > ceiling {
		delay = ceiling
	}
	return delay, true
}
