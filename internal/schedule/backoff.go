package schedule

import "time"

// Backoff computes retry delays: base * 2^attempt, capped, with a random
// jitter of up to ±JitterFrac applied last. The pre-jitter delay is
// monotonically non-decreasing in the attempt count.
type Backoff struct {
	Base       time.Duration
	Cap        time.Duration
	JitterFrac float64
}

// Delay returns the wait before retry number attempt (0-based). rnd must
// yield values in [0,1); tests pass a fixed function.
func (b Backoff) Delay(attempt int, rnd func() float64) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	capped := b.Cap
	if capped < base {
		capped = base
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= capped {
			d = capped
			break
		}
	}

	if b.JitterFrac > 0 && rnd != nil {
		jitter := time.Duration(float64(d) * b.JitterFrac * (2*rnd() - 1))
		d += jitter
	}
	if d < base/2 {
		d = base / 2
	}
	return d
}
