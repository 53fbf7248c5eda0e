package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// RetrySchedule overrides the computed backoff: the wait after failed
	// attempt n is RetrySchedule[n-1], clamped to the last element.
	RetrySchedule []time.Duration
	// BackoffOnFinalAttempt serves the backoff after the last failed attempt
	// too, before the error is surfaced.
	BackoffOnFinalAttempt bool

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Second,
		RetryMaxBackoff:     4 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// DownloadConfig is the document download policy: three attempts separated by
// 1s, 2s and 4s.
func DownloadConfig() Config {
	cfg := DefaultConfig()
	cfg.RetrySchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	cfg.BackoffOnFinalAttempt = true
	cfg.BreakerEnabled = false
	return cfg
}

// ScheduleFrom builds an exponential schedule of n delays starting at initial.
func ScheduleFrom(initial time.Duration, multiplier float64, n int) []time.Duration {
	if n <= 0 || initial <= 0 {
		return nil
	}
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	out := make([]time.Duration, 0, n)
	wait := initial
	for i := 0; i < n; i++ {
		out = append(out, wait)
		wait = time.Duration(float64(wait) * multiplier)
	}
	return out
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// backoffFor returns the wait after failed attempt (1-based).
func (c Config) backoffFor(attempt int) time.Duration {
	if len(c.RetrySchedule) > 0 {
		idx := attempt - 1
		if idx >= len(c.RetrySchedule) {
			idx = len(c.RetrySchedule) - 1
		}
		return c.RetrySchedule[idx]
	}
	wait := c.RetryInitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
		if wait >= c.RetryMaxBackoff {
			return c.RetryMaxBackoff
		}
	}
	if wait > c.RetryMaxBackoff {
		wait = c.RetryMaxBackoff
	}
	return wait
}
