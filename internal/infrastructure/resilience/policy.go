package resilience

import "time"

// RetryPolicy bounds the attempts made for one call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// AfterLimit caps a wait requested by the dependency itself.
	AfterLimit     time.Duration
}

// BreakerPolicy configures the breaker kept per operation name.
type BreakerPolicy struct {
	Disabled         bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig suits object storage, the zero-shot endpoint and the broker.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2,
			AfterLimit:     5 * time.Second,
		},
		Breaker: BreakerPolicy{
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// SingleAttemptConfig keeps the breaker but never retries. Model calls use
// it so a failed completion reaches the caller after one attempt.
func SingleAttemptConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxAttempts = 1
	return cfg
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	r, d := &c.Retry, def.Retry
	r.MaxAttempts = orDefault(r.MaxAttempts, d.MaxAttempts)
	r.InitialBackoff = orDefault(r.InitialBackoff, d.InitialBackoff)
	r.MaxBackoff = max(orDefault(r.MaxBackoff, d.MaxBackoff), r.InitialBackoff)
	r.AfterLimit = max(orDefault(r.AfterLimit, d.AfterLimit), r.MaxBackoff)
	if r.Multiplier < 1 {
		r.Multiplier = d.Multiplier
	}

	b, db := &c.Breaker, def.Breaker
	b.MinRequests = orDefault(b.MinRequests, db.MinRequests)
	b.OpenTimeout = orDefault(b.OpenTimeout, db.OpenTimeout)
	b.HalfOpenMaxCalls = orDefault(b.HalfOpenMaxCalls, db.HalfOpenMaxCalls)
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = db.FailureRatio
	}
	return c
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
