package gateway

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// ReconnectPolicy configures the bounded exponential-backoff loop a
// gateway runs when its stream to an engine fails.
type ReconnectPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	JitterFactor   float64
	StreamVerifyMs time.Duration
}

// Delay returns the backoff delay for attempt k (1-indexed), without
// jitter applied — jitter is applied separately so tests can assert
// the un-jittered bound.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// JitteredDelay returns Delay(attempt) perturbed by up to ±JitterFactor,
// still capped at MaxDelay.
func (p ReconnectPolicy) JitteredDelay(attempt int, rng *rand.Rand) time.Duration {
	base := p.Delay(attempt)
	if p.JitterFactor <= 0 {
		return base
	}
	jitter := (rng.Float64()*2 - 1) * p.JitterFactor
	d := time.Duration(float64(base) * (1 + jitter))
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Dial attempts a connection; it returns nil on success or an error to
// retry on.
type Dial func(ctx context.Context) error

// Verify checks stream health after a successful dial, for
// StreamVerifyMs before traffic resumes.
type Verify func(ctx context.Context) error

// Reconnector runs the bounded backoff loop described in the session
// router's reconnect protocol: on failure, wait with jittered
// exponential backoff; after MaxAttempts failures, give up entirely.
type Reconnector struct {
	policy ReconnectPolicy
	log    zerolog.Logger
	rng    *rand.Rand
}

// NewReconnector builds a Reconnector.
func NewReconnector(policy ReconnectPolicy, log zerolog.Logger) *Reconnector {
	return &Reconnector{policy: policy, log: log, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Run dials repeatedly until success, cancellation, or attempt
// exhaustion. On exhaustion it returns an error; the caller (gateway
// main loop) treats that as fatal and shuts down.
func (r *Reconnector) Run(ctx context.Context, dial Dial, verify Verify) error {
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := dial(ctx); err != nil {
			r.log.Warn().Int("attempt", attempt).Err(err).Msg("reconnect attempt failed")

			delay := r.policy.JitteredDelay(attempt, r.rng)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if verify != nil {
			verifyCtx, cancel := context.WithTimeout(ctx, r.policy.StreamVerifyMs)
			err := verify(verifyCtx)
			cancel()
			if err != nil {
				r.log.Warn().Int("attempt", attempt).Err(err).Msg("post-reconnect stream verification failed")
				continue
			}
		}

		return nil
	}
	return errMaxAttemptsExceeded
}

var errMaxAttemptsExceeded = reconnectError("gateway: exhausted reconnect attempts")

type reconnectError string

func (e reconnectError) Error() string { return string(e) }
