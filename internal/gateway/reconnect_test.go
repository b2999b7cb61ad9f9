package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicyDelayCapsAtMaxDelay(t *testing.T) {
	p := ReconnectPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	require.Equal(t, 100*time.Millisecond, p.Delay(1))
	require.Equal(t, 200*time.Millisecond, p.Delay(2))
	require.Equal(t, 400*time.Millisecond, p.Delay(3))
	require.Equal(t, time.Second, p.Delay(10), "delay must cap at MaxDelay")
}

func TestReconnectorGivesUpAfterMaxAttempts(t *testing.T) {
	p := ReconnectPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, JitterFactor: 0.1}
	r := NewReconnector(p, zerolog.Nop())

	calls := 0
	err := r.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)

	require.ErrorIs(t, err, errMaxAttemptsExceeded)
	require.Equal(t, 3, calls)
}

func TestReconnectorSucceedsAfterTransientFailures(t *testing.T) {
	p := ReconnectPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	r := NewReconnector(p, zerolog.Nop())

	calls := 0
	err := r.Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}
