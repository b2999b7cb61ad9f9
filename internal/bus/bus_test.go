package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalTrySendRespectsCapacity(t *testing.T) {
	l := NewLocal[int](2)
	require.True(t, l.TrySend(1))
	require.True(t, l.TrySend(2))
	require.False(t, l.TrySend(3), "third send should overflow a capacity-2 queue")
	require.Equal(t, 2, l.Depth())
}

func TestLocalTryReceiveDrainsInOrder(t *testing.T) {
	l := NewLocal[string](4)
	l.TrySend("a")
	l.TrySend("b")

	v, ok := l.TryReceive()
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = l.TryReceive()
	require.True(t, ok)
	require.Equal(t, "b", v)

	_, ok = l.TryReceive()
	require.False(t, ok)
}

func TestLocalSendBlocksUntilContextCancelled(t *testing.T) {
	l := NewLocal[int](1)
	require.True(t, l.TrySend(1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Send(ctx, 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
