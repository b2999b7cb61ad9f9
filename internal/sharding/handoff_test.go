package sharding

import (
	"testing"

	"ambonmud/internal/events"
	"ambonmud/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func TestHandoffAckCancelsTimeout(t *testing.T) {
	sched := scheduler.New()
	var sent []events.InterEngineMessage
	seq := 0
	c := NewCoordinator(sched, 5000, func(m events.InterEngineMessage) { sent = append(sent, m) }, func() string {
		seq++
		return "handoff-1"
	})

	timedOut := false
	id := c.Begin(0, "engine-a", "engine-b", "rin", "town:start", []byte("payload"), func(string, string) { timedOut = true })

	require.Len(t, sent, 1)
	require.Equal(t, events.KindPlayerHandoff, sent[0].Kind)
	require.Equal(t, 1, c.Pending())

	require.True(t, c.Ack(id))
	require.Equal(t, 0, c.Pending())

	sched.RunDue(10000, 100)
	require.False(t, timedOut)
}

func TestHandoffTimeoutRollsBack(t *testing.T) {
	sched := scheduler.New()
	c := NewCoordinator(sched, 5000, func(events.InterEngineMessage) {}, func() string { return "handoff-2" })

	var restoredName, restoredRoom string
	c.Begin(0, "engine-a", "engine-b", "rin", "town:start", nil, func(name, room string) {
		restoredName, restoredRoom = name, room
	})

	sched.RunDue(5000, 100)
	require.Equal(t, "rin", restoredName)
	require.Equal(t, "town:start", restoredRoom)
	require.Equal(t, 0, c.Pending())
}

func TestAckOfUnknownHandoffIsNoop(t *testing.T) {
	sched := scheduler.New()
	c := NewCoordinator(sched, 5000, func(events.InterEngineMessage) {}, func() string { return "x" })
	require.False(t, c.Ack("never-started"))
}
