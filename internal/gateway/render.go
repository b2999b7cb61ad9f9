package gateway

import (
	"context"
	"time"

	"ambonmud/internal/bus"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
)

// Pump drains an outbound event source into the server's renderer
// until ctx is cancelled, coalescing consecutive SendPrompt events for
// the same session into one per the renderer contract. The source's
// TryReceive contract makes this a poll loop; the idle sleep is well
// under a tick so prompts never lag behind the text they follow.
func (s *Server) Pump(ctx context.Context, source bus.Bus[events.Outbound]) {
	lastWasPrompt := make(map[ids.SessionID]bool)
	for {
		ev, ok := source.TryReceive()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Millisecond):
			}
			continue
		}
		if ev.Kind == events.KindSendPrompt {
			if lastWasPrompt[ev.SessionID] {
				continue
			}
			lastWasPrompt[ev.SessionID] = true
		} else {
			delete(lastWasPrompt, ev.SessionID)
		}
		s.Render(ev)
	}
}
