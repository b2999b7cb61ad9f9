package engine

import (
	"fmt"
	"sort"
	"strings"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"
)

// replyWindowMs is how long cross-engine tell and who wait for replies
// before reporting partial results, a short window per the global
// command contract.
const replyWindowMs = 1000

// whoCollect accumulates WhoResponse replies for one local "who"
// issuer until its deadline fires.
type whoCollect struct {
	session ids.SessionID
	names   []string
	replies int
}

// tellWait tracks one cross-engine tell awaiting its delivery receipt.
type tellWait struct {
	session    ids.SessionID
	targetName string
	text       string
}

func (e *Engine) drainInterEngine(nowMillis int64) {
	if e.d.InterEngine == nil {
		return
	}
	for i := 0; i < e.cfg.MaxInboundEventsPerTick; i++ {
		msg, ok := e.d.InterEngine.TryReceive()
		if !ok {
			return
		}
		e.dispatchInterEngine(nowMillis, msg)
	}
}

func (e *Engine) dispatchInterEngine(nowMillis int64, msg events.InterEngineMessage) {
	if msg.SenderEngineID == e.cfg.EngineID {
		return
	}
	if msg.TargetEngineID != "" && msg.TargetEngineID != e.cfg.EngineID {
		return
	}

	switch msg.Kind {
	case events.KindPlayerHandoff:
		e.admitHandoff(nowMillis, msg)
	case events.KindHandoffAck:
		e.commitHandoff(msg.HandoffID)
	case events.KindTellMessage:
		e.handleTellMessage(msg)
	case events.KindGlobalBroadcast:
		for _, p := range e.allPlayers() {
			e.emit(events.SendText(p.SessionID, fmt.Sprintf("%s gossips, \"%s\"", msg.FromName, msg.Text)))
		}
	case events.KindWhoRequest:
		e.d.InterEngine.TrySend(events.InterEngineMessage{
			Kind:           events.KindWhoResponse,
			SenderEngineID: e.cfg.EngineID,
			TargetEngineID: msg.SenderEngineID,
			RequestID:      msg.RequestID,
			PlayerNames:    e.d.Players.Names(),
		})
	case events.KindWhoResponse:
		if w, ok := e.pendingWho[msg.RequestID]; ok {
			w.names = append(w.names, msg.PlayerNames...)
			w.replies++
		}
	case events.KindTransferRequest:
		if p, ok := e.d.Players.ByName(msg.TargetPlayerName); ok {
			room := ids.EntityID(msg.TargetRoomID)
			if _, exists := e.d.World.Room(room); exists {
				p.Room = room
				e.emit(events.SendInfo(p.SessionID, "A force beyond your understanding moves you."))
				if s, ok := e.sessions[p.SessionID]; ok {
					e.emitLook(s, room)
					e.emit(events.SendPrompt(p.SessionID))
				}
			}
		}
	case events.KindKickRequest:
		if p, ok := e.d.Players.ByName(msg.TargetPlayerName); ok {
			e.emit(events.SendInfo(p.SessionID, "You have been removed from the world."))
			e.emit(events.Close(p.SessionID, "kicked"))
		}
	case events.KindSessionRedirectMsg:
		// Gateway-bound; engines never act on it.
	}
}

// handleTellMessage serves both halves of the cross-engine tell
// exchange. A message with text is a delivery attempt: if the target
// is local, deliver it and send an empty-text receipt back to the
// requesting engine. An empty-text message is that receipt, resolving
// the sender's pending wait.
func (e *Engine) handleTellMessage(msg events.InterEngineMessage) {
	if msg.Text == "" {
		if w, ok := e.pendingTells[msg.RequestID]; ok {
			delete(e.pendingTells, msg.RequestID)
			e.emit(events.SendText(w.session, fmt.Sprintf("You tell %s, \"%s\"", w.targetName, w.text)))
			e.emit(events.SendPrompt(w.session))
		}
		return
	}
	target, ok := e.d.Players.ByName(msg.ToName)
	if !ok {
		return
	}
	e.emit(events.SendText(target.SessionID, fmt.Sprintf("%s tells you, \"%s\"", msg.FromName, msg.Text)))
	e.d.InterEngine.TrySend(events.InterEngineMessage{
		Kind:           events.KindTellMessage,
		SenderEngineID: e.cfg.EngineID,
		TargetEngineID: msg.SenderEngineID,
		RequestID:      msg.RequestID,
		FromName:       msg.ToName,
		ToName:         msg.FromName,
	})
}

// remoteTell broadcasts a tell toward whichever engine holds the
// target and waits a short window for the delivery receipt; no receipt
// means the player isn't online anywhere.
func (e *Engine) remoteTell(nowMillis int64, s *sessionState, targetName, text string) {
	if text == "" {
		e.emit(events.SendError(s.id, "Tell them what?"))
		e.emit(events.SendPrompt(s.id))
		return
	}
	requestID := e.d.NextID()
	e.pendingTells[requestID] = &tellWait{session: s.id, targetName: targetName, text: text}
	e.d.InterEngine.TrySend(events.InterEngineMessage{
		Kind:           events.KindTellMessage,
		SenderEngineID: e.cfg.EngineID,
		RequestID:      requestID,
		FromName:       s.player.Name,
		ToName:         targetName,
		Text:           text,
	})
	session := s.id
	e.d.Scheduler.After(nowMillis, replyWindowMs, func(int64) {
		if _, pending := e.pendingTells[requestID]; !pending {
			return
		}
		delete(e.pendingTells, requestID)
		e.emit(events.SendError(session, fmt.Sprintf("%s is not here.", targetName)))
		e.emit(events.SendPrompt(session))
	})
}

// globalWho broadcasts a WhoRequest, seeds the collection with the
// local player list, and reports the merged result when the reply
// deadline passes.
func (e *Engine) globalWho(nowMillis int64, s *sessionState) {
	requestID := e.d.NextID()
	e.pendingWho[requestID] = &whoCollect{session: s.id, names: e.d.Players.Names()}
	e.d.InterEngine.TrySend(events.InterEngineMessage{
		Kind:           events.KindWhoRequest,
		SenderEngineID: e.cfg.EngineID,
		RequestID:      requestID,
	})
	session := s.id
	e.d.Scheduler.After(nowMillis, replyWindowMs, func(int64) {
		w, ok := e.pendingWho[requestID]
		if !ok {
			return
		}
		delete(e.pendingWho, requestID)
		names := dedupeSorted(w.names)
		line := fmt.Sprintf("Connected (%d): %s", len(names), strings.Join(names, ", "))
		if w.replies == 0 {
			line += " (some servers may be unreachable)"
		}
		e.emit(events.SendText(session, line))
		e.emit(events.SendPrompt(session))
	})
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
