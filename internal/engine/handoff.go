package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ambonmud/internal/command"
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/persistence"
	"ambonmud/internal/player"
	"ambonmud/internal/sharding"
)

// handoffPayload is the serialized form of a player crossing an engine
// boundary: the durable record (already flushed before send) plus the
// session binding the target engine re-attaches. Item instances
// transfer by id and re-inflate from templates on the target — the
// record's inventory/equipment id lists are the single source of truth
// for what the player carries (the decided Open Question).
type handoffPayload struct {
	Record    *persistence.PlayerRecord `json:"record"`
	SessionID uint64                    `json:"sessionId"`
}

// handoffRestore is everything the source engine needs to roll a
// player back if the target never acknowledges.
type handoffRestore struct {
	session    ids.SessionID
	player     *player.Player
	record     *persistence.PlayerRecord
	sourceRoom ids.EntityID
	direction  string
}

// interceptCrossZoneMove checks whether cmd walks through an exit into
// a zone this engine does not own; if so it runs the handoff protocol
// instead of the normal move, and reports true.
func (e *Engine) interceptCrossZoneMove(nowMillis int64, s *sessionState, cmd command.Command) bool {
	p := s.player
	room, ok := e.d.World.Room(p.Room)
	if !ok {
		return false
	}
	exit, ok := room.Exits[command.DirectionCode(cmd.DirectionName)]
	if !ok {
		return false
	}
	if e.ownsZone(exit.Target.Zone()) {
		return false
	}
	if exit.Closed {
		e.emit(events.SendError(s.id, "The way is closed."))
		e.emit(events.SendPrompt(s.id))
		return true
	}
	if exit.Locked && (exit.RequiredKey == "" || !p.HasKey(exit.RequiredKey)) {
		e.emit(events.SendError(s.id, "The way is locked."))
		e.emit(events.SendPrompt(s.id))
		return true
	}
	e.beginHandoff(nowMillis, s, exit.Target, cmd.DirectionName)
	return true
}

// beginHandoff runs the source half of the protocol: resolve the
// target engine, flush the record durably, serialize, detach locally,
// send PlayerHandoff plus the gateway redirect, and arm the rollback
// timer.
func (e *Engine) beginHandoff(nowMillis int64, s *sessionState, target ids.EntityID, direction string) {
	p := s.player
	zone := target.Zone()

	targetEngine, ok := e.resolveTargetEngine(zone)
	if !ok {
		e.emit(events.SendError(s.id, fmt.Sprintf("The way %s shimmers but does not yield.", direction)))
		e.emit(events.SendPrompt(s.id))
		return
	}

	// Status effects never transfer across engines; clearing them
	// first also reverts any stat-modifier buff before the attributes
	// are serialized. Then flush the record to durable storage: the
	// target rebuilds entirely from the payload, and the flushed
	// record is the recovery point if both sides fail.
	e.d.Abilities.RemoveAllFor(p.Name)
	e.saveRecord(s, nowMillis)
	if e.d.RepoFlusher != nil {
		e.d.RepoFlusher.Flush()
	}
	rec := s.record
	if rec == nil {
		e.emit(events.SendError(s.id, "Something holds you back."))
		e.emit(events.SendPrompt(s.id))
		return
	}
	rec.CurrentRoomID = string(target)

	payload, err := json.Marshal(handoffPayload{Record: rec, SessionID: uint64(s.id)})
	if err != nil {
		e.log.Error().Err(err).Str("player", p.Name).Msg("handoff payload encode failed")
		e.emit(events.SendError(s.id, fmt.Sprintf("The way %s shimmers but does not yield.", direction)))
		e.emit(events.SendPrompt(s.id))
		return
	}

	sourceRoom := p.Room
	detached := p
	e.detachPlayer(s, false, nowMillis)

	id := e.d.Coordinator.Begin(nowMillis, e.cfg.EngineID, targetEngine, detached.Name, string(sourceRoom), payload,
		func(playerName, roomID string) {
			e.rollbackHandoff(playerName, ids.EntityID(roomID))
		})
	e.handoffRestores[id] = &handoffRestore{
		session:    s.id,
		player:     detached,
		record:     rec,
		sourceRoom: sourceRoom,
		direction:  direction,
	}
	e.metrics.HandoffsStarted++

	e.emit(events.SessionRedirect(s.id, targetEngine))
	e.log.Info().Str("player", detached.Name).Str("zone", zone).Str("target", targetEngine).Str("handoffId", id).Msg("handoff started")
}

// resolveTargetEngine picks the engine that should receive a player
// entering zone: the registered owner for SINGLE_OWNER zones, a
// load-informed choice among replicas for REPLICATED_ENTRY.
func (e *Engine) resolveTargetEngine(zone string) (string, bool) {
	if e.d.ZoneRegistry == nil {
		return "", false
	}
	if e.d.ZoneRegistry.ModeFor(zone) == sharding.ReplicatedEntry && e.d.Selector != nil {
		if engineID := e.d.Selector.Select(zone); engineID != "" {
			return engineID, true
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	owner, ok, err := e.d.ZoneRegistry.Owner(ctx, zone)
	if err != nil || !ok {
		return "", false
	}
	return owner, true
}

// rollbackHandoff restores a player whose handoff timed out: back into
// the source room, with a user-visible error and the gateway redirect
// cancelled by re-pointing the session at this engine.
func (e *Engine) rollbackHandoff(playerName string, sourceRoom ids.EntityID) {
	var restore *handoffRestore
	var id string
	for hid, r := range e.handoffRestores {
		if r.record != nil && r.record.Name == playerName && r.sourceRoom == sourceRoom {
			restore, id = r, hid
			break
		}
	}
	if restore == nil {
		return
	}
	delete(e.handoffRestores, id)
	e.metrics.HandoffsRolledBack++

	s, ok := e.sessions[restore.session]
	if !ok {
		// Session disconnected while the handoff was in flight; the
		// record is already flushed, nothing else to restore.
		return
	}
	p := restore.player
	if p == nil {
		return
	}
	p.Room = sourceRoom
	if err := e.d.Players.Add(p); err != nil {
		e.log.Error().Err(err).Str("player", playerName).Msg("handoff rollback re-admit failed")
		return
	}
	now := e.d.Clock.NowMillis()
	s.player = p
	s.record = restore.record
	s.record.CurrentRoomID = string(sourceRoom)
	e.d.Regen.Register(p.Name, now)
	e.d.Abilities.ResetCooldowns(p.Name)

	e.emit(events.SessionRedirect(s.id, e.cfg.EngineID))
	e.emit(events.SendError(s.id, fmt.Sprintf("The way %s shimmers but does not yield.", restore.direction)))
	e.emit(events.SendPrompt(s.id))
	e.log.Warn().Str("player", playerName).Msg("handoff timed out, player restored")
}

// commitHandoff finishes a handoff on HandoffAck: the record was
// flushed before send, so commit is just forgetting the rollback state
// and the session. A late or duplicate ack is a no-op.
func (e *Engine) commitHandoff(handoffID string) {
	if !e.d.Coordinator.Ack(handoffID) {
		return
	}
	restore, ok := e.handoffRestores[handoffID]
	if !ok {
		return
	}
	delete(e.handoffRestores, handoffID)
	delete(e.sessions, restore.session)
	e.metrics.HandoffsCommitted++
}

// admitHandoff runs the target half: deserialize, admit to local
// registries, place in the target room, announce, and acknowledge.
// Re-delivered PlayerHandoff messages for an already-admitted id are
// acknowledged again without a second admit.
func (e *Engine) admitHandoff(nowMillis int64, msg events.InterEngineMessage) {
	ackBack := func() {
		e.d.InterEngine.TrySend(sharding.AckMessage(msg.HandoffID, e.cfg.EngineID, msg.SenderEngineID))
	}
	if e.pendingAdmits[msg.HandoffID] {
		ackBack()
		return
	}

	var payload handoffPayload
	if err := json.Unmarshal(msg.PlayerPayload, &payload); err != nil || payload.Record == nil {
		e.log.Error().Err(err).Str("handoffId", msg.HandoffID).Msg("handoff payload decode failed")
		return
	}
	session := ids.SessionID(payload.SessionID)
	rec := payload.Record

	p, err := persistence.NewPlayerFromRecord(rec, session)
	if err != nil {
		e.log.Error().Err(err).Str("handoffId", msg.HandoffID).Msg("handoff player rebuild failed")
		return
	}
	if _, ok := e.d.World.Room(p.Room); !ok {
		p.Room = e.d.World.StartRoom
	}
	if err := e.d.Players.Add(p); err != nil {
		// Already admitted under a different handoff id (duplicate
		// send after a partial network failure): acknowledge, don't
		// double-admit.
		ackBack()
		return
	}

	s := &sessionState{id: session, ansi: rec.AnsiEnabled}
	s.player = p
	s.record = rec
	s.lastHP, s.lastMaxHP, s.lastMana, s.lastMaxMana = p.HP, p.MaxHP, p.Mana, p.MaxMana
	s.lastLevel = p.Level
	e.sessions[session] = s

	e.d.Regen.Register(p.Name, nowMillis)
	e.d.Abilities.ResetCooldowns(p.Name)
	e.d.Abilities.LearnAbilitiesForLevel(p)
	e.restoreItems(rec)
	if rec.AnsiEnabled {
		e.d.Gmcp.AutoSubscribeCore(p)
	}

	e.pendingAdmits[msg.HandoffID] = true
	e.broadcastRoom(p.Room, fmt.Sprintf("%s has arrived.", p.Name), p.Name)
	e.emitLook(s, p.Room)
	e.emit(events.SendPrompt(s.id))
	ackBack()
	e.log.Info().Str("player", p.Name).Str("handoffId", msg.HandoffID).Msg("handoff admitted")
}
