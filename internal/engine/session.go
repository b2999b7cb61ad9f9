package engine

import (
	"fmt"
	"strings"
	"time"

	"ambonmud/internal/command"
	"ambonmud/internal/events"
	"ambonmud/internal/gmcp"
	"ambonmud/internal/ids"
	"ambonmud/internal/login"
	"ambonmud/internal/persistence"
	"ambonmud/internal/world"
)

// maxQueuedLoginLines bounds how many lines a session may type ahead
// while a KDF verify is still in flight; excess input is dropped.
const maxQueuedLoginLines = 8

// worldService adapts the engine's mutable world overlay to the
// command package's World interface, exposing the editor to staff
// commands through AsEditor.
type worldService struct {
	w  *world.World
	ed *world.Editor
}

func (ws worldService) Room(id ids.EntityID) (world.Room, bool) { return ws.w.Room(id) }
func (ws worldService) AsEditor() command.Editor                { return ws.ed }

func (e *Engine) dispatchInbound(nowMillis int64, ev events.Inbound) {
	switch ev.Kind {
	case events.KindConnected:
		e.handleConnected(ev)
	case events.KindDisconnected:
		e.teardownSession(ev.SessionID, ev.Reason)
	case events.KindLineReceived:
		e.handleLineReceived(nowMillis, ev)
	case events.KindGmcpReceived:
		if s, ok := e.sessions[ev.SessionID]; ok && s.player != nil {
			e.d.Gmcp.HandleSubscriptionRequest(s.player, ev)
		}
	}
}

// handleConnected registers the session and starts its login flow,
// unless the auth funnel is already at capacity — then the session is
// rejected immediately, before any KDF work could be queued on its
// behalf.
func (e *Engine) handleConnected(ev events.Inbound) {
	if _, exists := e.sessions[ev.SessionID]; exists {
		return
	}
	s := &sessionState{id: ev.SessionID, ansi: ev.DefaultAnsi}
	e.sessions[ev.SessionID] = s

	if e.loginsInFlight >= e.cfg.MaxConcurrentLogins {
		e.metrics.AuthRejectedBusy++
		e.emit(events.SendError(s.id, "The server is busy. Please try again shortly."))
		e.emit(events.Close(s.id, "server_busy"))
		return
	}
	e.loginsInFlight++
	s.inFunnel = true
	s.fsm = login.NewFSM(s.id, e.d.Auth, e.cfg.MaxWrongPasswordRetries+1)

	e.emit(events.ShowLoginScreen(s.id))
	e.emit(events.SetAnsi(s.id, ev.DefaultAnsi))
	e.emitAll(s.fsm.Prompt())
}

func (e *Engine) handleLineReceived(nowMillis int64, ev events.Inbound) {
	s, ok := e.sessions[ev.SessionID]
	if !ok || s.closing {
		return
	}
	if s.player != nil {
		e.handleLine(nowMillis, s, ev.Line)
		return
	}
	if s.fsm == nil {
		return
	}
	if s.authInFlight {
		if len(s.queuedLines) < maxQueuedLoginLines {
			s.queuedLines = append(s.queuedLines, ev.Line)
		}
		return
	}
	e.submitLoginLine(s, ev.Line)
}

// submitLoginLine runs one login-FSM step on the auth worker pool.
// Every login state goes through the pool — password and MFA steps
// because they run the KDF, the rest because they read the account
// repository — so the tick never blocks on either. The FSM value is
// only ever touched by one goroutine at a time: the in-flight flag
// serializes steps per session, and the engine reads FSM state only
// after the completion is drained.
func (e *Engine) submitLoginLine(s *sessionState, line string) {
	fsm := s.fsm
	session := s.id
	job := func() {
		out, closed := fsm.Handle(line)
		res := authResult{session: session, out: out, closeSession: closed}
		if _, ok := fsm.Authenticated(); ok {
			if isNew, password, _, _ := fsm.NewAccountDetails(); isNew {
				res.newPasswordHash, res.hashErr = login.HashPassword(password)
			}
		}
		e.authResults <- res
	}
	if e.authPool.Submit(job) {
		s.authInFlight = true
		return
	}
	// Pool saturated beyond its buffer: reject the session the same way
	// the concurrency cap does, so no login step runs on the tick.
	e.metrics.AuthRejectedBusy++
	e.emit(events.SendError(s.id, "The server is busy. Please try again shortly."))
	e.emit(events.Close(s.id, "server_busy"))
}

func (e *Engine) drainAuthResults(nowMillis int64) {
	for {
		select {
		case res := <-e.authResults:
			e.applyAuthResult(nowMillis, res)
		default:
			return
		}
	}
}

func (e *Engine) applyAuthResult(nowMillis int64, res authResult) {
	s, ok := e.sessions[res.session]
	if !ok || s.fsm == nil {
		// Session disconnected while the verify was in flight; the
		// completed work is discarded.
		return
	}
	s.authInFlight = false
	e.emitAll(res.out)

	if res.closeSession {
		s.closing = true
		return
	}
	if name, ok := s.fsm.Authenticated(); ok {
		e.completeLogin(nowMillis, s, name, res)
		return
	}
	if len(s.queuedLines) > 0 {
		next := s.queuedLines[0]
		s.queuedLines = s.queuedLines[1:]
		e.submitLoginLine(s, next)
	}
}

// completeLogin transitions a session from the login FSM to a live
// player: create or load the record, enforce single-session takeover,
// admit to registries, place in the world, and send the initial
// snapshot burst.
func (e *Engine) completeLogin(nowMillis int64, s *sessionState, name string, res authResult) {
	isNew, _, race, class := s.fsm.NewAccountDetails()

	var rec *persistence.PlayerRecord
	if isNew {
		if res.hashErr != nil {
			e.emit(events.SendError(s.id, "Account creation failed. Please reconnect and try again."))
			e.emit(events.Close(s.id, "create_failed"))
			return
		}
		created, err := e.d.Repo.Create(&persistence.PlayerRecord{
			Name:          name,
			PasswordHash:  res.newPasswordHash,
			Race:          race,
			Class:         class,
			CurrentRoomID: string(e.d.World.StartRoom),
			Strength:      10, Dexterity: 10, Constitution: 10,
			Intelligence: 10, Wisdom: 10, Charisma: 10,
			Level: 1, HP: 20, MaxHP: 20, Mana: 10, MaxMana: 10,
			AnsiEnabled: s.ansi,
			CreatedAt:   time.UnixMilli(nowMillis),
			LastSeenAt:  time.UnixMilli(nowMillis),
		})
		if err != nil {
			e.log.Error().Err(err).Str("name", name).Msg("account creation failed")
			e.emit(events.SendError(s.id, "That name is no longer available."))
			e.emit(events.Close(s.id, "create_failed"))
			return
		}
		rec = created
	} else {
		found, ok, err := e.d.Repo.FindByName(name)
		if err != nil || !ok {
			e.log.Error().Err(err).Str("name", name).Msg("account load failed")
			e.emit(events.SendError(s.id, "Your account is unavailable right now."))
			e.emit(events.Close(s.id, "account_unavailable"))
			return
		}
		rec = found
	}

	// Takeover: a successful login against an already-connected name
	// closes the previous session; its state is saved on the way out.
	if old, ok := e.d.Players.ByName(rec.Name); ok {
		if oldSess, ok := e.sessions[old.SessionID]; ok {
			e.emit(events.SendInfo(oldSess.id, "Your account has logged in from another location."))
			e.emit(events.Close(oldSess.id, "session_takeover"))
			e.detachPlayer(oldSess, true, nowMillis)
		}
	}

	p, err := persistence.NewPlayerFromRecord(rec, s.id)
	if err != nil {
		e.emit(events.SendError(s.id, "Your saved character could not be restored."))
		e.emit(events.Close(s.id, "account_unavailable"))
		return
	}
	if _, ok := e.d.World.Room(p.Room); !ok || !e.ownsZone(p.Room.Zone()) {
		p.Room = e.d.World.StartRoom
	}

	if err := e.d.Players.Add(p); err != nil {
		e.emit(events.SendError(s.id, "That character is already connected."))
		e.emit(events.Close(s.id, "already_connected"))
		return
	}

	s.player = p
	s.record = rec
	s.fsm = nil
	s.queuedLines = nil
	if s.inFunnel {
		s.inFunnel = false
		e.loginsInFlight--
	}

	e.d.Regen.Register(p.Name, nowMillis)
	e.d.Abilities.ResetCooldowns(p.Name)
	e.d.Abilities.LearnAbilitiesForLevel(p)
	e.restoreItems(rec)
	if s.ansi {
		e.d.Gmcp.AutoSubscribeCore(p)
	}
	s.lastHP, s.lastMaxHP, s.lastMana, s.lastMaxMana = p.HP, p.MaxHP, p.Mana, p.MaxMana
	s.lastLevel = p.Level

	e.emit(events.SetAnsi(s.id, p.AnsiEnabled))
	e.broadcastRoom(p.Room, fmt.Sprintf("%s has arrived.", p.Name), p.Name)
	e.emitLook(s, p.Room)
	e.emit(events.SendPrompt(s.id))

	rec.LastSeenAt = time.UnixMilli(nowMillis)
	if err := e.d.Repo.Save(rec); err != nil {
		e.log.Error().Err(err).Str("player", p.Name).Msg("last-seen save failed")
	}
}

// restoreItems re-inflates the record's carried/equipped instance ids
// into the item registry. Instances already live (same engine restart,
// or left over from a rolled-back handoff) are just re-placed.
func (e *Engine) restoreItems(rec *persistence.PlayerRecord) {
	for _, raw := range rec.InventoryItemIDs {
		id, err := ids.ParseEntityID(raw)
		if err != nil {
			continue
		}
		if _, ok := e.d.Items.Get(id); !ok {
			e.d.Items.Spawn(id, id.Local())
		}
		e.d.Items.PlaceInInventory(id, rec.Name)
	}
	for slot, raw := range rec.EquippedItemIDs {
		id, err := ids.ParseEntityID(raw)
		if err != nil {
			continue
		}
		if _, ok := e.d.Items.Get(id); !ok {
			e.d.Items.Spawn(id, id.Local())
		}
		e.d.Items.PlaceInSlot(id, rec.Name, slot)
	}
}

func (e *Engine) emitLook(s *sessionState, room ids.EntityID) {
	if r, ok := e.d.World.Room(room); ok {
		e.emit(events.SendText(s.id, world.FormatRoomDescription(r)))
	}
}

// handleLine runs one command for a logged-in player.
func (e *Engine) handleLine(nowMillis int64, s *sessionState, line string) {
	p := s.player
	if strings.TrimSpace(line) == "" {
		e.emit(events.SendPrompt(s.id))
		return
	}

	cmd := command.Parse(line)

	stunned, rooted := e.d.Abilities.ActionsGated(p.Name)
	if stunned && cmd.Kind != command.KindQuit && cmd.Kind != command.KindSay && cmd.Kind != command.KindScore {
		e.emit(events.SendError(s.id, "You are stunned and cannot act."))
		e.emit(events.SendPrompt(s.id))
		return
	}
	if rooted && (cmd.Kind == command.KindMove || cmd.Kind == command.KindFlee) {
		e.emit(events.SendError(s.id, "You are rooted in place."))
		e.emit(events.SendPrompt(s.id))
		return
	}

	// Cross-engine concerns are intercepted before local dispatch.
	if e.d.InterEngine != nil {
		switch cmd.Kind {
		case command.KindMove:
			if e.interceptCrossZoneMove(nowMillis, s, cmd) {
				return
			}
		case command.KindTell:
			if _, local := e.d.Players.ByName(cmd.Target); !local {
				e.remoteTell(nowMillis, s, cmd.Target, cmd.Text)
				return
			}
		case command.KindWho:
			e.globalWho(nowMillis, s)
			return
		}
	}

	oldRoom := p.Room
	ctx := &command.Context{
		Player:    p,
		Players:   e.d.Players,
		World:     worldService{w: e.d.World, ed: e.d.Editor},
		Combat:    e.d.Combat,
		Abilities: e.d.Abilities,
		Items:     e.d.Items,
		Effects:   e.d.Abilities,
	}
	command.Dispatch(cmd, ctx)
	e.emitAll(ctx.Out)

	if p.Room != oldRoom {
		e.broadcastRoom(oldRoom, fmt.Sprintf("%s leaves.", p.Name), p.Name)
		e.broadcastRoom(p.Room, fmt.Sprintf("%s arrives.", p.Name), p.Name)
		p.MarkGmcpDirty(gmcp.PackageRoom)
	}
	switch cmd.Kind {
	case command.KindGet, command.KindDrop, command.KindWear, command.KindRemove, command.KindGive:
		if ev, ok := e.d.Gmcp.EmitNow(p, gmcp.PackageInventory); ok {
			e.emit(ev)
		}
	case command.KindShout, command.KindGossip:
		// Gossip and shout fan out cluster-wide, best-effort per engine.
		if e.d.InterEngine != nil {
			e.d.InterEngine.TrySend(events.InterEngineMessage{
				Kind:           events.KindGlobalBroadcast,
				SenderEngineID: e.cfg.EngineID,
				FromName:       p.Name,
				Text:           cmd.Text,
			})
		}
	}

	if !s.closing {
		e.emit(events.SendPrompt(s.id))
	}
}

// teardownSession removes every trace of a session, exactly once:
// player state saved and deregistered, login funnel slot released,
// pending auth results left to be discarded on drain.
func (e *Engine) teardownSession(id ids.SessionID, reason string) {
	s, ok := e.sessions[id]
	if !ok {
		return
	}
	delete(e.sessions, id)
	if s.inFunnel {
		s.inFunnel = false
		e.loginsInFlight--
	}
	if s.player != nil {
		room := s.player.Room
		name := s.player.Name
		e.detachPlayer(s, true, e.d.Clock.NowMillis())
		e.broadcastRoom(room, fmt.Sprintf("%s has left the world.", name), name)
	}
	e.log.Debug().Uint64("session", uint64(id)).Str("reason", reason).Msg("session torn down")
}

// detachPlayer removes s's player from every live registry, optionally
// saving its record first. Used by disconnect, takeover, and the
// handoff send path (which saves through its own flush instead).
// Status effects are cleared before the save so any stat-modifier buff
// is reverted rather than baked into the persisted attributes.
func (e *Engine) detachPlayer(s *sessionState, save bool, nowMillis int64) {
	p := s.player
	if p == nil {
		return
	}
	e.d.Combat.EndFightFor(p.Name)
	e.d.Abilities.RemoveAllFor(p.Name)
	e.d.Regen.Unregister(p.Name)
	if save {
		e.saveRecord(s, nowMillis)
	}
	e.d.Players.RemoveBySession(p.SessionID)
	s.player = nil
	s.record = nil
}

// saveRecord snapshots the live player over its loaded record,
// preserving the credential and bookkeeping fields gameplay never
// touches, and hands it to the write-coalescing repository.
func (e *Engine) saveRecord(s *sessionState, nowMillis int64) {
	p := s.player
	old := s.record
	if p == nil || old == nil {
		return
	}
	rec := persistence.ToRecord(p, e.d.Items)
	rec.ID = old.ID
	rec.PasswordHash = old.PasswordHash
	rec.MFASecret = old.MFASecret
	rec.MFAEnabled = old.MFAEnabled
	rec.CreatedAt = old.CreatedAt
	rec.LastSeenAt = time.UnixMilli(nowMillis)
	if err := e.d.Repo.Save(rec); err != nil {
		e.log.Error().Err(err).Str("player", p.Name).Msg("record save failed")
		return
	}
	s.record = rec
}
