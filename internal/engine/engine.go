// Package engine is the authoritative simulation runtime: a single
// goroutine ticking at a fixed interval, draining inbound events,
// advancing every subsystem in a fixed order, and emitting outbound
// events. All mutable world state (players, mobs, items, fights,
// status effects, schedules) is owned by this goroutine; blocking work
// (password KDF, persistence writes) runs on background workers whose
// completions the engine drains on its own schedule.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ambonmud/internal/ability"
	"ambonmud/internal/bus"
	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/gmcp"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/login"
	"ambonmud/internal/mob"
	"ambonmud/internal/mobai"
	"ambonmud/internal/persistence"
	"ambonmud/internal/player"
	"ambonmud/internal/regen"
	"ambonmud/internal/scheduler"
	"ambonmud/internal/sharding"
	"ambonmud/internal/world"
)

// Config carries the engine's own tuning knobs, lifted from the
// server/login/scheduler configuration groups by the composition root.
type Config struct {
	EngineID                     string
	TickMillis                   int
	MaxInboundEventsPerTick      int
	SessionOutboundQueueCapacity int
	MaxConcurrentLogins          int
	AuthThreads                  int
	MaxWrongPasswordRetries      int
	SchedulerMaxRunsPerTick      int
	HandoffTimeoutMs             int64

	// OwnedZones limits simulation to the listed zones. Empty means
	// this engine owns the whole world (standalone mode).
	OwnedZones []string
}

// Flusher is the optional write-through hook the handoff path uses to
// force the coalescer's dirty set to durable storage before the player
// leaves this engine; persistence.Coalescer satisfies it.
type Flusher interface {
	Flush()
}

// Deps bundles every collaborator the engine needs, wired explicitly by
// a composition root — no package-level singletons anywhere.
type Deps struct {
	Clock    clock.Clock
	Log      zerolog.Logger
	Inbound  bus.Bus[events.Inbound]
	Outbound bus.Bus[events.Outbound]

	// InterEngine is nil in standalone mode; when present, the engine
	// drains it each tick alongside the inbound bus.
	InterEngine bus.Bus[events.InterEngineMessage]

	World        *world.World
	Editor       *world.Editor
	Players      *player.Registry
	Mobs         *mob.Registry
	MobTemplates *mob.TemplateRegistry
	Items        *item.Registry
	Combat       *combat.Subsystem
	MobAI        *mobai.Subsystem
	Regen        *regen.Subsystem
	Abilities    *ability.Subsystem
	Scheduler    *scheduler.Scheduler
	Gmcp         *gmcp.Emitter
	Repo         persistence.Repository
	RepoFlusher  Flusher
	Auth         login.Authenticator

	// Sharding collaborators; all nil/absent in standalone mode.
	ZoneRegistry sharding.Registry
	Selector     *sharding.Selector
	Coordinator  *sharding.Coordinator
	NextID       func() string
}

// sessionState is the engine's per-session bookkeeping. Exactly one of
// fsm/player is active at a time: fsm during login, player after.
type sessionState struct {
	id   ids.SessionID
	ansi bool

	fsm          *login.FSM
	authInFlight bool
	queuedLines  []string
	inFunnel     bool

	player *player.Player
	record *persistence.PlayerRecord

	pending []events.Outbound
	closing bool
	dropped bool

	lastHP, lastMaxHP, lastMana, lastMaxMana int
	lastLevel                                int
}

// Engine is the tick loop and its owned state.
type Engine struct {
	cfg Config
	d   Deps
	log zerolog.Logger

	sessions map[ids.SessionID]*sessionState

	authPool    *authPool
	authResults chan authResult
	loginsInFlight int

	ownedZones map[string]bool
	zoneResetDue map[string]int64

	pendingWho      map[string]*whoCollect
	pendingTells    map[string]*tellWait
	pendingAdmits   map[string]bool // handoff ids already admitted, for ack idempotence
	handoffRestores map[string]*handoffRestore

	metrics Metrics

	stop chan struct{}
	done chan struct{}
}

// New wires an Engine; Run must be called exactly once afterward.
func New(cfg Config, d Deps) *Engine {
	if d.NextID == nil {
		d.NextID = ids.NewRecordID
	}
	e := &Engine{
		cfg:           cfg,
		d:             d,
		log:           d.Log.With().Str("component", "engine").Str("engineId", cfg.EngineID).Logger(),
		sessions:      make(map[ids.SessionID]*sessionState),
		authPool:      newAuthPool(cfg.AuthThreads),
		authResults:   make(chan authResult, cfg.MaxConcurrentLogins*2+16),
		ownedZones:    make(map[string]bool, len(cfg.OwnedZones)),
		zoneResetDue:  make(map[string]int64),
		pendingWho:      make(map[string]*whoCollect),
		pendingTells:    make(map[string]*tellWait),
		pendingAdmits:   make(map[string]bool),
		handoffRestores: make(map[string]*handoffRestore),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, z := range cfg.OwnedZones {
		e.ownedZones[z] = true
	}
	e.d.Combat.SetPlayerLookup(e.d.Players.ByName)
	return e
}

// Metrics returns a snapshot of the engine's counters. Callers outside
// the engine goroutine should treat the values as approximate.
func (e *Engine) Metrics() Metrics { return e.metrics.Snapshot() }

// ownsZone reports whether this engine simulates zone. An empty owned
// set means standalone mode: everything is local.
func (e *Engine) ownsZone(zone string) bool {
	if len(e.ownedZones) == 0 {
		return true
	}
	return e.ownedZones[zone]
}

// Start spawns zone content and arms reset timers; called once before
// the first tick.
func (e *Engine) Start() {
	now := e.d.Clock.NowMillis()
	for name, zone := range e.d.World.Zones {
		if !e.ownsZone(name) {
			continue
		}
		e.spawnZone(name)
		if zone.LifespanMinutes > 0 {
			e.zoneResetDue[name] = now + int64(zone.LifespanMinutes)*60_000
		}
	}
}

// Run drives the tick loop until ctx is cancelled or Stop is called.
// It owns the engine goroutine; nothing else may call Tick while Run
// is active.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	e.Start()

	tickNanos := int64(e.cfg.TickMillis) * int64(time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case <-e.stop:
			e.shutdown()
			return
		default:
		}

		started := e.d.Clock.MonotonicNanos()
		e.Tick(e.d.Clock.NowMillis())
		elapsed := e.d.Clock.MonotonicNanos() - started

		if elapsed > 2*tickNanos {
			e.metrics.TickOverruns++
			e.log.Warn().Int64("elapsedMs", elapsed/int64(time.Millisecond)).Msg("tick overrun, starting next tick immediately")
			continue
		}
		if remainder := tickNanos - elapsed; remainder > 0 {
			time.Sleep(time.Duration(remainder))
		}
	}
}

// Stop requests a graceful shutdown and waits for the loop to finish.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) shutdown() {
	for id := range e.sessions {
		e.emit(events.SendInfo(id, "The world is shutting down. Goodbye."))
		e.emit(events.Close(id, "shutdown"))
	}
	e.flushSessions()
	for id := range e.sessions {
		e.teardownSession(id, "shutdown")
	}
	e.authPool.Close()
	if e.d.RepoFlusher != nil {
		e.d.RepoFlusher.Flush()
	}
}

// Tick runs one full engine iteration at nowMillis. Exported so tests
// drive the loop with a manual clock instead of sleeping.
func (e *Engine) Tick(nowMillis int64) {
	e.metrics.TicksRun++

	e.guard("inbound", func() { e.drainInbound(nowMillis) })
	e.guard("interengine", func() { e.drainInterEngine(nowMillis) })
	e.guard("auth", func() { e.drainAuthResults(nowMillis) })

	var out []events.Outbound
	e.guard("mobai", func() { e.d.MobAI.Tick(nowMillis, &out) })
	e.guard("combat", func() { e.d.Combat.Tick(nowMillis, nil, e.d.Players.ByName, &out) })
	e.guard("effects", func() { e.d.Abilities.Tick(nowMillis, &out) })
	e.guard("regen", func() {
		e.d.Regen.Tick(nowMillis, e.allPlayers(), func(p *player.Player) {
			p.MarkGmcpDirty(gmcp.PackageVitals)
		})
	})
	for _, ev := range out {
		e.emit(ev)
	}

	e.guard("scheduler", func() {
		_, overflowed := e.d.Scheduler.RunDue(nowMillis, e.cfg.SchedulerMaxRunsPerTick)
		e.metrics.SchedulerOverflow += int64(overflowed)
	})

	e.guard("zones", func() { e.tickZoneResets(nowMillis) })
	e.guard("gmcp", func() { e.flushGmcp() })

	e.flushSessions()
}

// guard brackets one subsystem stage with panic recovery: no failure
// escapes the tick, per the propagation policy. The panic is logged
// once with its stage tag and counted.
func (e *Engine) guard(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.SubsystemPanics++
			e.log.Error().Str("stage", stage).Interface("panic", r).Msg("subsystem panic recovered")
		}
	}()
	fn()
}

func (e *Engine) drainInbound(nowMillis int64) {
	for i := 0; i < e.cfg.MaxInboundEventsPerTick; i++ {
		ev, ok := e.d.Inbound.TryReceive()
		if !ok {
			return
		}
		e.metrics.InboundEventsProcessed++
		e.dispatchInbound(nowMillis, ev)
	}
}

// allPlayers snapshots the connected player set for subsystems that
// iterate it.
func (e *Engine) allPlayers() []*player.Player {
	out := make([]*player.Player, 0, len(e.sessions))
	for _, s := range e.sessions {
		if s.player != nil {
			out = append(out, s.player)
		}
	}
	return out
}

// emit buffers an outbound event on its session's bounded per-tick
// queue. Overflow is the backpressure failure mode: the session is
// disconnected with a distinct reason and the counter incremented,
// exactly once.
func (e *Engine) emit(ev events.Outbound) {
	s, ok := e.sessions[ev.SessionID]
	if !ok {
		e.d.Outbound.TrySend(ev)
		return
	}
	if s.dropped {
		return
	}
	if len(s.pending) >= e.cfg.SessionOutboundQueueCapacity {
		s.dropped = true
		s.closing = true
		e.metrics.BackpressureDisconnects++
		e.log.Warn().Uint64("session", uint64(s.id)).Msg("outbound queue overflow, disconnecting session")
		e.d.Outbound.TrySend(events.Close(s.id, "backpressure"))
		return
	}
	s.pending = append(s.pending, ev)
	if ev.Kind == events.KindClose {
		s.closing = true
	}
}

func (e *Engine) emitAll(evs []events.Outbound) {
	for _, ev := range evs {
		e.emit(ev)
	}
}

// flushSessions pushes each session's buffered events onto the
// outbound bus and tears down sessions that closed this tick.
func (e *Engine) flushSessions() {
	var toClose []ids.SessionID
	for id, s := range e.sessions {
		for _, ev := range s.pending {
			if !e.d.Outbound.TrySend(ev) {
				if !s.dropped {
					s.dropped = true
					s.closing = true
					e.metrics.BackpressureDisconnects++
					e.d.Outbound.TrySend(events.Close(s.id, "backpressure"))
				}
				break
			}
		}
		s.pending = s.pending[:0]
		if s.closing {
			toClose = append(toClose, id)
		}
	}
	for _, id := range toClose {
		reason := "closed"
		if s := e.sessions[id]; s != nil && s.dropped {
			reason = "backpressure"
		}
		e.teardownSession(id, reason)
	}
}

// flushGmcp marks vitals dirty for players whose HP/mana moved this
// tick (combat and effects mutate them without tagging), then emits
// every dirty package's coalesced snapshot.
func (e *Engine) flushGmcp() {
	for _, s := range e.sessions {
		p := s.player
		if p == nil {
			continue
		}
		if p.HP != s.lastHP || p.MaxHP != s.lastMaxHP || p.Mana != s.lastMana || p.MaxMana != s.lastMaxMana {
			p.MarkGmcpDirty(gmcp.PackageVitals)
			s.lastHP, s.lastMaxHP, s.lastMana, s.lastMaxMana = p.HP, p.MaxHP, p.Mana, p.MaxMana
		}
		if p.Level != s.lastLevel {
			s.lastLevel = p.Level
			e.d.Abilities.LearnAbilitiesForLevel(p)
		}
		e.emitAll(e.d.Gmcp.FlushDirty(p))
	}
}

// broadcastRoom sends text to every player in room, optionally
// skipping one name.
func (e *Engine) broadcastRoom(room ids.EntityID, text, skipName string) {
	for _, p := range e.d.Players.InRoom(room) {
		if p.Name == skipName {
			continue
		}
		e.emit(events.SendText(p.SessionID, text))
	}
}
