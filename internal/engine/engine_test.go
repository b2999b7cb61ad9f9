package engine

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ambonmud/internal/ability"
	"ambonmud/internal/bus"
	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/events"
	"ambonmud/internal/gmcp"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
	"ambonmud/internal/mobai"
	"ambonmud/internal/persistence"
	"ambonmud/internal/player"
	"ambonmud/internal/regen"
	"ambonmud/internal/scheduler"
	"ambonmud/internal/sharding"
	"ambonmud/internal/world"
)

// fakeAuth accepts one password for every account in exists, with MFA
// never enabled, keeping login tests off the real KDF.
type fakeAuth struct {
	exists   map[string]bool
	password string
}

func (f fakeAuth) AccountExists(u string) (bool, error)    { return f.exists[u], nil }
func (f fakeAuth) CheckPassword(u, p string) (bool, error) { return p == f.password, nil }
func (f fakeAuth) MFAEnabled(string) (bool, error)         { return false, nil }
func (f fakeAuth) CheckMFA(string, string) (bool, error)   { return true, nil }
func (f fakeAuth) EnrollMFA(string) (string, error)        { return "otpauth://totp/test", nil }

// memRepo is an in-memory Repository for engine tests.
type memRepo struct {
	mu     sync.Mutex
	byID   map[string]*persistence.PlayerRecord
	byName map[string]string
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[string]*persistence.PlayerRecord), byName: make(map[string]string)}
}

func (r *memRepo) FindByName(name string) (*persistence.PlayerRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, false, nil
	}
	return r.byID[id], true, nil
}

func (r *memRepo) FindByID(id string) (*persistence.PlayerRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	return rec, ok, nil
}

func (r *memRepo) Create(rec *persistence.PlayerRecord) (*persistence.PlayerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[strings.ToLower(rec.Name)]; taken {
		return nil, persistence.ErrNameTaken
	}
	r.nextID++
	rec.ID = fmt.Sprintf("%d", r.nextID)
	r.byID[rec.ID] = rec
	r.byName[strings.ToLower(rec.Name)] = rec.ID
	return rec, nil
}

func (r *memRepo) Save(rec *persistence.PlayerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = rec
	r.byName[strings.ToLower(rec.Name)] = rec.ID
	return nil
}

func (r *memRepo) seed(rec *persistence.PlayerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = rec
	r.byName[strings.ToLower(rec.Name)] = rec.ID
}

// linkedBus mimics the distributed inter-engine bus for two engines in
// one process: TrySend delivers into the local delegate (own-origin
// copies are filtered by the engine) and into the peer's queue.
type linkedBus struct {
	*bus.Local[events.InterEngineMessage]
	peer *bus.Local[events.InterEngineMessage]
}

func (l *linkedBus) TrySend(m events.InterEngineMessage) bool {
	l.Local.TrySend(m)
	if l.peer != nil {
		l.peer.TrySend(m)
	}
	return true
}

func testWorld() *world.World {
	edge := world.Room{
		ID:    ids.EntityID("hubz:edge"),
		Title: "The Edge of the Hub",
		Exits: map[world.Direction]world.Exit{
			world.North: {Direction: world.North, Target: ids.EntityID("cavez:mouth")},
		},
	}
	mouth := world.Room{
		ID:    ids.EntityID("cavez:mouth"),
		Title: "Cave Mouth",
		Exits: map[world.Direction]world.Exit{
			world.South: {Direction: world.South, Target: ids.EntityID("hubz:edge")},
		},
	}
	return &world.World{
		Rooms:     map[ids.EntityID]world.Room{edge.ID: edge, mouth.ID: mouth},
		Zones:     map[string]world.Zone{"hubz": {Name: "hubz"}, "cavez": {Name: "cavez"}},
		StartRoom: edge.ID,
	}
}

func ratTemplate() mob.Template {
	return mob.Template{ID: "rat", Name: "rat", MaxHP: 5, MinDamage: 1, MaxDamage: 1, XPReward: 10}
}

type harness struct {
	eng     *Engine
	clk     *clock.Manual
	in      *bus.Local[events.Inbound]
	out     *bus.Local[events.Outbound]
	players *player.Registry
	mobs    *mob.Registry
	repo    *memRepo
	outbox  []events.Outbound
}

type harnessOpts struct {
	engineID   string
	queueCap   int
	maxLogins  int
	ownedZones []string
	inter      bus.Bus[events.InterEngineMessage]
	registry   sharding.Registry
	world      *world.World
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	if o.queueCap == 0 {
		o.queueCap = 64
	}
	if o.maxLogins == 0 {
		o.maxLogins = 8
	}
	if o.engineID == "" {
		o.engineID = "E1"
	}
	w := o.world
	if w == nil {
		w = testWorld()
	}

	clk := clock.NewManual(1_000_000)
	players := player.NewRegistry()
	mobs := mob.NewRegistry()
	items := item.NewRegistry()
	sched := scheduler.New()
	progression := player.ProgressionCurve{BaseXP: 100, Exponent: 1.5, LinearXP: 50, MaxLevel: 50}

	combatSub := combat.New(combat.Config{MinDamage: 3, MaxDamage: 3, RoundIntervalMs: 2000, MaxCombatsPerTick: 16},
		clk, players, mobs, items, *w, nil, progression, nil)

	mobAI := mobai.New(staticMobAIConfig(), mobs, *w, players, combatSub)

	regenSub := regen.New(regen.Config{
		HPBaseIntervalMs: 3_600_000, HPAmount: 1, HPMinIntervalMs: 3_600_000,
		ManaBaseIntervalMs: 3_600_000, ManaAmount: 1, ManaMinIntervalMs: 3_600_000,
		MaxPlayersPerTick: 64,
	})

	defs := []ability.Definition{
		{ID: "missile", DisplayName: "Magic Missile", ManaCost: 8, CooldownMs: 3000, LevelRequired: 1,
			TargetType: ability.TargetEnemy, Effect: ability.Effect{Kind: ability.EffectDirectDamage, Min: 3, Max: 3}},
		{ID: "heal", DisplayName: "Minor Heal", ManaCost: 8, CooldownMs: 3000, LevelRequired: 1,
			TargetType: ability.TargetSelf, Effect: ability.Effect{Kind: ability.EffectDirectHeal, Min: 4, Max: 4}},
	}
	abilities, err := ability.New(defs, nil, players, mobs, combatSub, clk)
	require.NoError(t, err)

	emitter := gmcp.NewEmitter(*w, mobs, players, items, abilities)
	editor := world.NewEditor(w)

	repo := newMemRepo()
	repo.seed(&persistence.PlayerRecord{
		ID: "1", Name: "Ama", CurrentRoomID: "hubz:edge",
		Strength: 10, Dexterity: 10, Constitution: 10, Intelligence: 10, Wisdom: 10, Charisma: 10,
		Level: 1, HP: 20, MaxHP: 20, Mana: 10, MaxMana: 10, AnsiEnabled: true,
	})

	var coordinator *sharding.Coordinator
	if o.inter != nil {
		seq := 0
		coordinator = sharding.NewCoordinator(sched, 5000, func(m events.InterEngineMessage) {
			o.inter.TrySend(m)
		}, func() string {
			seq++
			return fmt.Sprintf("%s-handoff-%d", o.engineID, seq)
		})
	}

	in := bus.NewLocal[events.Inbound](256)
	out := bus.NewLocal[events.Outbound](1024)

	eng := New(Config{
		EngineID:                     o.engineID,
		TickMillis:                   100,
		MaxInboundEventsPerTick:      64,
		SessionOutboundQueueCapacity: o.queueCap,
		MaxConcurrentLogins:          o.maxLogins,
		AuthThreads:                  2,
		MaxWrongPasswordRetries:      3,
		SchedulerMaxRunsPerTick:      100,
		HandoffTimeoutMs:             5000,
		OwnedZones:                   o.ownedZones,
	}, Deps{
		Clock:        clk,
		Log:          zerolog.Nop(),
		Inbound:      in,
		Outbound:     out,
		InterEngine:  o.inter,
		World:        w,
		Editor:       editor,
		Players:      players,
		Mobs:         mobs,
		MobTemplates: mob.NewTemplateRegistry(),
		Items:        items,
		Combat:       combatSub,
		MobAI:        mobAI,
		Regen:        regenSub,
		Abilities:    abilities,
		Scheduler:    sched,
		Gmcp:         emitter,
		Repo:         repo,
		Auth:         fakeAuth{exists: map[string]bool{"Ama": true}, password: "secret"},
		ZoneRegistry: o.registry,
		Coordinator:  coordinator,
	})
	eng.Start()

	return &harness{eng: eng, clk: clk, in: in, out: out, players: players, mobs: mobs, repo: repo}
}

func staticMobAIConfig() mobai.Config {
	// Wander delays far beyond any test's clock advance keep mobs put.
	return mobai.Config{MinWanderDelayMs: 1 << 40, MaxWanderDelayMs: 1 << 40, MaxMovesPerTick: 16}
}

// tick runs one engine tick and drains the outbound bus into outbox.
func (h *harness) tick() {
	h.eng.Tick(h.clk.NowMillis())
	for {
		ev, ok := h.out.TryReceive()
		if !ok {
			return
		}
		h.outbox = append(h.outbox, ev)
	}
}

// tickUntil pumps ticks (with real sleeps for the async auth workers)
// until cond holds or the deadline passes.
func (h *harness) tickUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.tick()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never met; outbox: %v", h.outbox)
}

func (h *harness) line(session ids.SessionID, text string) {
	h.in.TrySend(events.LineReceived(session, text))
}

// login drives the existing-account flow to completion for Ama.
func (h *harness) login(t *testing.T, session ids.SessionID, ansi bool) *player.Player {
	t.Helper()
	h.in.TrySend(events.Connected(session, ansi))
	h.line(session, "Ama")
	h.line(session, "secret")
	h.line(session, "n") // decline MFA enrollment
	h.tickUntil(t, func() bool {
		_, ok := h.players.ByName("Ama")
		return ok
	})
	p, _ := h.players.ByName("Ama")
	return p
}

func (h *harness) sawText(substr string) bool {
	for _, ev := range h.outbox {
		if strings.Contains(ev.Text, substr) {
			return true
		}
	}
	return false
}

func (h *harness) sawClose(reason string) bool {
	for _, ev := range h.outbox {
		if ev.Kind == events.KindClose && ev.CloseReason == reason {
			return true
		}
	}
	return false
}

func TestTickWithoutWorkIsANoop(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.tick()
	h.tick()
	require.Empty(t, h.outbox)
	require.Equal(t, int64(2), h.eng.Metrics().TicksRun)
	require.Zero(t, h.eng.Metrics().SubsystemPanics)
}

func TestLoginThenSoloCombatToDeathAndLoot(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rat := mob.NewFromTemplate(ids.EntityID("hubz:rat1"), ratTemplate(), ids.EntityID("hubz:edge"), 0)
	h.mobs.Add(rat)

	p := h.login(t, 1, true)
	require.Equal(t, ids.EntityID("hubz:edge"), p.Room)
	require.True(t, h.sawText("The Edge of the Hub"))

	h.line(1, "kill rat")
	h.tickUntil(t, func() bool { return p.InCombat })

	// Round one: player hits for 3, rat survives on 2, rat hits back.
	h.clk.Advance(2001 * time.Millisecond)
	h.tick()
	require.Equal(t, 2, rat.HP)
	require.Equal(t, 19, p.HP)

	// Round two kills the rat: death broadcast, XP, fight over.
	h.clk.Advance(2001 * time.Millisecond)
	h.tick()
	require.True(t, h.sawText("The rat dies."))
	require.True(t, h.sawText("You have slain the rat!"))
	require.Equal(t, int64(10), p.XP)
	require.False(t, p.InCombat)
	_, alive := h.mobs.Get(rat.ID)
	require.False(t, alive)
}

func TestCastConsumesManaAndSetsCooldown(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	rat := mob.NewFromTemplate(ids.EntityID("hubz:rat1"), ratTemplate(), ids.EntityID("hubz:edge"), 0)
	h.mobs.Add(rat)

	p := h.login(t, 1, true)
	h.line(1, "cast missile rat")
	h.tickUntil(t, func() bool { return p.Mana == 2 })
	require.Equal(t, 2, rat.HP)

	// Out of mana: the next cast of either spell is refused before any
	// cooldown is consulted.
	h.clk.Advance(500 * time.Millisecond)
	h.line(1, "cast heal")
	h.tickUntil(t, func() bool { return h.sawText("insufficient mana") })
	require.Equal(t, 2, p.Mana)

	// With mana restored but the cooldown still running, the rejection
	// switches to the remaining-time error.
	p.Mana = 10
	h.line(1, "cast missile rat")
	h.tickUntil(t, func() bool { return h.sawText("on cooldown") })
	require.Equal(t, 10, p.Mana)
}

func TestBackpressureDisconnectsExactlyOnce(t *testing.T) {
	h := newHarness(t, harnessOpts{queueCap: 4})
	p := h.login(t, 1, false)
	require.NotNil(t, p)
	h.outbox = nil

	// Three says in one tick produce six events against a capacity of
	// four: overflow disconnects with the distinct reason, once.
	h.line(1, "say one")
	h.line(1, "say two")
	h.line(1, "say three")
	h.tick()

	require.Equal(t, int64(1), h.eng.Metrics().BackpressureDisconnects)
	require.True(t, h.sawClose("backpressure"))
	_, still := h.players.ByName("Ama")
	require.False(t, still)

	// The session is gone; nothing further can double-count it.
	h.tick()
	require.Equal(t, int64(1), h.eng.Metrics().BackpressureDisconnects)
}

func TestAuthFunnelRejectsOverflowImmediately(t *testing.T) {
	h := newHarness(t, harnessOpts{maxLogins: 2})

	h.in.TrySend(events.Connected(1, false))
	h.in.TrySend(events.Connected(2, false))
	h.in.TrySend(events.Connected(3, false))
	h.tick()

	require.Equal(t, int64(1), h.eng.Metrics().AuthRejectedBusy)
	require.True(t, h.sawText("busy"))
	require.True(t, h.sawClose("server_busy"))

	// A slot frees when a funnel session disconnects; the next connect
	// is admitted and sees the login prompt, not the busy error.
	h.in.TrySend(events.Disconnected(1, "gone"))
	h.tick()
	h.outbox = nil
	h.in.TrySend(events.Connected(4, false))
	h.tick()
	require.True(t, h.sawText("Login:"))
	require.False(t, h.sawClose("server_busy"))
}

func TestWrongPasswordBudgetDisconnects(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.in.TrySend(events.Connected(1, false))
	h.line(1, "Ama")
	h.line(1, "wrong1")
	h.line(1, "Ama")
	h.line(1, "wrong2")
	h.line(1, "Ama")
	h.line(1, "wrong3")
	h.line(1, "Ama")
	h.line(1, "wrong4")
	h.tickUntil(t, func() bool { return h.sawClose("too_many_failed_attempts") })
}

func newLinkedPair(t *testing.T) (*harness, *harness) {
	t.Helper()
	e1Local := bus.NewLocal[events.InterEngineMessage](64)
	e2Local := bus.NewLocal[events.InterEngineMessage](64)
	e1Bus := &linkedBus{Local: e1Local, peer: e2Local}
	e2Bus := &linkedBus{Local: e2Local, peer: e1Local}

	registry := sharding.NewStaticRegistry(map[string]string{"hubz": "E1", "cavez": "E2"}, nil)

	h1 := newHarness(t, harnessOpts{engineID: "E1", ownedZones: []string{"hubz"}, inter: e1Bus, registry: registry})
	h2 := newHarness(t, harnessOpts{engineID: "E2", ownedZones: []string{"cavez"}, inter: e2Bus, registry: registry})
	return h1, h2
}

func TestCrossZoneHandoffCommits(t *testing.T) {
	h1, h2 := newLinkedPair(t)

	h1.login(t, 1, false)
	h1.outbox = nil

	h1.line(1, "north")
	h1.tick()

	// Source side: player gone, redirect issued, handoff pending.
	_, onE1 := h1.players.ByName("Ama")
	require.False(t, onE1)
	var redirected bool
	for _, ev := range h1.outbox {
		if ev.Kind == events.KindSessionRedirect && ev.TargetEngineID == "E2" {
			redirected = true
		}
	}
	require.True(t, redirected)
	require.Equal(t, int64(1), h1.eng.Metrics().HandoffsStarted)

	// Target side admits, places, announces, and acks.
	h2.tick()
	p, onE2 := h2.players.ByName("Ama")
	require.True(t, onE2)
	require.Equal(t, ids.EntityID("cavez:mouth"), p.Room)
	require.True(t, h2.sawText("Cave Mouth"))

	// Ack commits on the source; a replayed ack changes nothing.
	h1.tick()
	require.Equal(t, int64(1), h1.eng.Metrics().HandoffsCommitted)
	h1.eng.dispatchInterEngine(h1.clk.NowMillis(), sharding.AckMessage("E1-handoff-1", "E2", "E1"))
	h1.tick()
	require.Equal(t, int64(1), h1.eng.Metrics().HandoffsCommitted)
}

func TestCrossZoneHandoffTimeoutRollsBack(t *testing.T) {
	e1Local := bus.NewLocal[events.InterEngineMessage](64)
	// No peer: the handoff message goes nowhere, so the ack never comes.
	e1Bus := &linkedBus{Local: e1Local}
	registry := sharding.NewStaticRegistry(map[string]string{"hubz": "E1", "cavez": "E2"}, nil)
	h := newHarness(t, harnessOpts{engineID: "E1", ownedZones: []string{"hubz"}, inter: e1Bus, registry: registry})

	h.login(t, 1, false)
	h.outbox = nil

	h.line(1, "north")
	h.tick()
	_, present := h.players.ByName("Ama")
	require.False(t, present)

	h.clk.Advance(5001 * time.Millisecond)
	h.tick()

	p, restored := h.players.ByName("Ama")
	require.True(t, restored)
	require.Equal(t, ids.EntityID("hubz:edge"), p.Room)
	require.True(t, h.sawText("The way north shimmers but does not yield."))
	require.Equal(t, int64(1), h.eng.Metrics().HandoffsRolledBack)

	var reRouted bool
	for _, ev := range h.outbox {
		if ev.Kind == events.KindSessionRedirect && ev.TargetEngineID == "E1" {
			reRouted = true
		}
	}
	require.True(t, reRouted)

	// The restored player keeps working on the source engine.
	h.outbox = nil
	h.line(1, "look")
	h.tick()
	require.True(t, h.sawText("The Edge of the Hub"))
}

func TestDisconnectSavesAndRemovesOnce(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	p := h.login(t, 1, true)
	p.Gold = 42

	h.in.TrySend(events.Disconnected(1, "read_error"))
	h.tick()

	_, still := h.players.ByName("Ama")
	require.False(t, still)
	rec, ok, err := h.repo.FindByName("Ama")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), rec.Gold)

	// A second Disconnected for the same session is a no-op.
	h.in.TrySend(events.Disconnected(1, "read_error"))
	h.tick()
	require.Zero(t, h.eng.Metrics().SubsystemPanics)
}
