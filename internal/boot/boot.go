// Package boot builds the simulation stack a composition root runs:
// world content, registries, subsystems, persistence, and the engine
// itself, wired explicitly from configuration. cmd/standalone and
// cmd/engine share this so the wiring exists exactly once; cmd/gateway
// carries no simulation and doesn't use it.
package boot

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ambonmud/internal/ability"
	"ambonmud/internal/bus"
	"ambonmud/internal/clock"
	"ambonmud/internal/combat"
	"ambonmud/internal/config"
	"ambonmud/internal/engine"
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

// Runtime is the assembled simulation a composition root drives.
type Runtime struct {
	Engine    *engine.Engine
	Players   *player.Registry
	Coalescer *persistence.Coalescer
}

// OpenRepository builds the persistence stack from configuration:
// durable backend, optional redis cache, write-coalescer on top. The
// returned Coalescer is both the Repository handed to the engine and
// the Flusher/shutdown handle.
func OpenRepository(cfg *config.Config, log zerolog.Logger) (*persistence.Coalescer, error) {
	var backend persistence.Repository
	switch cfg.PersistenceBackend {
	case "SQL":
		b, err := persistence.NewSQLBackend(cfg.PersistenceDSN)
		if err != nil {
			return nil, fmt.Errorf("boot: open sql backend: %w", err)
		}
		backend = b
	default:
		b, err := persistence.NewFileBackend(cfg.PersistenceFilePath)
		if err != nil {
			return nil, fmt.Errorf("boot: open file backend: %w", err)
		}
		backend = b
	}

	if cfg.CacheEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.CacheURI})
		backend = persistence.NewCacheDecorator(backend, rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second, log)
	}

	return persistence.NewCoalescer(backend, time.Duration(cfg.PersistenceFlushIntervalMs)*time.Millisecond, log), nil
}

// respawnScheduler adapts the scheduler's handle-returning After to
// combat's fire-and-forget RespawnScheduler signature.
type respawnScheduler struct {
	s *scheduler.Scheduler
}

func (r respawnScheduler) After(nowMillis, delayMillis int64, fn func(nowMillis int64)) {
	r.s.After(nowMillis, delayMillis, fn)
}

// BuildRuntime loads world content and assembles the engine. inter,
// zoneReg, and selector are nil for standalone deployments; ownedZones
// empty means the engine owns the whole world.
func BuildRuntime(
	cfg *config.Config,
	log zerolog.Logger,
	inbound bus.Bus[events.Inbound],
	outbound bus.Bus[events.Outbound],
	inter bus.Bus[events.InterEngineMessage],
	zoneReg sharding.Registry,
	selector *sharding.Selector,
	ownedZones []string,
	coalescer *persistence.Coalescer,
) (*Runtime, error) {
	w, err := world.LoadFile(cfg.WorldFile)
	if err != nil {
		return nil, fmt.Errorf("boot: load world: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("boot: validate world: %w", err)
	}

	mobTemplates := mob.NewTemplateRegistry()
	templates, err := mob.LoadTemplateFile(cfg.MobFile)
	if err != nil {
		return nil, fmt.Errorf("boot: load mob templates: %w", err)
	}
	for _, t := range templates {
		mobTemplates.Register(t)
	}

	items := item.NewRegistry()
	itemTemplates, err := item.LoadTemplateFile(cfg.ItemFile)
	if err != nil {
		return nil, fmt.Errorf("boot: load item templates: %w", err)
	}
	for _, t := range itemTemplates {
		items.RegisterTemplate(t)
	}

	abilityDefs, err := ability.LoadDefinitionFile(cfg.AbilityFile)
	if err != nil {
		return nil, fmt.Errorf("boot: load abilities: %w", err)
	}
	statusDefs, err := ability.LoadStatusDefinitionFile(cfg.StatusFile)
	if err != nil {
		return nil, fmt.Errorf("boot: load status effects: %w", err)
	}

	clk := clock.System{}
	players := player.NewRegistry()
	mobs := mob.NewRegistry()
	sched := scheduler.New()

	progression := player.ProgressionCurve{
		BaseXP:   int64(cfg.XPBaseXP),
		Exponent: cfg.XPExponent,
		LinearXP: int64(cfg.XPLinearXP),
		MaxLevel: cfg.MaxLevel,
	}

	combatSub := combat.New(combat.Config{
		MinDamage:         cfg.MinDamage,
		MaxDamage:         cfg.MaxDamage,
		RoundIntervalMs:   int64(cfg.RoundIntervalMs),
		MaxCombatsPerTick: cfg.MaxCombatsPerTick,
	}, clk, players, mobs, items, w, respawnScheduler{sched}, progression, nil)

	mobAI := mobai.New(mobai.Config{
		MinWanderDelayMs: int64(cfg.MobMinWanderDelayMs),
		MaxWanderDelayMs: int64(cfg.MobMaxWanderDelayMs),
		MaxMovesPerTick:  cfg.MobMaxMovesPerTick,
	}, mobs, w, players, combatSub)

	regenSub := regen.New(regen.Config{
		HPBaseIntervalMs:   int64(cfg.RegenBaseIntervalMillis),
		HPAmount:           cfg.RegenHPAmount,
		HPMinIntervalMs:    int64(cfg.RegenHPMinIntervalMillis),
		ManaBaseIntervalMs: int64(cfg.RegenBaseIntervalMillis),
		ManaAmount:         cfg.RegenManaAmount,
		ManaMinIntervalMs:  int64(cfg.RegenManaMinIntervalMillis),
		MaxPlayersPerTick:  cfg.MaxInboundEventsPerTick,
	})

	abilities, err := ability.New(abilityDefs, statusDefs, players, mobs, combatSub, clk)
	if err != nil {
		return nil, fmt.Errorf("boot: ability definitions: %w", err)
	}

	emitter := gmcp.NewEmitter(w, mobs, players, items, abilities)
	editor := world.NewEditor(&w)

	auth := login.NewBcryptTOTPAuthenticator(persistence.NewAccountStore(coalescer), cfg.MFAIssuer)

	var coordinator *sharding.Coordinator
	if inter != nil {
		coordinator = sharding.NewCoordinator(sched, int64(cfg.HandoffTimeoutMs), func(msg events.InterEngineMessage) {
			inter.TrySend(msg)
		}, ids.NewRecordID)
	}

	eng := engine.New(engine.Config{
		EngineID:                     cfg.EngineID,
		TickMillis:                   cfg.TickMillis,
		MaxInboundEventsPerTick:      cfg.MaxInboundEventsPerTick,
		SessionOutboundQueueCapacity: cfg.SessionOutboundQueueCapacity,
		MaxConcurrentLogins:          cfg.MaxConcurrentLogins,
		AuthThreads:                  cfg.AuthThreads,
		MaxWrongPasswordRetries:     cfg.MaxWrongPasswordRetries,
		SchedulerMaxRunsPerTick:      cfg.SchedulerMaxRunsPerTick,
		HandoffTimeoutMs:             int64(cfg.HandoffTimeoutMs),
		OwnedZones:                   ownedZones,
	}, engine.Deps{
		Clock:        clk,
		Log:          log,
		Inbound:      inbound,
		Outbound:     outbound,
		InterEngine:  inter,
		World:        &w,
		Editor:       editor,
		Players:      players,
		Mobs:         mobs,
		MobTemplates: mobTemplates,
		Items:        items,
		Combat:       combatSub,
		MobAI:        mobAI,
		Regen:        regenSub,
		Abilities:    abilities,
		Scheduler:    sched,
		Gmcp:         emitter,
		Repo:         coalescer,
		RepoFlusher:  coalescer,
		Auth:         auth,
		ZoneRegistry: zoneReg,
		Selector:     selector,
		Coordinator:  coordinator,
	})

	return &Runtime{Engine: eng, Players: players, Coalescer: coalescer}, nil
}
