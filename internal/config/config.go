// File: internal/config/config.go
// AmbonMUD - Configuration Management

package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Mode selects which composition root a process boots into.
type Mode string

const (
	ModeStandalone Mode = "STANDALONE"
	ModeEngine     Mode = "ENGINE"
	ModeGateway    Mode = "GATEWAY"
)

// Config holds all configuration for an AmbonMUD process. Every group in
// this struct mirrors a recognized configuration group; unknown keys in
// the env file are logged and ignored rather than rejected, but
// validateConfig rejects unknown enum values and contradictory settings.
type Config struct {
	Mode Mode

	// server
	TelnetPort                   int
	WebPort                      int
	TickMillis                   int
	SessionOutboundQueueCapacity int
	MaxInboundEventsPerTick      int

	// login
	MaxConcurrentLogins     int
	AuthThreads             int
	MaxWrongPasswordRetries int
	MFAEnabled              bool

	// engine.combat
	MinDamage        int
	MaxDamage        int
	RoundIntervalMs  int
	MaxCombatsPerTick int

	// engine.regen
	RegenBaseIntervalMillis int
	RegenHPAmount           int
	RegenHPMinIntervalMillis int
	RegenManaAmount          int
	RegenManaMinIntervalMillis int

	// engine.mob
	MobMinWanderDelayMs int
	MobMaxWanderDelayMs int
	MobMaxMovesPerTick  int

	// progression
	XPBaseXP       float64
	XPExponent     float64
	XPLinearXP     float64
	MaxLevel       int
	FullHealOnLevelUp bool

	// persistence
	PersistenceBackend   string // FILE | SQL
	PersistenceFilePath  string
	PersistenceDSN       string
	PersistenceFlushIntervalMs int

	// cache
	CacheEnabled    bool
	CacheURI        string
	CacheTTLSeconds int

	// bus
	BusEnabled      bool
	BusURI          string
	BusSharedSecret string
	BusChannelName  string
	InstanceID      string

	// grpc
	GRPCServerPort int
	GRPCClientHost string
	GRPCClientPort int

	// gateway
	GatewayID                  string
	GatewayIDLeaseTTLSeconds   int
	ReconnectMaxAttempts       int
	ReconnectInitialDelayMs    int
	ReconnectMaxDelayMs        int
	ReconnectJitterFactor      float64
	ReconnectStreamVerifyMs    int

	// sharding
	EngineID                       string
	OwnedZones                     []string
	ZoneOwners                     map[string]string // zone -> engine id, static registry
	HandoffTimeoutMs               int
	ShardingReplicatedZones        []string
	ShardingSelectionStrategy      string
	ShardingLoadTTLSeconds         int
	ShardingHealthFailureThreshold int

	// scheduler
	SchedulerMaxRunsPerTick int

	// world content
	WorldFile     string
	MobFile       string
	ItemFile      string
	AbilityFile   string
	StatusFile    string

	// mfa
	MFAIssuer string
}

var defaultConfig = Config{
	Mode: ModeStandalone,

	TelnetPort:                   4000,
	WebPort:                      8080,
	TickMillis:                   100,
	SessionOutboundQueueCapacity: 64,
	MaxInboundEventsPerTick:      256,

	MaxConcurrentLogins:     64,
	AuthThreads:             4,
	MaxWrongPasswordRetries: 3,
	MFAEnabled:              false,

	MinDamage:         2,
	MaxDamage:         4,
	RoundIntervalMs:   2000,
	MaxCombatsPerTick: 256,

	RegenBaseIntervalMillis:    5000,
	RegenHPAmount:              1,
	RegenHPMinIntervalMillis:   1000,
	RegenManaAmount:            1,
	RegenManaMinIntervalMillis: 1000,

	MobMinWanderDelayMs: 5000,
	MobMaxWanderDelayMs: 15000,
	MobMaxMovesPerTick:  64,

	XPBaseXP:          100,
	XPExponent:        1.5,
	XPLinearXP:        50,
	MaxLevel:          50,
	FullHealOnLevelUp: true,

	PersistenceBackend:         "FILE",
	PersistenceFilePath:        "data/players",
	PersistenceFlushIntervalMs: 5000,

	CacheEnabled:    false,
	CacheTTLSeconds: 300,

	BusEnabled:     false,
	BusURI:         "nats://localhost:4222",
	BusChannelName: "ambonmud.events",

	GRPCServerPort: 9090,
	GRPCClientHost: "localhost",
	GRPCClientPort: 9090,

	GatewayID:                "gw-1",
	GatewayIDLeaseTTLSeconds: 30,
	ReconnectMaxAttempts:     8,
	ReconnectInitialDelayMs:  250,
	ReconnectMaxDelayMs:      30000,
	ReconnectJitterFactor:    0.2,
	ReconnectStreamVerifyMs:  2000,

	EngineID:                       "engine-1",
	HandoffTimeoutMs:               5000,
	ShardingSelectionStrategy:      "power_of_two",
	ShardingLoadTTLSeconds:         10,
	ShardingHealthFailureThreshold: 3,

	SchedulerMaxRunsPerTick: 500,

	WorldFile:   "data/world.yaml",
	MobFile:     "data/mobs.yaml",
	ItemFile:    "data/items.yaml",
	AbilityFile: "data/abilities.yaml",
	StatusFile:  "data/statuses.yaml",

	MFAIssuer: "AmbonMUD",
}

// LoadConfig loads configuration from an environment file, applies any
// real process-environment overrides, then validates the result.
func LoadConfig() (*Config, error) {
	envFile := flag.String("env", ".env", "Path to environment configuration file")
	flag.Parse()

	log.Printf("loading configuration from: %s", *envFile)

	config := defaultConfig
	config.InstanceID = uuid.NewString()

	values, err := godotenv.Read(*envFile)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("configuration file %s not found, creating with defaults...", *envFile)
			if werr := godotenv.Write(defaultEnvMap(), *envFile); werr != nil {
				return nil, fmt.Errorf("failed to create default config: %w", werr)
			}
		} else {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	for key, value := range values {
		if err := setConfigValue(&config, key, value); err != nil {
			log.Printf("warning: error setting %s: %v", key, err)
		}
	}

	// Real environment variables take precedence over the .env file.
	for _, key := range recognizedKeys {
		if value, ok := os.LookupEnv(key); ok {
			if err := setConfigValue(&config, key, value); err != nil {
				log.Printf("warning: error setting %s from environment: %v", key, err)
			}
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("configuration loaded successfully")
	return &config, nil
}

var recognizedKeys = []string{
	"MODE", "TELNET_PORT", "WEB_PORT", "TICK_MILLIS",
	"SESSION_OUTBOUND_QUEUE_CAPACITY", "MAX_INBOUND_EVENTS_PER_TICK",
	"MAX_CONCURRENT_LOGINS", "AUTH_THREADS", "MAX_WRONG_PASSWORD_RETRIES",
	"MFA_ENABLED", "MIN_DAMAGE", "MAX_DAMAGE", "ROUND_INTERVAL_MS",
	"MAX_COMBATS_PER_TICK", "PERSISTENCE_BACKEND", "PERSISTENCE_FILE_PATH",
	"PERSISTENCE_DSN", "PERSISTENCE_FLUSH_INTERVAL_MS", "CACHE_ENABLED",
	"CACHE_URI", "CACHE_TTL_SECONDS", "BUS_ENABLED", "BUS_URI", "BUS_SHARED_SECRET",
	"BUS_CHANNEL_NAME", "GRPC_SERVER_PORT", "GRPC_CLIENT_HOST",
	"GRPC_CLIENT_PORT", "GATEWAY_ID",
	"REGEN_BASE_INTERVAL_MS", "REGEN_HP_AMOUNT", "REGEN_HP_MIN_INTERVAL_MS",
	"REGEN_MANA_AMOUNT", "REGEN_MANA_MIN_INTERVAL_MS",
	"MOB_MIN_WANDER_DELAY_MS", "MOB_MAX_WANDER_DELAY_MS", "MOB_MAX_MOVES_PER_TICK",
	"XP_BASE_XP", "XP_EXPONENT", "XP_LINEAR_XP", "MAX_LEVEL", "FULL_HEAL_ON_LEVEL_UP",
	"GATEWAY_ID_LEASE_TTL_SECONDS", "RECONNECT_MAX_ATTEMPTS", "RECONNECT_INITIAL_DELAY_MS",
	"RECONNECT_MAX_DELAY_MS", "RECONNECT_JITTER_FACTOR", "RECONNECT_STREAM_VERIFY_MS",
	"ENGINE_ID", "OWNED_ZONES", "ZONE_OWNERS", "HANDOFF_TIMEOUT_MS",
	"SHARDING_REPLICATED_ZONES", "SHARDING_SELECTION_STRATEGY", "SHARDING_LOAD_TTL_SECONDS",
	"SHARDING_HEALTH_FAILURE_THRESHOLD", "SCHEDULER_MAX_RUNS_PER_TICK",
	"WORLD_FILE", "MOB_FILE", "ITEM_FILE", "ABILITY_FILE", "STATUS_FILE", "MFA_ISSUER",
}

func defaultEnvMap() map[string]string {
	return map[string]string{
		"MODE":                             string(defaultConfig.Mode),
		"TELNET_PORT":                      strconv.Itoa(defaultConfig.TelnetPort),
		"WEB_PORT":                         strconv.Itoa(defaultConfig.WebPort),
		"TICK_MILLIS":                      strconv.Itoa(defaultConfig.TickMillis),
		"MAX_CONCURRENT_LOGINS":            strconv.Itoa(defaultConfig.MaxConcurrentLogins),
		"AUTH_THREADS":                     strconv.Itoa(defaultConfig.AuthThreads),
		"MAX_WRONG_PASSWORD_RETRIES":       strconv.Itoa(defaultConfig.MaxWrongPasswordRetries),
		"PERSISTENCE_BACKEND":              defaultConfig.PersistenceBackend,
		"PERSISTENCE_FILE_PATH":            defaultConfig.PersistenceFilePath,
		"CACHE_ENABLED":                    "false",
		"BUS_ENABLED":                      "false",
		"GATEWAY_ID":                       defaultConfig.GatewayID,
	}
}

// setConfigValue sets a configuration value by key name.
func setConfigValue(config *Config, key, value string) error {
	switch key {
	case "MODE":
		config.Mode = Mode(strings.ToUpper(value))
	case "TELNET_PORT":
		return setInt(&config.TelnetPort, value)
	case "WEB_PORT":
		return setInt(&config.WebPort, value)
	case "TICK_MILLIS":
		return setInt(&config.TickMillis, value)
	case "SESSION_OUTBOUND_QUEUE_CAPACITY":
		return setInt(&config.SessionOutboundQueueCapacity, value)
	case "MAX_INBOUND_EVENTS_PER_TICK":
		return setInt(&config.MaxInboundEventsPerTick, value)

	case "MAX_CONCURRENT_LOGINS":
		return setInt(&config.MaxConcurrentLogins, value)
	case "AUTH_THREADS":
		return setInt(&config.AuthThreads, value)
	case "MAX_WRONG_PASSWORD_RETRIES":
		return setInt(&config.MaxWrongPasswordRetries, value)
	case "MFA_ENABLED":
		config.MFAEnabled = value == "true" || value == "1"

	case "MIN_DAMAGE":
		return setInt(&config.MinDamage, value)
	case "MAX_DAMAGE":
		return setInt(&config.MaxDamage, value)
	case "ROUND_INTERVAL_MS":
		return setInt(&config.RoundIntervalMs, value)
	case "MAX_COMBATS_PER_TICK":
		return setInt(&config.MaxCombatsPerTick, value)

	case "PERSISTENCE_BACKEND":
		config.PersistenceBackend = strings.ToUpper(value)
	case "PERSISTENCE_FILE_PATH":
		config.PersistenceFilePath = value
	case "PERSISTENCE_DSN":
		config.PersistenceDSN = value
	case "PERSISTENCE_FLUSH_INTERVAL_MS":
		return setInt(&config.PersistenceFlushIntervalMs, value)

	case "CACHE_ENABLED":
		config.CacheEnabled = value == "true" || value == "1"
	case "CACHE_URI":
		config.CacheURI = value
	case "CACHE_TTL_SECONDS":
		return setInt(&config.CacheTTLSeconds, value)

	case "BUS_ENABLED":
		config.BusEnabled = value == "true" || value == "1"
	case "BUS_URI":
		config.BusURI = value
	case "BUS_SHARED_SECRET":
		config.BusSharedSecret = value
	case "BUS_CHANNEL_NAME":
		config.BusChannelName = value

	case "GRPC_SERVER_PORT":
		return setInt(&config.GRPCServerPort, value)
	case "GRPC_CLIENT_HOST":
		config.GRPCClientHost = value
	case "GRPC_CLIENT_PORT":
		return setInt(&config.GRPCClientPort, value)

	case "GATEWAY_ID":
		config.GatewayID = value
	case "GATEWAY_ID_LEASE_TTL_SECONDS":
		return setInt(&config.GatewayIDLeaseTTLSeconds, value)
	case "RECONNECT_MAX_ATTEMPTS":
		return setInt(&config.ReconnectMaxAttempts, value)
	case "RECONNECT_INITIAL_DELAY_MS":
		return setInt(&config.ReconnectInitialDelayMs, value)
	case "RECONNECT_MAX_DELAY_MS":
		return setInt(&config.ReconnectMaxDelayMs, value)
	case "RECONNECT_JITTER_FACTOR":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		config.ReconnectJitterFactor = f
	case "RECONNECT_STREAM_VERIFY_MS":
		return setInt(&config.ReconnectStreamVerifyMs, value)

	case "REGEN_BASE_INTERVAL_MS":
		return setInt(&config.RegenBaseIntervalMillis, value)
	case "REGEN_HP_AMOUNT":
		return setInt(&config.RegenHPAmount, value)
	case "REGEN_HP_MIN_INTERVAL_MS":
		return setInt(&config.RegenHPMinIntervalMillis, value)
	case "REGEN_MANA_AMOUNT":
		return setInt(&config.RegenManaAmount, value)
	case "REGEN_MANA_MIN_INTERVAL_MS":
		return setInt(&config.RegenManaMinIntervalMillis, value)

	case "MOB_MIN_WANDER_DELAY_MS":
		return setInt(&config.MobMinWanderDelayMs, value)
	case "MOB_MAX_WANDER_DELAY_MS":
		return setInt(&config.MobMaxWanderDelayMs, value)
	case "MOB_MAX_MOVES_PER_TICK":
		return setInt(&config.MobMaxMovesPerTick, value)

	case "XP_BASE_XP":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		config.XPBaseXP = f
	case "XP_EXPONENT":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		config.XPExponent = f
	case "XP_LINEAR_XP":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		config.XPLinearXP = f
	case "MAX_LEVEL":
		return setInt(&config.MaxLevel, value)
	case "FULL_HEAL_ON_LEVEL_UP":
		config.FullHealOnLevelUp = value == "true" || value == "1"

	case "ENGINE_ID":
		config.EngineID = value
	case "OWNED_ZONES":
		if strings.TrimSpace(value) == "" {
			config.OwnedZones = nil
		} else {
			config.OwnedZones = strings.Split(value, ",")
		}
	case "ZONE_OWNERS":
		// zone=engine pairs, comma-separated: "hubz=engine-1,cavez=engine-2".
		owners := make(map[string]string)
		for _, pair := range strings.Split(value, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			zone, engine, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("malformed ZONE_OWNERS entry %q", pair)
			}
			owners[strings.TrimSpace(zone)] = strings.TrimSpace(engine)
		}
		config.ZoneOwners = owners
	case "HANDOFF_TIMEOUT_MS":
		return setInt(&config.HandoffTimeoutMs, value)

	case "SHARDING_REPLICATED_ZONES":
		if strings.TrimSpace(value) == "" {
			config.ShardingReplicatedZones = nil
		} else {
			config.ShardingReplicatedZones = strings.Split(value, ",")
		}
	case "SHARDING_SELECTION_STRATEGY":
		config.ShardingSelectionStrategy = value
	case "SHARDING_LOAD_TTL_SECONDS":
		return setInt(&config.ShardingLoadTTLSeconds, value)
	case "SHARDING_HEALTH_FAILURE_THRESHOLD":
		return setInt(&config.ShardingHealthFailureThreshold, value)

	case "SCHEDULER_MAX_RUNS_PER_TICK":
		return setInt(&config.SchedulerMaxRunsPerTick, value)

	case "WORLD_FILE":
		config.WorldFile = value
	case "MOB_FILE":
		config.MobFile = value
	case "ITEM_FILE":
		config.ItemFile = value
	case "ABILITY_FILE":
		config.AbilityFile = value
	case "STATUS_FILE":
		config.StatusFile = value
	case "MFA_ISSUER":
		config.MFAIssuer = value

	default:
		log.Printf("warning: unknown configuration key: %s", key)
	}

	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// validateConfig rejects unknown enum values and contradictory settings.
func validateConfig(config *Config) error {
	switch config.Mode {
	case ModeStandalone, ModeEngine, ModeGateway:
	default:
		return fmt.Errorf("invalid MODE: %s", config.Mode)
	}

	if config.TickMillis < 1 {
		return fmt.Errorf("TICK_MILLIS must be positive")
	}

	switch config.PersistenceBackend {
	case "FILE", "SQL":
	default:
		return fmt.Errorf("invalid PERSISTENCE_BACKEND: must be FILE or SQL")
	}
	if config.PersistenceBackend == "SQL" && config.PersistenceDSN == "" {
		return fmt.Errorf("PERSISTENCE_DSN required when PERSISTENCE_BACKEND=SQL")
	}
	if config.PersistenceBackend == "FILE" && config.PersistenceFilePath == "" {
		return fmt.Errorf("PERSISTENCE_FILE_PATH cannot be empty")
	}

	if config.BusEnabled && strings.TrimSpace(config.BusSharedSecret) == "" {
		return fmt.Errorf("BUS_SHARED_SECRET required when BUS_ENABLED=true")
	}

	if config.MaxConcurrentLogins < 1 {
		return fmt.Errorf("MAX_CONCURRENT_LOGINS must be at least 1")
	}
	if config.AuthThreads < 1 {
		return fmt.Errorf("AUTH_THREADS must be at least 1")
	}
	if config.MinDamage < 0 || config.MaxDamage < config.MinDamage {
		return fmt.Errorf("MAX_DAMAGE must be >= MIN_DAMAGE")
	}

	seen := make(map[string]bool, len(config.ShardingReplicatedZones))
	for _, z := range config.ShardingReplicatedZones {
		if seen[z] {
			return fmt.Errorf("zone %q listed more than once in sharding.replicatedZones", z)
		}
		seen[z] = true
	}
	for zone := range config.ZoneOwners {
		if seen[zone] {
			return fmt.Errorf("zone %q is both statically assigned and replicated", zone)
		}
	}
	if config.Mode == ModeEngine && strings.TrimSpace(config.EngineID) == "" {
		return fmt.Errorf("ENGINE_ID cannot be blank in ENGINE mode")
	}

	return nil
}

// GetTelnetAddress returns the telnet listen address.
func (c *Config) GetTelnetAddress() string {
	return fmt.Sprintf(":%d", c.TelnetPort)
}

// GetWebAddress returns the WebSocket listen address.
func (c *Config) GetWebAddress() string {
	return fmt.Sprintf(":%d", c.WebPort)
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig() {
	log.Println("=== AmbonMUD Configuration ===")
	log.Printf("mode: %s  instance: %s", c.Mode, c.InstanceID)
	log.Printf("telnet: %d  web: %d  tick: %dms", c.TelnetPort, c.WebPort, c.TickMillis)
	log.Printf("persistence: %s", c.PersistenceBackend)
	log.Printf("bus enabled: %v  cache enabled: %v", c.BusEnabled, c.CacheEnabled)
	log.Println("==============================")
}
