package persistence

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func newRecordID() string { return uuid.NewString() }

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLBackend is the relational durable backend: driver selection by
// DSN scheme (sqlite3 for bare paths, postgres for URL schemes), with
// golang-migrate embedded migrations instead of an inline schema
// string constant.
type SQLBackend struct {
	db     *sql.DB
	driver string
}

// NewSQLBackend opens dsn, running embedded migrations to bring the
// schema up to date. dsn is expected in "sqlite3://path/to/file.db" or
// "postgres://..." form; driver is inferred from the scheme.
func NewSQLBackend(dsn string) (*SQLBackend, error) {
	driver, connStr := splitDSN(dsn)

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: ping %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("persistence: enable foreign keys: %w", err)
		}
	}

	if err := migrateSchema(db, driver); err != nil {
		return nil, err
	}

	return &SQLBackend{db: db, driver: driver}, nil
}

func splitDSN(dsn string) (driver, connStr string) {
	switch {
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	default:
		// Bare file paths default to sqlite3, the plain-path-no-scheme
		// convention local deployments use.
		return "sqlite3", dsn
	}
}

func migrateSchema(db *sql.DB, driver string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("persistence: load embedded migrations: %w", err)
	}

	var dbDriver interface {
		Close() error
	}
	var m *migrate.Migrate
	switch driver {
	case "sqlite3":
		d, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("persistence: sqlite3 migrate driver: %w", err)
		}
		dbDriver = d
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", d)
		if err != nil {
			return fmt.Errorf("persistence: build migrator: %w", err)
		}
	case "postgres":
		d, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("persistence: postgres migrate driver: %w", err)
		}
		dbDriver = d
		m, err = migrate.NewWithInstance("iofs", src, "postgres", d)
		if err != nil {
			return fmt.Errorf("persistence: build migrator: %w", err)
		}
	default:
		return fmt.Errorf("persistence: unsupported driver %q", driver)
	}
	defer dbDriver.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("persistence: run migrations: %w", err)
	}
	return nil
}

const playerColumns = `id, name, password_hash, mfa_secret, mfa_enabled, created_at, last_seen_at,
	current_room_id, strength, dexterity, constitution, intelligence, wisdom, charisma,
	race, class, level, xp_total, gold, hp, max_hp, mana, max_mana, ansi_enabled,
	staff_keys, inventory_item_ids, equipped_item_ids, known_abilities, achievements, quest_progress`

func scanPlayer(row interface {
	Scan(...any) error
}) (*PlayerRecord, error) {
	var rec PlayerRecord
	var staffKeys, inventoryIDs, equippedIDs, knownAbilities, achievements, questProgress string
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.PasswordHash, &rec.MFASecret, &rec.MFAEnabled, &rec.CreatedAt, &rec.LastSeenAt,
		&rec.CurrentRoomID, &rec.Strength, &rec.Dexterity, &rec.Constitution, &rec.Intelligence, &rec.Wisdom, &rec.Charisma,
		&rec.Race, &rec.Class, &rec.Level, &rec.XP, &rec.Gold, &rec.HP, &rec.MaxHP, &rec.Mana, &rec.MaxMana, &rec.AnsiEnabled,
		&staffKeys, &inventoryIDs, &equippedIDs, &knownAbilities, &achievements, &questProgress,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(staffKeys), &rec.StaffKeys)
	_ = json.Unmarshal([]byte(inventoryIDs), &rec.InventoryItemIDs)
	_ = json.Unmarshal([]byte(equippedIDs), &rec.EquippedItemIDs)
	_ = json.Unmarshal([]byte(knownAbilities), &rec.KnownAbilities)
	_ = json.Unmarshal([]byte(achievements), &rec.Achievements)
	_ = json.Unmarshal([]byte(questProgress), &rec.QuestProgress)
	return &rec, nil
}

// FindByName implements Repository with a case-insensitive match.
func (s *SQLBackend) FindByName(name string) (*PlayerRecord, bool, error) {
	row := s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE lower(name) = lower($1)`, name)
	rec, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: find by name: %w", err)
	}
	return rec, true, nil
}

// FindByID implements Repository.
func (s *SQLBackend) FindByID(id string) (*PlayerRecord, bool, error) {
	row := s.db.QueryRow(`SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	rec, err := scanPlayer(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persistence: find by id: %w", err)
	}
	return rec, true, nil
}

// Create implements Repository, allocating a fresh uuid id.
func (s *SQLBackend) Create(rec *PlayerRecord) (*PlayerRecord, error) {
	if _, ok, _ := s.FindByName(rec.Name); ok {
		return nil, ErrNameTaken
	}

	clone := *rec
	clone.ID = newRecordID()
	clone.CreatedAt = time.Now()
	clone.LastSeenAt = clone.CreatedAt

	if err := s.upsert(&clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Save implements Repository as an upsert-on-id.
func (s *SQLBackend) Save(rec *PlayerRecord) error {
	return s.upsert(rec)
}

func (s *SQLBackend) upsert(rec *PlayerRecord) error {
	staffKeys, _ := json.Marshal(nonNilStrings(rec.StaffKeys))
	inventoryIDs, _ := json.Marshal(nonNilStrings(rec.InventoryItemIDs))
	equippedIDs, _ := json.Marshal(nonNilStringMap(rec.EquippedItemIDs))
	knownAbilities, _ := json.Marshal(nonNilStrings(rec.KnownAbilities))
	achievements, _ := json.Marshal(nonNilStrings(rec.Achievements))
	questProgress, _ := json.Marshal(nonNilStringMap(rec.QuestProgress))

	query := s.upsertQuery()
	_, err := s.db.Exec(query,
		rec.ID, rec.Name, rec.PasswordHash, rec.MFASecret, rec.MFAEnabled, rec.CreatedAt, rec.LastSeenAt,
		rec.CurrentRoomID, rec.Strength, rec.Dexterity, rec.Constitution, rec.Intelligence, rec.Wisdom, rec.Charisma,
		rec.Race, rec.Class, rec.Level, rec.XP, rec.Gold, rec.HP, rec.MaxHP, rec.Mana, rec.MaxMana, rec.AnsiEnabled,
		string(staffKeys), string(inventoryIDs), string(equippedIDs), string(knownAbilities), string(achievements), string(questProgress),
	)
	if err != nil {
		return fmt.Errorf("persistence: upsert player %s: %w", rec.ID, err)
	}
	return nil
}

// upsertQuery returns the driver-appropriate upsert-on-id statement:
// sqlite3 and postgres use different ON CONFLICT placeholder styles
// (sqlite3's driver accepts $N positional params same as postgres, but
// only postgres needs the explicit conflict target written out with
// "EXCLUDED"; both support ON CONFLICT so one query serves both).
func (s *SQLBackend) upsertQuery() string {
	return `INSERT INTO players (` + playerColumns + `) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30
	) ON CONFLICT (id) DO UPDATE SET
		name=excluded.name, password_hash=excluded.password_hash, mfa_secret=excluded.mfa_secret,
		mfa_enabled=excluded.mfa_enabled, last_seen_at=excluded.last_seen_at,
		current_room_id=excluded.current_room_id, strength=excluded.strength, dexterity=excluded.dexterity,
		constitution=excluded.constitution, intelligence=excluded.intelligence, wisdom=excluded.wisdom,
		charisma=excluded.charisma, race=excluded.race, class=excluded.class, level=excluded.level,
		xp_total=excluded.xp_total, gold=excluded.gold, hp=excluded.hp, max_hp=excluded.max_hp,
		mana=excluded.mana, max_mana=excluded.max_mana, ansi_enabled=excluded.ansi_enabled,
		staff_keys=excluded.staff_keys, inventory_item_ids=excluded.inventory_item_ids,
		equipped_item_ids=excluded.equipped_item_ids, known_abilities=excluded.known_abilities,
		achievements=excluded.achievements, quest_progress=excluded.quest_progress`
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Close releases the underlying database connection.
func (s *SQLBackend) Close() error {
	return s.db.Close()
}

var _ Repository = (*SQLBackend)(nil)
