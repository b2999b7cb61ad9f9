// Package persistence implements the write-coalescing
// player persistence stack: a dirty-tracking in-memory layer, an
// optional Redis cache layer, and a pluggable durable backend (one
// JSON file per record, or a relational schema), composed as three
// Repository decorators. Every layer is an injectable
// value; nothing in this package is a global.
package persistence

import "time"

// PlayerRecord is everything required to resurrect a player on login.
// Forward-compatible: unknown JSON fields are ignored
// on decode (encoding/json's default behavior), and missing fields
// default to their zero value rather than failing the load.
type PlayerRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	MFASecret    string    `json:"mfaSecret,omitempty"`
	MFAEnabled   bool      `json:"mfaEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`

	CurrentRoomID string `json:"currentRoomId"`

	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`

	Race  string `json:"race"`
	Class string `json:"class"`

	Level int   `json:"level"`
	XP    int64 `json:"xpTotal"`
	Gold  int64 `json:"gold"`

	HP      int `json:"hp"`
	MaxHP   int `json:"maxHp"`
	Mana    int `json:"mana"`
	MaxMana int `json:"maxMana"`

	AnsiEnabled bool     `json:"ansiEnabled"`
	StaffKeys   []string `json:"staffKeys,omitempty"`

	// InventoryItemIDs and EquippedItemIDs serialize internal/item's
	// placement for this player: carried instance ids, and slot name
	// -> equipped instance id.
	InventoryItemIDs []string          `json:"inventoryItemIds,omitempty"`
	EquippedItemIDs  map[string]string `json:"equippedItemIds,omitempty"`

	KnownAbilities []string          `json:"knownAbilities,omitempty"`
	Achievements   []string          `json:"achievements,omitempty"`
	QuestProgress  map[string]string `json:"questProgress,omitempty"`
}

// IsStaff reports whether the record carries any staff key, mirroring
// player.Player.IsStaff for the persisted shape.
func (r *PlayerRecord) IsStaff() bool { return len(r.StaffKeys) > 0 }
