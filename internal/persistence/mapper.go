package persistence

import (
	"sort"

	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/player"
)

// ToRecord snapshots a live Player (plus its item placements) into the
// persisted shape, for save() calls and cross-engine handoff
// serialization, which ships the full record across engines.
func ToRecord(p *player.Player, items *item.Registry) *PlayerRecord {
	rec := &PlayerRecord{
		Name:          p.Name,
		CurrentRoomID: string(p.Room),

		Strength:     p.Attrs.Strength,
		Dexterity:    p.Attrs.Dexterity,
		Constitution: p.Attrs.Constitution,
		Intelligence: p.Attrs.Intelligence,
		Wisdom:       p.Attrs.Wisdom,
		Charisma:     p.Attrs.Charisma,

		Race:  string(p.Race),
		Class: string(p.Class),

		Level: p.Level,
		XP:    p.XP,
		Gold:  p.Gold,

		HP: p.HP, MaxHP: p.MaxHP,
		Mana: p.Mana, MaxMana: p.MaxMana,

		AnsiEnabled: p.AnsiEnabled,
		StaffKeys:   p.KeyList(),

		KnownAbilities: sortedKeys(p.KnownAbilities),
		Achievements:   sortedKeys(p.Achievements),
		QuestProgress:  copyStringMap(p.QuestProgress),
	}

	if items != nil {
		equipped := make(map[string]string)
		for _, slot := range equipSlots {
			if inst, ok := items.InSlot(p.Name, slot); ok {
				equipped[slot] = string(inst.ID)
			}
		}
		var carried []string
		for _, inst := range items.InInventory(p.Name) {
			carried = append(carried, string(inst.ID))
		}
		rec.EquippedItemIDs = equipped
		rec.InventoryItemIDs = carried
	}

	return rec
}

// equipSlots lists the equip slots ToRecord walks to snapshot gear;
// the engine's item templates only ever populate these, mirroring
// item.Template.Slot values defined in world content.
var equipSlots = []string{"weapon", "armor", "shield", "head", "hands", "feet", "ring"}

// NewPlayerFromRecord rebuilds a live Player from a persisted record,
// the login-completion counterpart to ToRecord. The caller re-places
// rec.InventoryItemIDs/EquippedItemIDs into an item.Registry separately
// since that requires the instances to already be spawned.
func NewPlayerFromRecord(rec *PlayerRecord, sessionID ids.SessionID) (*player.Player, error) {
	room, err := ids.ParseEntityID(rec.CurrentRoomID)
	if err != nil {
		return nil, err
	}

	p := player.NewPlayer(rec.Name, rec.ID, room)
	p.SessionID = sessionID
	p.Attrs = player.Attributes{
		Strength: rec.Strength, Dexterity: rec.Dexterity, Constitution: rec.Constitution,
		Intelligence: rec.Intelligence, Wisdom: rec.Wisdom, Charisma: rec.Charisma,
	}
	p.Race = player.Race(rec.Race)
	p.Class = player.Class(rec.Class)
	p.Level = rec.Level
	p.XP = rec.XP
	p.Gold = rec.Gold
	p.HP, p.MaxHP = rec.HP, rec.MaxHP
	p.Mana, p.MaxMana = rec.Mana, rec.MaxMana
	p.AnsiEnabled = rec.AnsiEnabled

	for _, k := range rec.StaffKeys {
		p.GrantKey(k)
	}
	for _, id := range rec.KnownAbilities {
		p.KnownAbilities[id] = true
	}
	for _, id := range rec.Achievements {
		p.Achievements[id] = true
	}
	for k, v := range rec.QuestProgress {
		p.QuestProgress[k] = v
	}

	return p, nil
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
