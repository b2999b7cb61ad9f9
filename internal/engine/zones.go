package engine

import (
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/mob"
)

// spawnZone instantiates a zone's mob and item spawns from the
// immutable world tables, run at startup for every owned zone and
// again on each reset.
func (e *Engine) spawnZone(zone string) {
	for _, spawn := range e.d.World.MobSpawns {
		if spawn.RoomID.Zone() != zone {
			continue
		}
		tmpl, ok := e.d.MobTemplates.Get(spawn.TemplateID)
		if !ok {
			e.log.Warn().Str("template", spawn.TemplateID).Str("zone", zone).Msg("mob spawn references unknown template")
			continue
		}
		id, err := ids.NewEntityID(zone, e.d.Mobs.NextLocalID(zone, spawn.TemplateID))
		if err != nil {
			continue
		}
		m := mob.NewFromTemplate(id, tmpl, spawn.RoomID, spawn.RespawnSecs)
		e.d.Mobs.Add(m)
		for _, itemTemplate := range m.Inventory {
			itemID, err := ids.NewEntityID(zone, e.d.Items.NextLocalID(zone, itemTemplate))
			if err != nil {
				continue
			}
			e.d.Items.Spawn(itemID, itemTemplate)
			e.d.Items.PlaceInMob(itemID, m.ID)
		}
	}
	for _, spawn := range e.d.World.ItemSpawns {
		if spawn.RoomID.Zone() != zone {
			continue
		}
		id, err := ids.NewEntityID(zone, e.d.Items.NextLocalID(zone, spawn.TemplateID))
		if err != nil {
			continue
		}
		e.d.Items.Spawn(id, spawn.TemplateID)
		e.d.Items.PlaceOnFloor(id, spawn.RoomID)
	}
}

// tickZoneResets restores any owned zone whose lifespan has expired.
func (e *Engine) tickZoneResets(nowMillis int64) {
	for zone, due := range e.zoneResetDue {
		if nowMillis < due {
			continue
		}
		e.resetZone(zone)
		lifespan := int64(e.d.World.Zones[zone].LifespanMinutes) * 60_000
		e.zoneResetDue[zone] = nowMillis + lifespan
	}
}

// resetZone returns a zone to its spawn-table state: mobs and
// world-placed items are removed and re-spawned; players present keep
// their inventories and are notified.
func (e *Engine) resetZone(zone string) {
	e.metrics.ZoneResets++

	for _, room := range e.d.World.RoomsInZone(zone) {
		for _, p := range e.d.Players.InRoom(room.ID) {
			e.emit(events.SendInfo(p.SessionID, "The world shudders as everything around you is restored."))
		}
	}

	for _, m := range e.d.Mobs.AllInZone(zone) {
		e.d.Combat.DisengageMob(m.ID)
		for _, inst := range e.d.Items.InMob(m.ID) {
			e.d.Items.Remove(inst.ID)
		}
		e.d.Mobs.Remove(m.ID)
	}
	for _, inst := range e.d.Items.AllInZone(zone) {
		switch inst.Placement.Kind {
		case item.ContainerRoomFloor, item.ContainerMobInventory, item.ContainerUnplaced:
			e.d.Items.Remove(inst.ID)
		}
	}

	e.spawnZone(zone)
	e.log.Info().Str("zone", zone).Msg("zone reset")
}
