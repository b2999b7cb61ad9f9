package command

import (
	"fmt"
	"sort"
	"strings"

	"ambonmud/internal/events"
	"ambonmud/internal/ids"
	"ambonmud/internal/item"
	"ambonmud/internal/player"
	"ambonmud/internal/world"
)

// World is the subset of world state mutation a dispatcher needs. It
// is satisfied by *world.World plus whatever staff-editing extension
// the engine wires in; kept as an interface so command stays
// independent of how the engine stores mutable room overlays.
type World interface {
	Room(id ids.EntityID) (world.Room, bool)
}

// Combat is the subset of the combat subsystem the dispatcher needs to
// start, break off, or flee a player-vs-mob engagement; the engine
// supplies the concrete implementation from internal/combat.
type Combat interface {
	Engage(attacker *player.Player, targetKeyword string) error
	Flee(attacker *player.Player) error
}

// Abilities resolves ability and spell usage, returning every outbound
// line the cast/use produced (the caster's own feedback plus any
// room-visible damage/death messaging).
type Abilities interface {
	Cast(caster *player.Player, spellName, target string) ([]events.Outbound, error)
	Use(user *player.Player, abilityName, target string) ([]events.Outbound, error)
}

// Items is the subset of the item registry the dispatcher needs to
// resolve get/drop/wear/remove/give against room floors, inventories,
// and equip slots.
type Items interface {
	FindOnFloorByKeyword(room ids.EntityID, keyword string) (*item.Instance, bool)
	FindInInventoryByKeyword(playerName, keyword string) (*item.Instance, bool)
	FindEquippedByKeyword(playerName, keyword string) (*item.Instance, bool)
	Template(id string) (item.Template, bool)
	PlaceOnFloor(id ids.EntityID, room ids.EntityID)
	PlaceInInventory(id ids.EntityID, playerName string)
	PlaceInSlot(id ids.EntityID, playerName, slot string)
	InInventory(playerName string) []*item.Instance
}

// Shop is the room-local vendor the economy commands trade with. The
// engine resolves whether the player's current room hosts one; a nil
// Shops field (or a room with no vendor) makes buy/sell/list report
// that there is nothing to trade with.
type Shop interface {
	Goods() []ShopGood
	Buy(buyer *player.Player, keyword string) (string, error)
	Sell(seller *player.Player, keyword string) (string, error)
}

// ShopGood is one line of a vendor's stock list.
type ShopGood struct {
	Name  string
	Price int64
}

// Shops resolves the vendor present in a room, if any.
type Shops interface {
	InRoom(room ids.EntityID) (Shop, bool)
}

// Effects reports a player's active status effects for display; the
// ability subsystem supplies the concrete implementation.
type Effects interface {
	ActiveEffectNames(playerName string) []string
}

// Dialogue resolves talk/choice interactions with room NPCs. World
// content defines the conversations; a deployment without any answers
// that there is no one to talk to.
type Dialogue interface {
	Talk(p *player.Player, npcKeyword string) (string, error)
	Choose(p *player.Player, option string) (string, error)
}

// Context bundles everything a dispatch call needs: the acting
// player, the shared registries, and the outbound sink the handler
// appends rendered lines to. One Context is built per dispatched
// command by the engine tick loop.
type Context struct {
	Player    *player.Player
	Players   *player.Registry
	World     World
	Combat    Combat
	Abilities Abilities
	Items     Items
	Shops     Shops
	Effects   Effects
	Dialogue  Dialogue

	Out []events.Outbound
}

func (c *Context) tell(text string) {
	c.Out = append(c.Out, events.SendText(c.Player.SessionID, text))
}

func (c *Context) err(text string) {
	c.Out = append(c.Out, events.SendError(c.Player.SessionID, text))
}

// Dispatch executes cmd against ctx, the single entry point the
// engine's command-pipeline stage calls once per drained inbound line.
func Dispatch(cmd Command, ctx *Context) {
	switch cmd.Kind {
	case KindLook:
		dispatchLook(cmd, ctx)
	case KindMove:
		dispatchMove(cmd, ctx)
	case KindSay:
		dispatchSay(cmd, ctx)
	case KindTell:
		dispatchTell(cmd, ctx)
	case KindShout:
		dispatchShout(cmd, ctx)
	case KindEmote:
		dispatchEmote(cmd, ctx)
	case KindWho:
		dispatchWho(cmd, ctx)
	case KindScore:
		dispatchScore(cmd, ctx)
	case KindInventory:
		dispatchInventory(cmd, ctx)
	case KindGet:
		dispatchGet(cmd, ctx)
	case KindDrop:
		dispatchDrop(cmd, ctx)
	case KindWear:
		dispatchWear(cmd, ctx)
	case KindRemove:
		dispatchRemoveEquip(cmd, ctx)
	case KindGive:
		dispatchGive(cmd, ctx)
	case KindKill:
		dispatchKill(cmd, ctx)
	case KindFlee:
		dispatchFlee(cmd, ctx)
	case KindCast:
		dispatchCast(cmd, ctx)
	case KindUseAbility:
		dispatchUseAbility(cmd, ctx)
	case KindRest:
		dispatchRest(cmd, ctx)
	case KindBuy, KindSell, KindList:
		dispatchShop(cmd, ctx)
	case KindGossip:
		dispatchGossip(cmd, ctx)
	case KindGroupTell:
		dispatchGroupTell(cmd, ctx)
	case KindBalance:
		ctx.tell(fmt.Sprintf("You are carrying %d gold.", ctx.Player.Gold))
	case KindAchievements:
		dispatchAchievements(cmd, ctx)
	case KindEffects:
		dispatchEffects(cmd, ctx)
	case KindSpells:
		dispatchSpells(cmd, ctx)
	case KindQuestLog:
		dispatchQuestLog(cmd, ctx)
	case KindTalk, KindChoice:
		dispatchDialogue(cmd, ctx)
	case KindClearScreen:
		ctx.Out = append(ctx.Out, events.ClearScreen(ctx.Player.SessionID))
	case KindAnsi:
		dispatchAnsi(cmd, ctx)
	case KindColors:
		ctx.tell("\x1b[31mred\x1b[0m \x1b[32mgreen\x1b[0m \x1b[33myellow\x1b[0m \x1b[34mblue\x1b[0m \x1b[35mmagenta\x1b[0m \x1b[36mcyan\x1b[0m")
	case KindPhase:
		if cmd.Target == "" {
			ctx.err("Usage: phase <name>")
			return
		}
		ctx.tell(fmt.Sprintf("Phase set to %s.", cmd.Target))
	case KindHelp:
		dispatchHelp(cmd, ctx)
	case KindGroupInvite, KindGroupJoin, KindGroupLeave, KindGroupDisband:
		dispatchGroup(cmd, ctx)
	case KindStaffTeleport, KindStaffRoomEdit, KindStaffExitEdit, KindStaffZoneEdit, KindStaffListRooms, KindStaffListZones:
		dispatchStaff(cmd, ctx)
	case KindQuit:
		ctx.Out = append(ctx.Out, events.Close(ctx.Player.SessionID, "quit"))
	default:
		ctx.err("Unknown command. Type 'help' for a list.")
	}
}

func dispatchLook(cmd Command, ctx *Context) {
	room, ok := ctx.World.Room(ctx.Player.Room)
	if !ok {
		ctx.err("You are nowhere. This is a bug.")
		return
	}
	if cmd.Target != "" {
		if exit, ok := room.FindExitByKeyword(cmd.Target); ok {
			ctx.tell(fmt.Sprintf("You see an exit %s toward %s.", exit.Direction, exit.Target))
			return
		}
	}
	ctx.tell(world.FormatRoomDescription(room))
}

func dispatchMove(cmd Command, ctx *Context) {
	room, ok := ctx.World.Room(ctx.Player.Room)
	if !ok {
		ctx.err("You are nowhere. This is a bug.")
		return
	}
	exit, ok := room.Exits[directionCode(cmd.DirectionName)]
	if !ok {
		ctx.err("You can't go that way.")
		return
	}
	if exit.Closed {
		ctx.err("The way is closed.")
		return
	}
	if exit.Locked {
		if exit.RequiredKey == "" || !ctx.Player.HasKey(exit.RequiredKey) {
			ctx.err("The way is locked.")
			return
		}
	}
	ctx.Player.Room = exit.Target
	dispatchLook(Command{Kind: KindLook}, ctx)
}

func dispatchSay(cmd Command, ctx *Context) {
	if cmd.Text == "" {
		ctx.err("Say what?")
		return
	}
	for _, p := range ctx.Players.InRoom(ctx.Player.Room) {
		ctx.Out = append(ctx.Out, events.SendText(p.SessionID, fmt.Sprintf("%s says, \"%s\"", ctx.Player.Name, cmd.Text)))
	}
}

func dispatchTell(cmd Command, ctx *Context) {
	target, ok := ctx.Players.ByName(cmd.Target)
	if !ok {
		ctx.err("No such player is connected.")
		return
	}
	ctx.Out = append(ctx.Out, events.SendText(target.SessionID, fmt.Sprintf("%s tells you, \"%s\"", ctx.Player.Name, cmd.Text)))
	ctx.tell(fmt.Sprintf("You tell %s, \"%s\"", target.Name, cmd.Text))
}

func dispatchShout(cmd Command, ctx *Context) {
	for _, name := range ctx.Players.Names() {
		if p, ok := ctx.Players.ByName(name); ok {
			ctx.Out = append(ctx.Out, events.SendText(p.SessionID, fmt.Sprintf("%s shouts, \"%s\"", ctx.Player.Name, cmd.Text)))
		}
	}
}

func dispatchEmote(cmd Command, ctx *Context) {
	for _, p := range ctx.Players.InRoom(ctx.Player.Room) {
		ctx.Out = append(ctx.Out, events.SendText(p.SessionID, fmt.Sprintf("%s %s", ctx.Player.Name, cmd.Text)))
	}
}

func dispatchWho(cmd Command, ctx *Context) {
	names := ctx.Players.Names()
	ctx.tell(fmt.Sprintf("Connected (%d): %s", len(names), strings.Join(names, ", ")))
}

func dispatchScore(cmd Command, ctx *Context) {
	p := ctx.Player
	ctx.tell(fmt.Sprintf("%s: level %d, HP %d/%d, mana %d/%d, XP %d", p.Name, p.Level, p.HP, p.MaxHP, p.Mana, p.MaxMana, p.XP))
}

func dispatchInventory(cmd Command, ctx *Context) {
	held := ctx.Items.InInventory(ctx.Player.Name)
	if len(held) == 0 {
		ctx.tell("You are carrying nothing.")
		return
	}
	names := make([]string, 0, len(held))
	for _, inst := range held {
		if t, ok := ctx.Items.Template(inst.TemplateID); ok {
			names = append(names, t.Name)
		}
	}
	ctx.tell("You are carrying: " + strings.Join(names, ", "))
}

func dispatchGet(cmd Command, ctx *Context) {
	if cmd.Target == "" {
		ctx.err("Get what?")
		return
	}
	inst, ok := ctx.Items.FindOnFloorByKeyword(ctx.Player.Room, cmd.Target)
	if !ok {
		ctx.err("You don't see that here.")
		return
	}
	ctx.Items.PlaceInInventory(inst.ID, ctx.Player.Name)
	if t, ok := ctx.Items.Template(inst.TemplateID); ok {
		ctx.tell(fmt.Sprintf("You pick up %s.", t.Name))
	} else {
		ctx.tell("You pick that up.")
	}
}

func dispatchDrop(cmd Command, ctx *Context) {
	if cmd.Target == "" {
		ctx.err("Drop what?")
		return
	}
	inst, ok := ctx.Items.FindInInventoryByKeyword(ctx.Player.Name, cmd.Target)
	if !ok {
		ctx.err("You aren't carrying that.")
		return
	}
	ctx.Items.PlaceOnFloor(inst.ID, ctx.Player.Room)
	if t, ok := ctx.Items.Template(inst.TemplateID); ok {
		ctx.tell(fmt.Sprintf("You drop %s.", t.Name))
	} else {
		ctx.tell("You drop it.")
	}
}

func dispatchWear(cmd Command, ctx *Context) {
	if cmd.Target == "" {
		ctx.err("Wear what?")
		return
	}
	inst, ok := ctx.Items.FindInInventoryByKeyword(ctx.Player.Name, cmd.Target)
	if !ok {
		ctx.err("You aren't carrying that.")
		return
	}
	t, ok := ctx.Items.Template(inst.TemplateID)
	if !ok || t.Slot == "" {
		ctx.err("You can't wear that.")
		return
	}
	ctx.Items.PlaceInSlot(inst.ID, ctx.Player.Name, t.Slot)
	ctx.tell(fmt.Sprintf("You wear %s.", t.Name))
}

func dispatchRemoveEquip(cmd Command, ctx *Context) {
	if cmd.Target == "" {
		ctx.err("Remove what?")
		return
	}
	inst, ok := ctx.Items.FindEquippedByKeyword(ctx.Player.Name, cmd.Target)
	if !ok {
		ctx.err("You aren't wearing that.")
		return
	}
	ctx.Items.PlaceInInventory(inst.ID, ctx.Player.Name)
	if t, ok := ctx.Items.Template(inst.TemplateID); ok {
		ctx.tell(fmt.Sprintf("You remove %s.", t.Name))
	} else {
		ctx.tell("You remove it.")
	}
}

func dispatchGive(cmd Command, ctx *Context) {
	if cmd.Target == "" || cmd.Text == "" {
		ctx.err("Give what to whom?")
		return
	}
	recipient, ok := ctx.Players.ByName(cmd.Target)
	if !ok {
		ctx.err("No such player is here.")
		return
	}
	inst, ok := ctx.Items.FindInInventoryByKeyword(ctx.Player.Name, cmd.Text)
	if !ok {
		ctx.err("You aren't carrying that.")
		return
	}
	ctx.Items.PlaceInInventory(inst.ID, recipient.Name)
	name := "it"
	if t, ok := ctx.Items.Template(inst.TemplateID); ok {
		name = t.Name
	}
	ctx.tell(fmt.Sprintf("You give %s to %s.", name, recipient.Name))
	ctx.Out = append(ctx.Out, events.SendText(recipient.SessionID, fmt.Sprintf("%s gives you %s.", ctx.Player.Name, name)))
}

func dispatchKill(cmd Command, ctx *Context) {
	if cmd.Target == "" {
		ctx.err("Kill whom?")
		return
	}
	if err := ctx.Combat.Engage(ctx.Player, cmd.Target); err != nil {
		ctx.err(err.Error())
	}
}

func dispatchFlee(cmd Command, ctx *Context) {
	if err := ctx.Combat.Flee(ctx.Player); err != nil {
		ctx.err(err.Error())
	}
}

func dispatchCast(cmd Command, ctx *Context) {
	out, err := ctx.Abilities.Cast(ctx.Player, cmd.Text, cmd.Target)
	if err != nil {
		ctx.err(err.Error())
		return
	}
	ctx.Out = append(ctx.Out, out...)
}

func dispatchUseAbility(cmd Command, ctx *Context) {
	out, err := ctx.Abilities.Use(ctx.Player, cmd.Text, cmd.Target)
	if err != nil {
		ctx.err(err.Error())
		return
	}
	ctx.Out = append(ctx.Out, out...)
}

func dispatchRest(cmd Command, ctx *Context) {
	if ctx.Player.InCombat {
		ctx.err("You can't rest while fighting.")
		return
	}
	ctx.tell("You rest, catching your breath.")
}

func dispatchGossip(cmd Command, ctx *Context) {
	if cmd.Text == "" {
		ctx.err("Gossip what?")
		return
	}
	for _, name := range ctx.Players.Names() {
		if p, ok := ctx.Players.ByName(name); ok {
			ctx.Out = append(ctx.Out, events.SendText(p.SessionID, fmt.Sprintf("%s gossips, \"%s\"", ctx.Player.Name, cmd.Text)))
		}
	}
}

func dispatchGroupTell(cmd Command, ctx *Context) {
	if ctx.Player.Group == nil {
		ctx.err("You aren't in a group.")
		return
	}
	if cmd.Text == "" {
		ctx.err("Tell your group what?")
		return
	}
	g := ctx.Player.Group
	for _, name := range append([]string{g.Leader}, g.Members...) {
		if p, ok := ctx.Players.ByName(name); ok {
			ctx.Out = append(ctx.Out, events.SendText(p.SessionID, fmt.Sprintf("[group] %s: %s", ctx.Player.Name, cmd.Text)))
		}
	}
}

func dispatchAchievements(cmd Command, ctx *Context) {
	if len(ctx.Player.Achievements) == 0 {
		ctx.tell("You haven't earned any achievements yet.")
		return
	}
	names := make([]string, 0, len(ctx.Player.Achievements))
	for id := range ctx.Player.Achievements {
		names = append(names, id)
	}
	sort.Strings(names)
	ctx.tell("Achievements: " + strings.Join(names, ", "))
}

func dispatchEffects(cmd Command, ctx *Context) {
	if ctx.Effects == nil {
		ctx.tell("You feel entirely ordinary.")
		return
	}
	active := ctx.Effects.ActiveEffectNames(ctx.Player.Name)
	if len(active) == 0 {
		ctx.tell("You feel entirely ordinary.")
		return
	}
	ctx.tell("Active effects: " + strings.Join(active, ", "))
}

func dispatchSpells(cmd Command, ctx *Context) {
	if len(ctx.Player.KnownAbilities) == 0 {
		ctx.tell("You haven't learned any abilities.")
		return
	}
	names := make([]string, 0, len(ctx.Player.KnownAbilities))
	for id := range ctx.Player.KnownAbilities {
		names = append(names, id)
	}
	sort.Strings(names)
	ctx.tell("You know: " + strings.Join(names, ", "))
}

func dispatchQuestLog(cmd Command, ctx *Context) {
	if len(ctx.Player.QuestProgress) == 0 {
		ctx.tell("Your quest log is empty.")
		return
	}
	keys := make([]string, 0, len(ctx.Player.QuestProgress))
	for id := range ctx.Player.QuestProgress {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, id := range keys {
		lines = append(lines, fmt.Sprintf("%s (%s)", id, ctx.Player.QuestProgress[id]))
	}
	ctx.tell("Quests: " + strings.Join(lines, ", "))
}

func dispatchDialogue(cmd Command, ctx *Context) {
	if ctx.Dialogue == nil {
		ctx.err("There is no one here to talk to.")
		return
	}
	var msg string
	var err error
	if cmd.Kind == KindTalk {
		msg, err = ctx.Dialogue.Talk(ctx.Player, cmd.Target)
	} else {
		msg, err = ctx.Dialogue.Choose(ctx.Player, cmd.Target)
	}
	if err != nil {
		ctx.err(err.Error())
		return
	}
	ctx.tell(msg)
}

func dispatchAnsi(cmd Command, ctx *Context) {
	switch cmd.Target {
	case "on":
		ctx.Player.AnsiEnabled = true
		ctx.Out = append(ctx.Out, events.SetAnsi(ctx.Player.SessionID, true))
		ctx.tell("ANSI color enabled.")
	case "off":
		ctx.Player.AnsiEnabled = false
		ctx.Out = append(ctx.Out, events.SetAnsi(ctx.Player.SessionID, false))
		ctx.tell("ANSI color disabled.")
	default:
		ctx.err("Usage: ansi on|off")
	}
}

func dispatchShop(cmd Command, ctx *Context) {
	var shop Shop
	if ctx.Shops != nil {
		shop, _ = ctx.Shops.InRoom(ctx.Player.Room)
	}
	if shop == nil {
		ctx.err("There is no one here to trade with.")
		return
	}
	switch cmd.Kind {
	case KindList:
		goods := shop.Goods()
		if len(goods) == 0 {
			ctx.tell("Nothing is for sale right now.")
			return
		}
		lines := make([]string, 0, len(goods))
		for _, g := range goods {
			lines = append(lines, fmt.Sprintf("%s (%d gold)", g.Name, g.Price))
		}
		ctx.tell("For sale: " + strings.Join(lines, ", "))
	case KindBuy:
		if cmd.Target == "" {
			ctx.err("Buy what?")
			return
		}
		msg, err := shop.Buy(ctx.Player, cmd.Target)
		if err != nil {
			ctx.err(err.Error())
			return
		}
		ctx.tell(msg)
	case KindSell:
		if cmd.Target == "" {
			ctx.err("Sell what?")
			return
		}
		msg, err := shop.Sell(ctx.Player, cmd.Target)
		if err != nil {
			ctx.err(err.Error())
			return
		}
		ctx.tell(msg)
	}
}

func dispatchHelp(cmd Command, ctx *Context) {
	ctx.tell("Commands: look, move/n/s/e/w, say, tell, shout, gossip, emote, who, score, balance, inventory, get, drop, wear, remove, give, kill, flee, cast, use, spells, effects, achievements, quests, rest, buy, sell, list, talk, group, gtell, ansi, clear, colors, quit.")
}

func dispatchGroup(cmd Command, ctx *Context) {
	p := ctx.Player
	switch cmd.Kind {
	case KindGroupInvite:
		if p.Group == nil {
			p.Group = &player.Group{Leader: p.Name}
		}
		if p.Group.Leader != p.Name {
			ctx.err("Only the group leader can invite.")
			return
		}
		p.Group.Members = append(p.Group.Members, cmd.Target)
		ctx.tell(fmt.Sprintf("You invite %s to your group.", cmd.Target))
	case KindGroupJoin:
		leader, ok := ctx.Players.ByName(cmd.Target)
		if !ok || leader.Group == nil {
			ctx.err("No such group.")
			return
		}
		p.Group = leader.Group
		ctx.tell(fmt.Sprintf("You join %s's group.", leader.Name))
	case KindGroupLeave:
		p.Group = nil
		ctx.tell("You leave your group.")
	case KindGroupDisband:
		if p.Group == nil || p.Group.Leader != p.Name {
			ctx.err("You aren't leading a group.")
			return
		}
		p.Group = nil
		ctx.tell("You disband the group.")
	}
}
