package command

import "strings"

// Parse tokenizes a raw input line on whitespace, then classifies the
// verb into a typed Command. Unknown verbs produce KindUnknown rather than an error —
// the dispatcher is responsible for telling the player.
func Parse(line string) Command {
	raw := line
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{Kind: KindUnknown, Raw: raw}
	}

	verb := strings.ToLower(fields[0])
	rest := fields[1:]

	if dir, ok := expandDirection(verb); ok {
		return Command{Kind: KindMove, Raw: raw, DirectionName: dir}
	}

	switch verb {
	case "look", "l":
		return Command{Kind: KindLook, Raw: raw, Target: strings.Join(rest, " ")}
	case "move", "go":
		if len(rest) == 0 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		if dir, ok := expandDirection(strings.ToLower(rest[0])); ok {
			return Command{Kind: KindMove, Raw: raw, DirectionName: dir}
		}
		return Command{Kind: KindUnknown, Raw: raw}
	case "say", "'":
		return Command{Kind: KindSay, Raw: raw, Text: strings.Join(rest, " ")}
	case "tell", "whisper":
		if len(rest) == 0 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindTell, Raw: raw, Target: rest[0], Text: strings.Join(rest[1:], " ")}
	case "shout", "yell":
		return Command{Kind: KindShout, Raw: raw, Text: strings.Join(rest, " ")}
	case "emote", "me":
		return Command{Kind: KindEmote, Raw: raw, Text: strings.Join(rest, " ")}
	case "who":
		return Command{Kind: KindWho, Raw: raw}
	case "quit":
		return Command{Kind: KindQuit, Raw: raw}
	case "inventory", "inv", "i":
		return Command{Kind: KindInventory, Raw: raw}
	case "get", "take":
		return Command{Kind: KindGet, Raw: raw, Target: strings.Join(rest, " ")}
	case "drop":
		return Command{Kind: KindDrop, Raw: raw, Target: strings.Join(rest, " ")}
	case "wear", "wield":
		return Command{Kind: KindWear, Raw: raw, Target: strings.Join(rest, " ")}
	case "remove":
		return Command{Kind: KindRemove, Raw: raw, Target: strings.Join(rest, " ")}
	case "give":
		if len(rest) < 2 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindGive, Raw: raw, Target: rest[len(rest)-1], Text: strings.Join(rest[:len(rest)-1], " ")}
	case "score", "sc", "stats":
		return Command{Kind: KindScore, Raw: raw}
	case "kill", "attack", "k":
		return Command{Kind: KindKill, Raw: raw, Target: strings.Join(rest, " ")}
	case "flee":
		return Command{Kind: KindFlee, Raw: raw}
	case "cast":
		if len(rest) == 0 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindCast, Raw: raw, Target: strings.Join(rest[1:], " "), Text: rest[0]}
	case "use":
		if len(rest) == 0 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindUseAbility, Raw: raw, Target: strings.Join(rest[1:], " "), Text: rest[0]}
	case "rest", "sleep":
		return Command{Kind: KindRest, Raw: raw}
	case "gossip", "ooc":
		return Command{Kind: KindGossip, Raw: raw, Text: strings.Join(rest, " ")}
	case "gtell", "gt":
		return Command{Kind: KindGroupTell, Raw: raw, Text: strings.Join(rest, " ")}
	case "balance", "gold":
		return Command{Kind: KindBalance, Raw: raw}
	case "achievements":
		return Command{Kind: KindAchievements, Raw: raw}
	case "effects", "affects":
		return Command{Kind: KindEffects, Raw: raw}
	case "spells", "abilities":
		return Command{Kind: KindSpells, Raw: raw}
	case "quest", "quests", "questlog":
		return Command{Kind: KindQuestLog, Raw: raw}
	case "talk":
		return Command{Kind: KindTalk, Raw: raw, Target: strings.Join(rest, " ")}
	case "choice", "choose":
		return Command{Kind: KindChoice, Raw: raw, Target: strings.Join(rest, " ")}
	case "clear", "cls":
		return Command{Kind: KindClearScreen, Raw: raw}
	case "ansi":
		return Command{Kind: KindAnsi, Raw: raw, Target: strings.ToLower(strings.Join(rest, " "))}
	case "colors", "colours":
		return Command{Kind: KindColors, Raw: raw}
	case "phase":
		return Command{Kind: KindPhase, Raw: raw, Target: strings.Join(rest, " ")}
	case "buy":
		return Command{Kind: KindBuy, Raw: raw, Target: strings.Join(rest, " ")}
	case "sell":
		return Command{Kind: KindSell, Raw: raw, Target: strings.Join(rest, " ")}
	case "list":
		return Command{Kind: KindList, Raw: raw}
	case "help":
		return Command{Kind: KindHelp, Raw: raw, Target: strings.Join(rest, " ")}
	case "gteam", "group":
		return parseGroup(raw, rest)
	case "goto", "teleport", "tp":
		if len(rest) == 0 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindStaffTeleport, Raw: raw, RoomID: rest[0]}
	case "rooms":
		return Command{Kind: KindStaffListRooms, Raw: raw}
	case "zones":
		return Command{Kind: KindStaffListZones, Raw: raw}
	case "room":
		return parseStaffRoom(raw, rest)
	case "exit":
		return parseStaffExit(raw, rest)
	case "zone":
		return parseStaffZone(raw, rest)
	default:
		return Command{Kind: KindUnknown, Raw: raw}
	}
}

func parseGroup(raw string, rest []string) Command {
	if len(rest) == 0 {
		return Command{Kind: KindUnknown, Raw: raw}
	}
	switch strings.ToLower(rest[0]) {
	case "invite":
		if len(rest) < 2 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindGroupInvite, Raw: raw, Target: rest[1]}
	case "join":
		if len(rest) < 2 {
			return Command{Kind: KindUnknown, Raw: raw}
		}
		return Command{Kind: KindGroupJoin, Raw: raw, Target: rest[1]}
	case "leave":
		return Command{Kind: KindGroupLeave, Raw: raw}
	case "disband":
		return Command{Kind: KindGroupDisband, Raw: raw}
	default:
		return Command{Kind: KindUnknown, Raw: raw}
	}
}

// parseStaffRoom covers the room sub-command family
// (create/edit/info/delete), gated by the HasKey check the dispatcher
// applies before acting on it.
func parseStaffRoom(raw string, rest []string) Command {
	if len(rest) == 0 {
		return Command{Kind: KindStaffListRooms, Raw: raw}
	}
	op := strings.ToLower(rest[0])
	args := rest[1:]
	c := Command{Kind: KindStaffRoomEdit, Raw: raw, StaffOp: op, Args: args}
	switch op {
	case "create":
		if len(args) > 0 {
			c.RoomID = args[0]
		}
		if len(args) > 1 {
			c.Title = strings.Join(args[1:], " ")
		}
	case "edit", "info", "delete":
		if len(args) > 0 {
			c.RoomID = args[0]
		}
		if len(args) > 1 {
			c.Description = strings.Join(args[1:], " ")
		}
	default:
		c.Kind = KindUnknown
	}
	return c
}

func parseStaffExit(raw string, rest []string) Command {
	if len(rest) == 0 {
		return Command{Kind: KindUnknown, Raw: raw}
	}
	op := strings.ToLower(rest[0])
	args := rest[1:]
	c := Command{Kind: KindStaffExitEdit, Raw: raw, StaffOp: op, Args: args}
	switch op {
	case "create":
		if len(args) > 0 {
			c.DirectionName = args[0]
		}
		if len(args) > 1 {
			c.RoomID = args[1]
		}
	case "delete", "list":
		if len(args) > 0 {
			c.DirectionName = args[0]
		}
	default:
		c.Kind = KindUnknown
	}
	return c
}

func parseStaffZone(raw string, rest []string) Command {
	if len(rest) == 0 {
		return Command{Kind: KindUnknown, Raw: raw}
	}
	op := strings.ToLower(rest[0])
	args := rest[1:]
	c := Command{Kind: KindStaffZoneEdit, Raw: raw, StaffOp: op, Args: args}
	switch op {
	case "create":
		if len(args) > 0 {
			c.ZoneID = args[0]
		}
		if len(args) > 1 {
			c.Title = strings.Join(args[1:], " ")
		}
	default:
		c.Kind = KindUnknown
	}
	return c
}
