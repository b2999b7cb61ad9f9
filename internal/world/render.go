package world

import (
	"fmt"
	"strings"
)

// directionNames renders a Direction back to the full word a player
// typed, for room description text.
var directionNames = map[Direction]string{
	North: "north", South: "south", East: "east", West: "west",
	Up: "up", Down: "down",
	Northeast: "northeast", Northwest: "northwest",
	Southeast: "southeast", Southwest: "southwest",
}

// FormatRoomDescription renders a room the way the look
// command did: title, body text, then an "Obvious exits" line.
func FormatRoomDescription(r Room) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Title)
	b.WriteString(r.Description)
	b.WriteString("\n")

	exits := r.ObviousExits()
	if len(exits) == 0 {
		b.WriteString("Obvious exits: none.")
		return b.String()
	}
	names := make([]string, len(exits))
	for i, d := range exits {
		names[i] = directionNames[d]
	}
	fmt.Fprintf(&b, "Obvious exits: %s.", strings.Join(names, ", "))
	return b.String()
}
