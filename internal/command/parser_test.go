package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDirectionAliasExpandsToMove(t *testing.T) {
	cmd := Parse("n")
	require.Equal(t, KindMove, cmd.Kind)
	require.Equal(t, "north", cmd.DirectionName)
}

func TestParseMoveVerbWithDirectionArgument(t *testing.T) {
	cmd := Parse("go nw")
	require.Equal(t, KindMove, cmd.Kind)
	require.Equal(t, "northwest", cmd.DirectionName)
}

func TestParseSayJoinsRemainderAsText(t *testing.T) {
	cmd := Parse("say hello there friend")
	require.Equal(t, KindSay, cmd.Kind)
	require.Equal(t, "hello there friend", cmd.Text)
}

func TestParseTellSplitsTargetAndText(t *testing.T) {
	cmd := Parse("tell bob are you there")
	require.Equal(t, KindTell, cmd.Kind)
	require.Equal(t, "bob", cmd.Target)
	require.Equal(t, "are you there", cmd.Text)
}

func TestParseUnknownVerb(t *testing.T) {
	cmd := Parse("frobnicate")
	require.Equal(t, KindUnknown, cmd.Kind)
}

func TestParseEmptyLine(t *testing.T) {
	cmd := Parse("   ")
	require.Equal(t, KindUnknown, cmd.Kind)
}

func TestParseRoomCreateSubcommand(t *testing.T) {
	cmd := Parse("room create zone1:hall The Hall")
	require.Equal(t, KindStaffRoomEdit, cmd.Kind)
	require.Equal(t, "create", cmd.StaffOp)
	require.Equal(t, "zone1:hall", cmd.RoomID)
	require.Equal(t, "The Hall", cmd.Title)
}

func TestParseGroupInvite(t *testing.T) {
	cmd := Parse("group invite alice")
	require.Equal(t, KindGroupInvite, cmd.Kind)
	require.Equal(t, "alice", cmd.Target)
}

func TestParseGossipAndOOCAlias(t *testing.T) {
	cmd := Parse("gossip anyone around")
	require.Equal(t, KindGossip, cmd.Kind)
	require.Equal(t, "anyone around", cmd.Text)

	cmd = Parse("ooc brb")
	require.Equal(t, KindGossip, cmd.Kind)
	require.Equal(t, "brb", cmd.Text)
}

func TestParseGroupTell(t *testing.T) {
	cmd := Parse("gtell pull the lever")
	require.Equal(t, KindGroupTell, cmd.Kind)
	require.Equal(t, "pull the lever", cmd.Text)
}

func TestParseAnsiToggle(t *testing.T) {
	cmd := Parse("ansi OFF")
	require.Equal(t, KindAnsi, cmd.Kind)
	require.Equal(t, "off", cmd.Target)
}

func TestParseCharacterInfoVerbs(t *testing.T) {
	require.Equal(t, KindBalance, Parse("balance").Kind)
	require.Equal(t, KindSpells, Parse("spells").Kind)
	require.Equal(t, KindEffects, Parse("effects").Kind)
	require.Equal(t, KindQuestLog, Parse("quests").Kind)
	require.Equal(t, KindAchievements, Parse("achievements").Kind)
	require.Equal(t, KindClearScreen, Parse("clear").Kind)
}
