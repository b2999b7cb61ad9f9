package mob

import (
	"testing"

	"ambonmud/internal/ids"

	"github.com/stretchr/testify/require"
)

func TestNewFromTemplateCopiesStatsAndInventory(t *testing.T) {
	room, _ := ids.NewEntityID("zone1", "hall")
	tmpl := Template{
		ID: "rat-1", Name: "a sewer rat", Behavior: BehaviorWander,
		MaxHP: 12, MinDamage: 1, MaxDamage: 3, Armor: 0, XPReward: 5,
		Inventory: []string{"tail"},
	}
	id, _ := ids.NewEntityID("zone1", "rat-1-inst")

	m := NewFromTemplate(id, tmpl, room, 60)

	require.Equal(t, id, m.ID)
	require.Equal(t, room, m.RoomID)
	require.Equal(t, 12, m.HP)
	require.Equal(t, 12, m.MaxHP)
	require.True(t, m.Alive())
	require.Equal(t, []string{"tail"}, m.Inventory)

	m.Inventory[0] = "mutated"
	require.Equal(t, "tail", tmpl.Inventory[0], "mob inventory must be copied, not aliased to the template")
}

func TestAliveFalseWhenHPDepletedOrMarkedDead(t *testing.T) {
	room, _ := ids.NewEntityID("zone1", "hall")
	id, _ := ids.NewEntityID("zone1", "rat-1-inst")
	m := NewFromTemplate(id, Template{ID: "rat-1", MaxHP: 10}, room, 0)

	require.True(t, m.Alive())

	m.HP = 0
	require.False(t, m.Alive())

	m.HP = 10
	m.Dead = true
	require.False(t, m.Alive())
}

func TestHPPercent(t *testing.T) {
	room, _ := ids.NewEntityID("zone1", "hall")
	id, _ := ids.NewEntityID("zone1", "rat-1-inst")
	m := NewFromTemplate(id, Template{ID: "rat-1", MaxHP: 20}, room, 0)
	m.HP = 5
	require.Equal(t, 25, m.HPPercent())
}

func TestMatchesKeywordIsCaseInsensitiveSubstring(t *testing.T) {
	room, _ := ids.NewEntityID("zone1", "hall")
	id, _ := ids.NewEntityID("zone1", "rat-1-inst")
	m := NewFromTemplate(id, Template{ID: "rat-1", Name: "a Sewer Rat", MaxHP: 10}, room, 0)

	require.True(t, m.MatchesKeyword("rat"))
	require.True(t, m.MatchesKeyword("SEWER"))
	require.False(t, m.MatchesKeyword("goblin"))
	require.False(t, m.MatchesKeyword(""))
}

func TestBehaviorAggressiveAndMobile(t *testing.T) {
	require.True(t, BehaviorAggroGuard.Aggressive())
	require.True(t, BehaviorPatrolAggro.Aggressive())
	require.True(t, BehaviorWanderAggro.Aggressive())
	require.False(t, BehaviorWander.Aggressive())
	require.False(t, BehaviorCoward.Aggressive())

	require.True(t, BehaviorWander.Mobile())
	require.True(t, BehaviorPatrol.Mobile())
	require.False(t, BehaviorStationary.Mobile())
	require.False(t, BehaviorCoward.Mobile())
}
