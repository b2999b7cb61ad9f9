package player

import "math"

// ProgressionCurve computes the XP threshold for each level from the
// config-tunable base/exponent/linear coefficients described in
// configuration, instead of a hardcoded table.
type ProgressionCurve struct {
	BaseXP   int64
	Exponent float64
	LinearXP int64
	MaxLevel int
}

// XPForLevel returns the cumulative XP required to reach level.
func (c ProgressionCurve) XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := float64(level - 1)
	return c.BaseXP + int64(math.Pow(n, c.Exponent)*float64(c.BaseXP)) + c.LinearXP*int64(level-1)
}

// ApplyXP adds xp to the player and levels them up as many times as
// the new total supports, returning the number of levels gained.
func (c ProgressionCurve) ApplyXP(p *Player, xp int64, fullHealOnLevelUp bool) int {
	p.XP += xp
	gained := 0
	for p.Level < c.MaxLevel && p.XP >= c.XPForLevel(p.Level+1) {
		p.Level++
		gained++
		p.MaxHP += 5
		p.MaxMana += 3
		if fullHealOnLevelUp {
			p.HP = p.MaxHP
			p.Mana = p.MaxMana
		}
	}
	return gained
}
