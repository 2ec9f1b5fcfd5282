package progression

// LevelResolver turns cumulative XP back into a level and detects
// transitions. Because XP never decreases and the table is monotonic, the
// resolved level can never drop below the previous one; the max() below
// only guards against a shrunken table being loaded.
type LevelResolver struct {
	table *GrowthTable
}

func NewLevelResolver(table *GrowthTable) *LevelResolver {
	return &LevelResolver{table: table}
}

// Resolve returns the level for newTotalXP and whether that is a step up
// from prevLevel. Multiple levels can be gained in one cycle.
func (r *LevelResolver) Resolve(prevLevel int, newTotalXP float64) (newLevel int, leveledUp bool, levelsGained int) {
	newLevel = r.table.LevelFor(newTotalXP)
	if newLevel < prevLevel {
		newLevel = prevLevel
	}
	if newLevel > prevLevel {
		return newLevel, true, newLevel - prevLevel
	}
	return newLevel, false, 0
}
