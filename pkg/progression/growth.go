package progression

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidGrowthTable means the table failed load-time validation.
	// It is fatal: a cycle must not start with a broken table.
	ErrInvalidGrowthTable = errors.New("invalid growth table")

	// ErrUnknownLevel means a threshold was requested for a level outside
	// the table's domain. This is a configuration defect, not a retryable
	// condition.
	ErrUnknownLevel = errors.New("unknown level")
)

// GrowthTableEntry is one (level, cumulative XP required) pair.
type GrowthTableEntry struct {
	Level      int     `json:"level"`
	RequiredXP float64 `json:"required_xp"`
}

// GrowthTable is the static level curve: strictly increasing cumulative
// thresholds, level 1 at 0 XP. Loaded once, immutable afterwards.
type GrowthTable struct {
	entries []GrowthTableEntry
}

// NewGrowthTable validates and builds a table. Entries may arrive in any
// order (the store scans them unordered); levels and thresholds must both
// be strictly increasing once sorted, starting at level 1 / 0 XP.
func NewGrowthTable(entries []GrowthTableEntry) (*GrowthTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidGrowthTable)
	}

	sorted := make([]GrowthTableEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	if sorted[0].Level != 1 || sorted[0].RequiredXP != 0 {
		return nil, fmt.Errorf("%w: table must start at level 1 with 0 XP, got level %d at %.1f",
			ErrInvalidGrowthTable, sorted[0].Level, sorted[0].RequiredXP)
	}

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Level <= sorted[i-1].Level {
			return nil, fmt.Errorf("%w: duplicate or non-increasing level %d", ErrInvalidGrowthTable, sorted[i].Level)
		}
		if sorted[i].RequiredXP <= sorted[i-1].RequiredXP {
			return nil, fmt.Errorf("%w: threshold for level %d (%.1f) not above level %d (%.1f)",
				ErrInvalidGrowthTable, sorted[i].Level, sorted[i].RequiredXP, sorted[i-1].Level, sorted[i-1].RequiredXP)
		}
	}

	return &GrowthTable{entries: sorted}, nil
}

// MaxLevel returns the highest level the table defines.
func (g *GrowthTable) MaxLevel() int {
	return g.entries[len(g.entries)-1].Level
}

// LevelFor returns the highest level whose threshold is <= totalXP,
// clamped to the table's max level. Below the level-1 threshold it
// returns 1.
func (g *GrowthTable) LevelFor(totalXP float64) int {
	// First entry whose threshold exceeds totalXP; the answer is the one
	// before it.
	i := sort.Search(len(g.entries), func(i int) bool {
		return g.entries[i].RequiredXP > totalXP
	})
	if i == 0 {
		return 1
	}
	return g.entries[i-1].Level
}

// ThresholdFor returns the cumulative XP required for a level.
func (g *GrowthTable) ThresholdFor(level int) (float64, error) {
	i := sort.Search(len(g.entries), func(i int) bool {
		return g.entries[i].Level >= level
	})
	if i == len(g.entries) || g.entries[i].Level != level {
		return 0, fmt.Errorf("%w: level %d (table max %d)", ErrUnknownLevel, level, g.MaxLevel())
	}
	return g.entries[i].RequiredXP, nil
}

// XPToNext returns the XP remaining until the next level, or 0 at the cap.
func (g *GrowthTable) XPToNext(level int, totalXP float64) float64 {
	if level >= g.MaxLevel() {
		return 0
	}
	next, err := g.ThresholdFor(level + 1)
	if err != nil {
		return 0
	}
	remaining := next - totalXP
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Entries returns a copy of the sorted table, for seeding stores.
func (g *GrowthTable) Entries() []GrowthTableEntry {
	out := make([]GrowthTableEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// DefaultGrowthCurve is the shipped 50-level curve. It follows the classic
// JRPG shape the character uses: cheap early levels, steepening toward the
// cap. init-xp-table seeds the durable store from it.
func DefaultGrowthCurve() []GrowthTableEntry {
	thresholds := []float64{
		0, 10, 25, 47, 110,
		220, 450, 800, 1300, 2000,
		2900, 4000, 5500, 7500, 10000,
		13000, 17000, 22000, 28000, 35000,
		43000, 52000, 62000, 73000, 85000,
		98000, 112000, 127000, 143000, 160000,
		178000, 197000, 217000, 238000, 260000,
		283000, 307000, 332000, 358000, 385000,
		413000, 442000, 472000, 503000, 535000,
		568000, 602000, 637000, 673000, 710000,
	}
	entries := make([]GrowthTableEntry, len(thresholds))
	for i, xp := range thresholds {
		entries[i] = GrowthTableEntry{Level: i + 1, RequiredXP: xp}
	}
	return entries
}
