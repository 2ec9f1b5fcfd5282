package progression

import (
	"fmt"
	"time"
)

// Role identifies whose account an activity belongs to.
type Role string

const (
	RoleTarget Role = "target" // the oshi account the bot follows
	RoleGroup  Role = "group"  // the group account
	RoleSelf   Role = "self"   // engagement on the bot's own posts
)

// Kind identifies the type of observed activity.
type Kind string

const (
	KindOriginalPost Kind = "original_post"
	KindQuoteRepost  Kind = "quote_repost"
	KindRepost       Kind = "repost"
	KindLike         Kind = "like"
)

// ActivityEvent is one observed social interaction, already classified at
// the adapter boundary. EventID is a stable natural key: re-fetching the
// same underlying interaction must produce the same EventID.
type ActivityEvent struct {
	EventID    string
	Role       Role
	Kind       Kind
	ObservedAt time.Time
}

// EventID builds the canonical natural key for an interaction.
func EventID(postID string, kind Kind, role Role) string {
	return fmt.Sprintf("%s-%s-%s", postID, kind, role)
}

// LedgerRecord is the durable dedup record for a rewarded event. Applied
// stays false between the pending mark and the cycle commit; records that
// survive a crash in that window are picked up by reconciliation.
type LedgerRecord struct {
	EventID    string    `json:"event_id"`
	Role       Role      `json:"role"`
	Kind       Kind      `json:"kind"`
	Amount     float64   `json:"amount"`
	RewardedAt time.Time `json:"rewarded_at"`
	Applied    bool      `json:"applied"`
}

// CharacterState is the progression slice of the bot's persisted state.
// TotalXP and Level are monotonically non-decreasing.
type CharacterState struct {
	TotalXP       float64    `json:"total_xp"`
	Level         int        `json:"level"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	Version       int64      `json:"version"`
}

// NewCharacterState returns the state of a freshly created character.
func NewCharacterState() CharacterState {
	return CharacterState{TotalXP: 0, Level: 1}
}

// RewardedEvent pairs an event with the XP it earned this cycle.
type RewardedEvent struct {
	Event  ActivityEvent
	Amount float64
}

// Result is what one progression cycle emits for downstream consumers
// (quote posting, profile update, reporting). The engine itself has no
// side effects beyond the ledger and character state.
type Result struct {
	CycleID      string
	Rewarded     []RewardedEvent
	Recovered    []RewardedEvent // reconciled marked-but-unapplied records
	XPGained     float64
	Reconciled   float64 // XP recovered from marked-but-unapplied records
	OldLevel     int
	NewLevel     int
	LeveledUp    bool
	LevelsGained int
}
