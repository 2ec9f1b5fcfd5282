package state

import (
	"context"
	"time"

	"imomaru/pkg/progression"
)

// BotState is the single persisted record for the bot: the character's
// progression plus the counters and watermarks the reporter and profile
// updater need. It is read once at the start of a cycle and written back
// through the store; the progression slice only ever moves through the
// engine's commit path.
type BotState struct {
	progression.CharacterState

	// Lifetime activity counters.
	TargetPostCount int `json:"target_post_count"`
	GroupPostCount  int `json:"group_post_count"`
	RepostCount     int `json:"repost_count"`
	LikeCount       int `json:"like_count"`

	// Daily counters, reset after the nightly report.
	DailyTargetCount int     `json:"daily_target_count"`
	DailyGroupCount  int     `json:"daily_group_count"`
	DailyRepostCount int     `json:"daily_repost_count"`
	DailyLikeCount   int     `json:"daily_like_count"`
	DailyXP          float64 `json:"daily_xp"`

	// Watermarks.
	LatestTweetID          string `json:"latest_tweet_id,omitempty"`
	LastDailyReportDate    string `json:"last_daily_report_date,omitempty"`    // YYYY-MM-DD, JST
	LastMorningContentDate string `json:"last_morning_content_date,omitempty"` // YYYY-MM-DD, JST
	LastProfileUpdateMonth string `json:"last_profile_update_month,omitempty"` // YYYY-MM, JST

	// Engagement totals on the bot's own posts, for delta detection.
	TotalReceivedLikes   int `json:"total_received_likes"`
	TotalReceivedReposts int `json:"total_received_reposts"`

	// One emotion image attachment per day.
	DailyImagePosted bool `json:"daily_image_posted"`

	LastUpdated time.Time `json:"last_updated"`
}

// NewBotState returns the state of a bot that has never run.
func NewBotState() BotState {
	return BotState{CharacterState: progression.NewCharacterState()}
}

// Tally bumps the lifetime and daily counters for one cycle's rewarded
// events.
func (s *BotState) Tally(rewarded []progression.RewardedEvent) {
	for _, r := range rewarded {
		s.DailyXP += r.Amount
		switch {
		case r.Event.Kind == progression.KindLike:
			s.LikeCount++
			s.DailyLikeCount++
		case r.Event.Kind == progression.KindRepost:
			s.RepostCount++
			s.DailyRepostCount++
		case r.Event.Role == progression.RoleTarget:
			s.TargetPostCount++
			s.DailyTargetCount++
		case r.Event.Role == progression.RoleGroup:
			s.GroupPostCount++
			s.DailyGroupCount++
		}
	}
}

// ResetDailyCounts clears the daily counters after the report is posted.
func (s *BotState) ResetDailyCounts() {
	s.DailyTargetCount = 0
	s.DailyGroupCount = 0
	s.DailyRepostCount = 0
	s.DailyLikeCount = 0
	s.DailyXP = 0
	s.DailyImagePosted = false
}

// XPBreakdown returns the lifetime XP split by activity, computed from
// the counters and the reward table's headline rates.
func (s *BotState) XPBreakdown(t *progression.RewardTable) map[string]float64 {
	targetRate, _ := t.RateFor(progression.RoleTarget, progression.KindOriginalPost)
	groupRate, _ := t.RateFor(progression.RoleGroup, progression.KindOriginalPost)
	repostRate, _ := t.RateFor(progression.RoleSelf, progression.KindRepost)
	likeRate, _ := t.RateFor(progression.RoleSelf, progression.KindLike)
	return map[string]float64{
		"target_post": float64(s.TargetPostCount) * targetRate,
		"group_post":  float64(s.GroupPostCount) * groupRate,
		"repost":      float64(s.RepostCount) * repostRate,
		"like":        float64(s.LikeCount) * likeRate,
	}
}

// Store is the durable home of the bot state, the reward ledger and the
// growth table. CommitCycle is the one operation with an atomicity
// contract: the state write and the applied-flag flips must land
// together or not at all.
type Store interface {
	progression.Ledger

	LoadState(ctx context.Context) (BotState, error)
	SaveState(ctx context.Context, st BotState) error
	CommitCycle(ctx context.Context, st BotState, appliedIDs []string) error

	LoadGrowthTable(ctx context.Context) ([]progression.GrowthTableEntry, error)
	SeedGrowthTable(ctx context.Context, entries []progression.GrowthTableEntry) error

	EmotionImage(ctx context.Context, emotionKey string) (string, error)
	SeedEmotionImages(ctx context.Context, images map[string]string) error
}

// Committer adapts a Store to the engine's commit interface. It carries
// the full BotState so the engine's character-only writes land in the
// same row without clobbering the counters.
type Committer struct {
	store Store
	state *BotState
}

func NewCommitter(store Store, st *BotState) *Committer {
	return &Committer{store: store, state: st}
}

func (c *Committer) CommitReward(ctx context.Context, st progression.CharacterState, appliedIDs []string) error {
	c.state.CharacterState = st
	return c.store.CommitCycle(ctx, *c.state, appliedIDs)
}

func (c *Committer) CommitLevel(ctx context.Context, st progression.CharacterState) error {
	c.state.CharacterState = st
	return c.store.CommitCycle(ctx, *c.state, nil)
}
