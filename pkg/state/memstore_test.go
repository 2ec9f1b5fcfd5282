package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imomaru/pkg/progression"
)

func TestMemStore_LoadStateFreshBot(t *testing.T) {
	m := NewMemStore()

	st, err := m.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.TotalXP)
	assert.Equal(t, 1, st.Level)
}

func TestMemStore_SaveAndLoadRoundTrip(t *testing.T) {
	m := NewMemStore()

	st := NewBotState()
	st.TotalXP = 12.5
	st.Level = 2
	st.LatestTweetID = "12345"
	require.NoError(t, m.SaveState(context.Background(), st))

	loaded, err := m.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st, loaded)
}

func TestMemStore_MarkPendingIsIdempotent(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	rec := progression.LedgerRecord{EventID: "100-original_post-target", Amount: 5.0}
	require.NoError(t, m.MarkPending(ctx, []progression.LedgerRecord{rec}))

	// A second mark with a different amount must not overwrite the first.
	rec.Amount = 99.0
	require.NoError(t, m.MarkPending(ctx, []progression.LedgerRecord{rec}))

	unapplied, err := m.Unapplied(ctx)
	require.NoError(t, err)
	require.Len(t, unapplied, 1)
	assert.Equal(t, 5.0, unapplied[0].Amount)
}

func TestMemStore_FilterUnrewardedPreservesOrder(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.MarkPending(ctx, []progression.LedgerRecord{{EventID: "b"}}))

	events := []progression.ActivityEvent{{EventID: "a"}, {EventID: "b"}, {EventID: "c"}}
	fresh, err := m.FilterUnrewarded(ctx, events)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "a", fresh[0].EventID)
	assert.Equal(t, "c", fresh[1].EventID)
}

func TestMemStore_CommitCycleFlipsApplied(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.MarkPending(ctx, []progression.LedgerRecord{{EventID: "a", Amount: 5}}))

	st := NewBotState()
	st.TotalXP = 5
	require.NoError(t, m.CommitCycle(ctx, st, []string{"a"}))

	unapplied, err := m.Unapplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, unapplied)

	loaded, err := m.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, loaded.TotalXP)
}

func TestMemStore_FailCommitsLeavesMarksPending(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.MarkPending(ctx, []progression.LedgerRecord{{EventID: "a", Amount: 5}}))

	m.FailCommits(1)
	st := NewBotState()
	st.TotalXP = 5
	require.ErrorIs(t, m.CommitCycle(ctx, st, []string{"a"}), ErrCommitFailed)

	// State write and flag flip failed together.
	loaded, err := m.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loaded.TotalXP)

	unapplied, err := m.Unapplied(ctx)
	require.NoError(t, err)
	assert.Len(t, unapplied, 1)

	// The failpoint is exhausted; the retry lands.
	require.NoError(t, m.CommitCycle(ctx, st, []string{"a"}))
	unapplied, err = m.Unapplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, unapplied)
}

func TestMemStore_GrowthTableFallsBackToDefault(t *testing.T) {
	m := NewMemStore()

	entries, err := m.LoadGrowthTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, progression.DefaultGrowthCurve(), entries)

	custom := []progression.GrowthTableEntry{{Level: 1, RequiredXP: 0}, {Level: 2, RequiredXP: 50}}
	require.NoError(t, m.SeedGrowthTable(context.Background(), custom))

	entries, err = m.LoadGrowthTable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, custom, entries)
}

func TestCrashRecoveryThroughEngine(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	table, err := progression.NewGrowthTable(progression.DefaultGrowthCurve())
	require.NoError(t, err)

	st, err := m.LoadState(ctx)
	require.NoError(t, err)

	run := func(events []progression.ActivityEvent) (*progression.Result, error) {
		engine := progression.NewEngine(
			progression.DefaultRewardTable(),
			progression.NewLevelResolver(table),
			m,
			NewCommitter(m, &st),
		)
		newChar, result, err := engine.RunCycle(ctx, st.CharacterState, events)
		if err == nil {
			st.CharacterState = newChar
		}
		return result, err
	}

	event := progression.ActivityEvent{
		EventID: progression.EventID("100", progression.KindOriginalPost, progression.RoleTarget),
		Role:    progression.RoleTarget,
		Kind:    progression.KindOriginalPost,
	}

	// Crash between mark and commit.
	m.FailCommits(1)
	_, err = run([]progression.ActivityEvent{event})
	require.Error(t, err)
	assert.Equal(t, 0.0, st.TotalXP)

	// The next cycle reconciles the stranded mark exactly once, and the
	// re-fetched event is screened by the ledger.
	result, err := run([]progression.ActivityEvent{event})
	require.NoError(t, err)
	assert.Equal(t, 5.0, st.TotalXP)
	assert.Equal(t, 5.0, result.Reconciled)
	assert.Empty(t, result.Rewarded)

	// And a third cycle changes nothing.
	result, err = run([]progression.ActivityEvent{event})
	require.NoError(t, err)
	assert.Equal(t, 5.0, st.TotalXP)
	assert.Equal(t, 0.0, result.Reconciled)
}

func TestTally(t *testing.T) {
	st := NewBotState()
	at := time.Now()

	st.Tally([]progression.RewardedEvent{
		{Event: progression.ActivityEvent{Role: progression.RoleTarget, Kind: progression.KindOriginalPost, ObservedAt: at}, Amount: 5.0},
		{Event: progression.ActivityEvent{Role: progression.RoleGroup, Kind: progression.KindQuoteRepost, ObservedAt: at}, Amount: 2.0},
		{Event: progression.ActivityEvent{Role: progression.RoleTarget, Kind: progression.KindRepost, ObservedAt: at}, Amount: 0.5},
		{Event: progression.ActivityEvent{Role: progression.RoleSelf, Kind: progression.KindLike, ObservedAt: at}, Amount: 0.1},
	})

	assert.Equal(t, 1, st.TargetPostCount)
	assert.Equal(t, 1, st.GroupPostCount)
	assert.Equal(t, 1, st.RepostCount)
	assert.Equal(t, 1, st.LikeCount)
	assert.Equal(t, 1, st.DailyTargetCount)
	assert.InDelta(t, 7.6, st.DailyXP, 1e-9)
}

func TestResetDailyCounts(t *testing.T) {
	st := NewBotState()
	st.DailyTargetCount = 3
	st.DailyGroupCount = 2
	st.DailyRepostCount = 1
	st.DailyLikeCount = 8
	st.DailyXP = 19.8
	st.DailyImagePosted = true
	st.TargetPostCount = 3

	st.ResetDailyCounts()

	assert.Zero(t, st.DailyTargetCount)
	assert.Zero(t, st.DailyGroupCount)
	assert.Zero(t, st.DailyRepostCount)
	assert.Zero(t, st.DailyLikeCount)
	assert.Zero(t, st.DailyXP)
	assert.False(t, st.DailyImagePosted)
	// Lifetime counters survive the reset.
	assert.Equal(t, 3, st.TargetPostCount)
}

func TestXPBreakdown(t *testing.T) {
	st := NewBotState()
	st.TargetPostCount = 4
	st.GroupPostCount = 3
	st.RepostCount = 2
	st.LikeCount = 10

	breakdown := st.XPBreakdown(progression.DefaultRewardTable())
	assert.Equal(t, 20.0, breakdown["target_post"])
	assert.Equal(t, 6.0, breakdown["group_post"])
	assert.Equal(t, 1.0, breakdown["repost"])
	assert.InDelta(t, 1.0, breakdown["like"], 1e-9)
}
