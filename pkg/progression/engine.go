package progression

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Ledger is the durable record of already-rewarded events. All methods
// must be idempotent; marking an existing id again is a no-op.
type Ledger interface {
	// FilterUnrewarded returns the subset of events whose EventID has no
	// ledger record yet, preserving input order.
	FilterUnrewarded(ctx context.Context, events []ActivityEvent) ([]ActivityEvent, error)
	// MarkPending writes records with Applied=false. Existing ids are
	// left untouched.
	MarkPending(ctx context.Context, records []LedgerRecord) error
	// Unapplied returns records whose reward was marked but never
	// committed to the character state (crash between mark and commit).
	Unapplied(ctx context.Context) ([]LedgerRecord, error)
}

// Committer persists character state transitions. CommitReward must write
// the new state AND flip the given ledger records to applied as one
// effectively-atomic operation: either both are observable or neither.
type Committer interface {
	CommitReward(ctx context.Context, state CharacterState, appliedIDs []string) error
	CommitLevel(ctx context.Context, state CharacterState) error
}

// Engine orchestrates one progression cycle: intake, dedupe, reward,
// persist-reward, resolve level, persist-level, emit. It owns no I/O of
// its own; the ledger and committer are its only side-effect channels.
//
// Crash safety relies on a fixed write order: pending ledger marks first
// (independently idempotent, each carrying its XP amount), then a single
// commit that applies the aggregated delta and flips the marks. A crash
// after the marks but before the commit leaves marked-but-unapplied
// records, which the next cycle picks up as a reconciliation delta and
// applies exactly once.
type Engine struct {
	rewards   *RewardTable
	resolver  *LevelResolver
	ledger    Ledger
	committer Committer
	now       func() time.Time
}

func NewEngine(rewards *RewardTable, resolver *LevelResolver, ledger Ledger, committer Committer) *Engine {
	return &Engine{
		rewards:   rewards,
		resolver:  resolver,
		ledger:    ledger,
		committer: committer,
		now:       time.Now,
	}
}

// SetClock overrides the engine's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// dedupe drops repeated event ids within one batch, keeping the first
// occurrence. The ledger only screens ids from earlier cycles.
func dedupe(events []ActivityEvent) []ActivityEvent {
	seen := make(map[string]bool, len(events))
	out := events[:0:0]
	for _, ev := range events {
		if seen[ev.EventID] {
			continue
		}
		seen[ev.EventID] = true
		out = append(out, ev)
	}
	return out
}

// RunCycle runs one full intake-to-emit pass. On any storage error the
// cycle aborts with no result: the caller must not act on a partial
// cycle, and the next scheduled invocation retries safely.
func (e *Engine) RunCycle(ctx context.Context, state CharacterState, events []ActivityEvent) (CharacterState, *Result, error) {
	cycleID := uuid.NewString()

	// Reconciliation intake: rewards marked by a previous cycle that
	// never reached the character state.
	unapplied, err := e.ledger.Unapplied(ctx)
	if err != nil {
		return state, nil, fmt.Errorf("load unapplied ledger records: %w", err)
	}

	fresh, err := e.ledger.FilterUnrewarded(ctx, dedupe(events))
	if err != nil {
		return state, nil, fmt.Errorf("filter rewarded events: %w", err)
	}

	newTotal, rewarded := e.rewards.Apply(state.TotalXP, fresh)

	var reconciled float64
	recovered := make([]RewardedEvent, 0, len(unapplied))
	appliedIDs := make([]string, 0, len(unapplied)+len(fresh))
	for _, rec := range unapplied {
		newTotal += rec.Amount
		reconciled += rec.Amount
		appliedIDs = append(appliedIDs, rec.EventID)
		recovered = append(recovered, RewardedEvent{
			Event: ActivityEvent{
				EventID:    rec.EventID,
				Role:       rec.Role,
				Kind:       rec.Kind,
				ObservedAt: rec.RewardedAt,
			},
			Amount: rec.Amount,
		})
	}
	if reconciled > 0 {
		log.Printf("[Cycle %s] Reconciling %.1f XP from %d marked-but-unapplied events", cycleID, reconciled, len(unapplied))
	}

	newState := state
	if len(fresh) > 0 || len(unapplied) > 0 {
		records := make([]LedgerRecord, len(rewarded))
		for i, r := range rewarded {
			records[i] = LedgerRecord{
				EventID:    r.Event.EventID,
				Role:       r.Event.Role,
				Kind:       r.Event.Kind,
				Amount:     r.Amount,
				RewardedAt: e.now().UTC(),
			}
			appliedIDs = append(appliedIDs, r.Event.EventID)
		}

		if err := e.ledger.MarkPending(ctx, records); err != nil {
			return state, nil, fmt.Errorf("mark pending rewards: %w", err)
		}

		newState.TotalXP = newTotal
		newState.Version++
		if err := e.committer.CommitReward(ctx, newState, appliedIDs); err != nil {
			return state, nil, fmt.Errorf("commit reward: %w", err)
		}
	}

	newLevel, leveledUp, levelsGained := e.resolver.Resolve(state.Level, newState.TotalXP)
	if leveledUp {
		now := e.now().UTC()
		newState.Level = newLevel
		newState.LastLevelUpAt = &now
		newState.Version++
		if err := e.committer.CommitLevel(ctx, newState); err != nil {
			return state, nil, fmt.Errorf("commit level: %w", err)
		}
		log.Printf("[Cycle %s] Level up! %d -> %d (%.1f XP)", cycleID, state.Level, newLevel, newState.TotalXP)
	}

	return newState, &Result{
		CycleID:      cycleID,
		Rewarded:     rewarded,
		Recovered:    recovered,
		XPGained:     newState.TotalXP - state.TotalXP,
		Reconciled:   reconciled,
		OldLevel:     state.Level,
		NewLevel:     newLevel,
		LeveledUp:    leveledUp,
		LevelsGained: levelsGained,
	}, nil
}
