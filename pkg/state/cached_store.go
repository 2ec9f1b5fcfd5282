package state

import (
	"context"

	"imomaru/pkg/cache"
	"imomaru/pkg/progression"
)

// CachedStore puts a Redis fast path in front of a durable Store. The
// ledger membership cache saves a durable round-trip for events the bot
// keeps re-fetching inside the 24h polling window; everything
// correctness-critical (Unapplied, CommitCycle) goes straight through.
type CachedStore struct {
	Store
	cache *cache.Cache
}

func NewCachedStore(store Store, c *cache.Cache) *CachedStore {
	return &CachedStore{Store: store, cache: c}
}

func (c *CachedStore) LoadState(ctx context.Context) (BotState, error) {
	key := c.cache.Key("bot_state")

	var st BotState
	if err := c.cache.GetJSON(ctx, key, &st); err == nil && st.Level >= 1 {
		return st, nil
	}

	st, err := c.Store.LoadState(ctx)
	if err != nil {
		return BotState{}, err
	}
	_ = c.cache.SetJSON(ctx, key, st, cache.BotStateTTL)
	return st, nil
}

func (c *CachedStore) SaveState(ctx context.Context, st BotState) error {
	if err := c.Store.SaveState(ctx, st); err != nil {
		return err
	}
	_ = c.cache.SetJSON(ctx, c.cache.Key("bot_state"), st, cache.BotStateTTL)
	return nil
}

func (c *CachedStore) CommitCycle(ctx context.Context, st BotState, appliedIDs []string) error {
	if err := c.Store.CommitCycle(ctx, st, appliedIDs); err != nil {
		return err
	}
	_ = c.cache.SetJSON(ctx, c.cache.Key("bot_state"), st, cache.BotStateTTL)
	return nil
}

func (c *CachedStore) FilterUnrewarded(ctx context.Context, events []progression.ActivityEvent) ([]progression.ActivityEvent, error) {
	// First pass against the membership cache; only misses go to the
	// durable ledger.
	unknown := make([]progression.ActivityEvent, 0, len(events))
	for _, ev := range events {
		hit, err := c.cache.Exists(ctx, c.cache.Key("ledger", ev.EventID))
		if err != nil || !hit {
			unknown = append(unknown, ev)
		}
	}
	if len(unknown) == 0 {
		return nil, nil
	}

	fresh, err := c.Store.FilterUnrewarded(ctx, unknown)
	if err != nil {
		return nil, err
	}

	// Anything the durable ledger filtered out was a cache miss on a
	// rewarded event; backfill it.
	freshIDs := make(map[string]bool, len(fresh))
	for _, ev := range fresh {
		freshIDs[ev.EventID] = true
	}
	for _, ev := range unknown {
		if !freshIDs[ev.EventID] {
			_ = c.cache.Set(ctx, c.cache.Key("ledger", ev.EventID), "1", cache.LedgerTTL)
		}
	}

	return fresh, nil
}

func (c *CachedStore) MarkPending(ctx context.Context, records []progression.LedgerRecord) error {
	if err := c.Store.MarkPending(ctx, records); err != nil {
		return err
	}
	for _, rec := range records {
		_ = c.cache.Set(ctx, c.cache.Key("ledger", rec.EventID), "1", cache.LedgerTTL)
	}
	return nil
}
