package progression

import "log"

// rewardKey is a (role, kind) pair in the reward table.
type rewardKey struct {
	Role Role
	Kind Kind
}

// RewardTable maps (role, kind) pairs to fixed XP amounts. It is static
// configuration: built once, never mutated at runtime.
type RewardTable struct {
	rates map[rewardKey]float64
}

// DefaultRewardTable returns the production rates.
func DefaultRewardTable() *RewardTable {
	return NewRewardTable(map[Role]map[Kind]float64{
		RoleTarget: {
			KindOriginalPost: 5.0,
			KindQuoteRepost:  5.0,
			KindRepost:       0.5,
		},
		RoleGroup: {
			KindOriginalPost: 2.0,
			KindQuoteRepost:  2.0,
			KindRepost:       0.5,
		},
		RoleSelf: {
			KindRepost: 0.5,
			KindLike:   0.1,
		},
	})
}

func NewRewardTable(rates map[Role]map[Kind]float64) *RewardTable {
	t := &RewardTable{rates: make(map[rewardKey]float64)}
	for role, kinds := range rates {
		for kind, amount := range kinds {
			t.rates[rewardKey{Role: role, Kind: kind}] = amount
		}
	}
	return t
}

// RateFor returns the XP amount for a (role, kind) pair. Unmapped pairs
// earn zero and are reported through the second return value so callers
// can log them; they are never fatal.
func (t *RewardTable) RateFor(role Role, kind Kind) (float64, bool) {
	amount, ok := t.rates[rewardKey{Role: role, Kind: kind}]
	return amount, ok
}

// Apply sums the rewards for a batch of events on top of the current
// total. The sum is order-independent, but the returned breakdown
// preserves input order for reporting.
func (t *RewardTable) Apply(currentTotal float64, events []ActivityEvent) (float64, []RewardedEvent) {
	rewarded := make([]RewardedEvent, 0, len(events))
	total := currentTotal
	for _, ev := range events {
		amount, ok := t.RateFor(ev.Role, ev.Kind)
		if !ok {
			log.Printf("[Rewards] Unmapped activity (role=%s, kind=%s), rewarding 0 XP: %s", ev.Role, ev.Kind, ev.EventID)
		}
		total += amount
		rewarded = append(rewarded, RewardedEvent{Event: ev, Amount: amount})
	}
	return total, rewarded
}
