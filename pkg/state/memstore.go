package state

import (
	"context"
	"errors"
	"sync"

	"imomaru/pkg/progression"
)

// ErrCommitFailed is returned by MemStore when a commit failpoint fires.
var ErrCommitFailed = errors.New("commit failed")

// MemStore is an in-memory Store for tests and dry runs. FailCommits
// makes the next n CommitCycle calls fail after the pending marks have
// been written, simulating a crash between mark and commit.
type MemStore struct {
	mu          sync.Mutex
	state       BotState
	hasState    bool
	ledger      map[string]progression.LedgerRecord
	growth      []progression.GrowthTableEntry
	emotions    map[string]string
	failCommits int
}

func NewMemStore() *MemStore {
	return &MemStore{
		ledger:   make(map[string]progression.LedgerRecord),
		emotions: make(map[string]string),
	}
}

// FailCommits arms the commit failpoint for the next n calls.
func (m *MemStore) FailCommits(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommits = n
}

func (m *MemStore) LoadState(ctx context.Context) (BotState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasState {
		return NewBotState(), nil
	}
	return m.state, nil
}

func (m *MemStore) SaveState(ctx context.Context, st BotState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	m.hasState = true
	return nil
}

func (m *MemStore) CommitCycle(ctx context.Context, st BotState, appliedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommits > 0 {
		m.failCommits--
		return ErrCommitFailed
	}
	m.state = st
	m.hasState = true
	for _, id := range appliedIDs {
		if rec, ok := m.ledger[id]; ok {
			rec.Applied = true
			m.ledger[id] = rec
		}
	}
	return nil
}

func (m *MemStore) FilterUnrewarded(ctx context.Context, events []progression.ActivityEvent) ([]progression.ActivityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]progression.ActivityEvent, 0, len(events))
	for _, ev := range events {
		if _, ok := m.ledger[ev.EventID]; !ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemStore) MarkPending(ctx context.Context, records []progression.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, ok := m.ledger[rec.EventID]; ok {
			continue // marking twice is a no-op
		}
		rec.Applied = false
		m.ledger[rec.EventID] = rec
	}
	return nil
}

func (m *MemStore) Unapplied(ctx context.Context) ([]progression.LedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []progression.LedgerRecord
	for _, rec := range m.ledger {
		if !rec.Applied {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemStore) LoadGrowthTable(ctx context.Context) ([]progression.GrowthTableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.growth) == 0 {
		return progression.DefaultGrowthCurve(), nil
	}
	out := make([]progression.GrowthTableEntry, len(m.growth))
	copy(out, m.growth)
	return out, nil
}

func (m *MemStore) SeedGrowthTable(ctx context.Context, entries []progression.GrowthTableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.growth = make([]progression.GrowthTableEntry, len(entries))
	copy(m.growth, entries)
	return nil
}

func (m *MemStore) EmotionImage(ctx context.Context, emotionKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emotions[emotionKey], nil
}

func (m *MemStore) SeedEmotionImages(ctx context.Context, images map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range images {
		m.emotions[k] = v
	}
	return nil
}
