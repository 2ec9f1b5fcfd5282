package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"imomaru/pkg/progression"
	"imomaru/pkg/surreal"
)

// SurrealStore persists the bot state, reward ledger and growth table in
// SurrealDB. CommitCycle runs as a single SurrealQL transaction, so the
// state write and the applied-flag flips are atomic; the mark-first
// ordering in the engine is the safety net for stores without that.
type SurrealStore struct {
	client *surreal.Client
}

func NewSurrealStore(client *surreal.Client) *SurrealStore {
	store := &SurrealStore{client: client}
	if err := store.Init(); err != nil {
		// Schema may already exist or the DB may come up later; a cycle
		// against a truly broken DB fails loudly on its own.
		log.Printf("Warning: failed to initialize SurrealDB schema: %v", err)
	}
	return store
}

func (s *SurrealStore) Init() error {
	query := `
		DEFINE TABLE IF NOT EXISTS bot_state SCHEMALESS;

		DEFINE TABLE IF NOT EXISTS reward_ledger SCHEMALESS;
		DEFINE FIELD IF NOT EXISTS event_id ON reward_ledger TYPE string;
		DEFINE FIELD IF NOT EXISTS applied ON reward_ledger TYPE bool;
		DEFINE INDEX IF NOT EXISTS event_idx ON reward_ledger FIELDS event_id UNIQUE;

		DEFINE TABLE IF NOT EXISTS xp_table SCHEMALESS;
		DEFINE FIELD IF NOT EXISTS level ON xp_table TYPE int;
		DEFINE INDEX IF NOT EXISTS level_idx ON xp_table FIELDS level UNIQUE;

		DEFINE TABLE IF NOT EXISTS emotion_images SCHEMALESS;
	`
	_, err := s.client.Query(context.Background(), query, map[string]interface{}{})
	return err
}

func (s *SurrealStore) LoadState(ctx context.Context) (BotState, error) {
	query := `SELECT * FROM type::thing("bot_state", "current");`
	result, err := s.client.Query(ctx, query, map[string]interface{}{})
	if err != nil {
		return BotState{}, fmt.Errorf("load state: %w", err)
	}

	rows := rowsOf(result)
	if len(rows) == 0 {
		log.Println("[State] No existing state found, starting fresh")
		return NewBotState(), nil
	}

	var st BotState
	if err := decodeRow(rows[0], &st); err != nil {
		return BotState{}, fmt.Errorf("decode state: %w", err)
	}
	if st.Level < 1 {
		st.Level = 1
	}
	return st, nil
}

func (s *SurrealStore) SaveState(ctx context.Context, st BotState) error {
	content, err := toMap(st)
	if err != nil {
		return err
	}
	query := `UPSERT type::thing("bot_state", "current") CONTENT $state;`
	_, err = s.client.Query(ctx, query, map[string]interface{}{"state": content})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *SurrealStore) CommitCycle(ctx context.Context, st BotState, appliedIDs []string) error {
	content, err := toMap(st)
	if err != nil {
		return err
	}
	query := `
		BEGIN TRANSACTION;
		UPSERT type::thing("bot_state", "current") CONTENT $state;
		UPDATE reward_ledger SET applied = true WHERE event_id IN $ids;
		COMMIT TRANSACTION;
	`
	if appliedIDs == nil {
		appliedIDs = []string{}
	}
	_, err = s.client.Query(ctx, query, map[string]interface{}{
		"state": content,
		"ids":   appliedIDs,
	})
	if err != nil {
		return fmt.Errorf("commit cycle: %w", err)
	}
	return nil
}

func (s *SurrealStore) FilterUnrewarded(ctx context.Context, events []progression.ActivityEvent) ([]progression.ActivityEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.EventID
	}

	query := `SELECT event_id FROM reward_ledger WHERE event_id IN $ids;`
	result, err := s.client.Query(ctx, query, map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("filter rewarded: %w", err)
	}

	seen := make(map[string]bool)
	for _, row := range rowsOf(result) {
		if rowMap, ok := row.(map[string]interface{}); ok {
			if id, ok := rowMap["event_id"].(string); ok {
				seen[id] = true
			}
		}
	}

	out := make([]progression.ActivityEvent, 0, len(events))
	for _, ev := range events {
		if !seen[ev.EventID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *SurrealStore) MarkPending(ctx context.Context, records []progression.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	// INSERT IGNORE keeps re-marking idempotent: an existing record (of
	// any applied status) is left untouched.
	rows := make([]interface{}, len(records))
	for i, rec := range records {
		rows[i] = map[string]interface{}{
			"id":          rec.EventID,
			"event_id":    rec.EventID,
			"role":        string(rec.Role),
			"kind":        string(rec.Kind),
			"amount":      rec.Amount,
			"rewarded_at": rec.RewardedAt.Format("2006-01-02T15:04:05Z07:00"),
			"applied":     false,
		}
	}

	query := `INSERT IGNORE INTO reward_ledger $records;`
	if _, err := s.client.Query(ctx, query, map[string]interface{}{"records": rows}); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}

func (s *SurrealStore) Unapplied(ctx context.Context) ([]progression.LedgerRecord, error) {
	query := `SELECT * FROM reward_ledger WHERE applied = false;`
	result, err := s.client.Query(ctx, query, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("load unapplied: %w", err)
	}

	var out []progression.LedgerRecord
	for _, row := range rowsOf(result) {
		var rec progression.LedgerRecord
		if err := decodeRow(row, &rec); err != nil {
			continue
		}
		if rec.EventID != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SurrealStore) LoadGrowthTable(ctx context.Context) ([]progression.GrowthTableEntry, error) {
	query := `SELECT level, required_xp FROM xp_table;`
	result, err := s.client.Query(ctx, query, map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("load growth table: %w", err)
	}

	var entries []progression.GrowthTableEntry
	for _, row := range rowsOf(result) {
		var entry progression.GrowthTableEntry
		if err := decodeRow(row, &entry); err != nil {
			continue
		}
		if entry.Level > 0 {
			entries = append(entries, entry)
		}
	}

	log.Printf("[State] Growth table loaded: %d levels", len(entries))
	return entries, nil
}

func (s *SurrealStore) SeedGrowthTable(ctx context.Context, entries []progression.GrowthTableEntry) error {
	rows := make([]interface{}, len(entries))
	for i, e := range entries {
		rows[i] = map[string]interface{}{
			"id":          e.Level,
			"level":       e.Level,
			"required_xp": e.RequiredXP,
		}
	}

	query := `
		BEGIN TRANSACTION;
		DELETE xp_table;
		INSERT INTO xp_table $entries;
		COMMIT TRANSACTION;
	`
	if _, err := s.client.Query(ctx, query, map[string]interface{}{"entries": rows}); err != nil {
		return fmt.Errorf("seed growth table: %w", err)
	}
	return nil
}

func (s *SurrealStore) EmotionImage(ctx context.Context, emotionKey string) (string, error) {
	query := `SELECT filename FROM type::thing("emotion_images", $key);`
	result, err := s.client.Query(ctx, query, map[string]interface{}{"key": emotionKey})
	if err != nil {
		return "", fmt.Errorf("load emotion image: %w", err)
	}

	rows := rowsOf(result)
	if len(rows) == 0 {
		return "", nil
	}
	if rowMap, ok := rows[0].(map[string]interface{}); ok {
		if filename, ok := rowMap["filename"].(string); ok {
			return filename, nil
		}
	}
	return "", nil
}

func (s *SurrealStore) SeedEmotionImages(ctx context.Context, images map[string]string) error {
	for key, filename := range images {
		query := `UPSERT type::thing("emotion_images", $key) CONTENT { filename: $filename };`
		if _, err := s.client.Query(ctx, query, map[string]interface{}{
			"key":      key,
			"filename": filename,
		}); err != nil {
			return fmt.Errorf("seed emotion image %s: %w", key, err)
		}
	}
	return nil
}

// rowsOf flattens the driver's loosely typed query result into rows.
func rowsOf(result interface{}) []interface{} {
	rows, ok := result.([]interface{})
	if !ok {
		return nil
	}
	// A result may be the rows themselves or a query-result wrapper with
	// a "result" field.
	if len(rows) == 1 {
		if wrapper, ok := rows[0].(map[string]interface{}); ok {
			if inner, ok := wrapper["result"].([]interface{}); ok {
				return inner
			}
		}
	}
	return rows
}

// decodeRow maps a loosely typed row onto a struct via a JSON roundtrip.
func decodeRow(row interface{}, dest interface{}) error {
	rowMap, ok := row.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected row type %T", row)
	}
	delete(rowMap, "id")
	data, err := json.Marshal(rowMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
