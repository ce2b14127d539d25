package switches

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/database"
)

// SQLiteRepository persists switch state in the switch_states table.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository wraps a migrated database. Close closes db.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// LoadAll reads every row. Rows that fail to decode are reported under ErrCorruptState.
func (r *SQLiteRepository) LoadAll(ctx context.Context) (map[string]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT switch_id, state, attributes, last_triggered_at FROM switch_states")
	if err != nil {
		return nil, fmt.Errorf("querying switch states: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	var corrupt []error
	for rows.Next() {
		var (
			id, state, attrs string
			triggered        *string
		)
		if err := rows.Scan(&id, &state, &attrs, &triggered); err != nil {
			return nil, fmt.Errorf("scanning switch state: %w", err)
		}

		rec, err := decodeRow(id, state, attrs, triggered)
		if err != nil {
			corrupt = append(corrupt, err)
			continue
		}
		records[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch states: %w", err)
	}

	return records, corruptError(corrupt)
}

func decodeRow(id, state, attrs string, triggered *string) (Record, error) {
	rec := Record{ID: id, State: State(state)}
	if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
		return Record{}, fmt.Errorf("switch %s: decoding attributes: %w", id, err)
	}
	if rec.Attributes == nil {
		rec.Attributes = Attributes{}
	}
	if triggered != nil {
		t, err := time.Parse(time.RFC3339Nano, *triggered)
		if err != nil {
			return Record{}, fmt.Errorf("switch %s: parsing last_triggered_at: %w", id, err)
		}
		rec.LastTriggeredAt = &t
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Save upserts one row in a single statement.
func (r *SQLiteRepository) Save(ctx context.Context, rec Record) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	var triggered *string
	if rec.LastTriggeredAt != nil {
		s := rec.LastTriggeredAt.UTC().Format(time.RFC3339Nano)
		triggered = &s
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO switch_states (switch_id, state, attributes, last_triggered_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(switch_id) DO UPDATE SET
			state = excluded.state,
			attributes = excluded.attributes,
			last_triggered_at = excluded.last_triggered_at,
			updated_at = excluded.updated_at`,
		rec.ID, string(rec.State), string(attrs), triggered,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving switch %s: %w", rec.ID, err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
