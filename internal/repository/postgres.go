package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Dan9191/wallet-service/internal/models"
	"github.com/shopspring/decimal"
)

const schema = `
	CREATE SCHEMA IF NOT EXISTS wallet;
	CREATE TABLE IF NOT EXISTS wallet.sensor_states (
		entity_id  TEXT PRIMARY KEY,
		state      NUMERIC NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS wallet.config_entries (
		entry_id   TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		source     TEXT NOT NULL,
		data       JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

// PostgresStore provides database operations
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore initializes a new repository
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadState retrieves the persisted state of a sensor
func (r *PostgresStore) LoadState(ctx context.Context, entityID string) (decimal.Decimal, bool, error) {
	var state decimal.Decimal
	query := `
		SELECT state
		FROM wallet.sensor_states
		WHERE entity_id = $1`
	err := r.db.QueryRowContext(ctx, query, entityID).Scan(&state)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to load state: %w", err)
	}
	return state, true, nil
}

// SaveState upserts the state of a sensor
func (r *PostgresStore) SaveState(ctx context.Context, entityID string, state decimal.Decimal) error {
	query := `
		INSERT INTO wallet.sensor_states (entity_id, state, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (entity_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, query, entityID, state.String()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// DeleteState removes the state of a sensor
func (r *PostgresStore) DeleteState(ctx context.Context, entityID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wallet.sensor_states WHERE entity_id = $1`, entityID); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// SaveEntry upserts a config entry
func (r *PostgresStore) SaveEntry(ctx context.Context, entry *models.ConfigEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	query := `
		INSERT INTO wallet.config_entries (entry_id, title, source, data, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (entry_id) DO UPDATE
		SET title = EXCLUDED.title, source = EXCLUDED.source, data = EXCLUDED.data
		RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, entry.EntryID, entry.Title, entry.Source, data).
		Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// ListEntries returns every config entry in creation order
func (r *PostgresStore) ListEntries(ctx context.Context) ([]models.ConfigEntry, error) {
	query := `
		SELECT entry_id, title, source, data, created_at
		FROM wallet.config_entries
		ORDER BY created_at, entry_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ConfigEntry
	for rows.Next() {
		var entry models.ConfigEntry
		var data []byte
		if err := rows.Scan(&entry.EntryID, &entry.Title, &entry.Source, &data, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal(data, &entry.Data); err != nil {
			return nil, fmt.Errorf("failed to decode entry %s: %w", entry.EntryID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes a config entry
func (r *PostgresStore) DeleteEntry(ctx context.Context, entryID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wallet.config_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}
