package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"trader_go/internal/portfolio"

	_ "github.com/glebarez/go-sqlite"
)

// Journal persists the trade log and engine checkpoints in SQLite.
// It is an injected port: the orchestration core runs fine without one,
// callers that want durability wire it in at bootstrap.
type Journal struct {
	db *sql.DB
}

// NewJournal opens (or creates) the journal database with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			asset TEXT NOT NULL,
			side TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	return &Journal{db: db}, nil
}

// AppendTrade stores one trade-log entry. Entries are immutable; a
// duplicate id is an error.
func (j *Journal) AppendTrade(ctx context.Context, entry portfolio.TradeLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT INTO trades (id, asset, side, ts, payload) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.Asset, string(entry.Side), entry.TsUnixM, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// LoadTrades returns all recorded trades in chronological order.
func (j *Journal) LoadTrades(ctx context.Context) ([]portfolio.TradeLogEntry, error) {
	// rowid breaks ties between trades landing in the same microsecond.
	rows, err := j.db.QueryContext(ctx, "SELECT payload FROM trades ORDER BY ts ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []portfolio.TradeLogEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		var entry portfolio.TradeLogEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// SaveCheckpoint upserts a key-value checkpoint.
func (j *Journal) SaveCheckpoint(ctx context.Context, key, value string, tsUnixM int64) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO checkpoints (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, tsUnixM,
	)
	return err
}

// LoadCheckpoint returns the stored value, empty when absent.
func (j *Journal) LoadCheckpoint(ctx context.Context, key string) (string, error) {
	var value string
	err := j.db.QueryRowContext(ctx, "SELECT value FROM checkpoints WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
