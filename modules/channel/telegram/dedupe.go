package telegram

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const ledgerBusyTimeoutMs = 5000

// Ledger is the optional update-id store that drops replayed Telegram
// webhook deliveries. Telegram redelivers updates until acknowledged, so
// a restart between the 202 and the reply can replay an update.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (and creates if needed) the ledger at path. The
// database runs in WAL mode with a busy timeout and a single connection;
// the schema is applied idempotently.
func OpenLedger(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("telegram: create ledger directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telegram: open ledger %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telegram: ledger enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", ledgerBusyTimeoutMs)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telegram: ledger set busy_timeout: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS telegram_updates (
		update_id   INTEGER PRIMARY KEY,
		received_at TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("telegram: ledger migrate: %w", err)
	}

	return &Ledger{db: db}, nil
}

// SeenUpdate records updateID and reports whether it was already present.
func (l *Ledger) SeenUpdate(ctx context.Context, updateID int64) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO telegram_updates (update_id, received_at) VALUES (?, ?)",
		updateID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("telegram: ledger record update %d: %w", updateID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("telegram: ledger rows affected: %w", err)
	}
	return inserted == 0, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
