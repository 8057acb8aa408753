package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chiptrack/engine"
)

const defaultLocalDBName = "chiptrack_local.db"

type sqliteStore struct {
	db *sql.DB
}

func NewSQLiteStoreFromEnv() (Store, string, error) {
	dbPath, err := storeLocalDatabasePathFromEnv()
	if err != nil {
		return nil, "", err
	}
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		return nil, "", err
	}
	return s, "sqlite", nil
}

func NewSQLiteStore(dbPath string) (Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap *engine.Snapshot, expectVersion int64) (int64, error) {
	if snap == nil || snap.ID == "" {
		return 0, fmt.Errorf("invalid snapshot")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	nowMs := time.Now().UTC().UnixMilli()
	next := expectVersion + 1
	if expectVersion == 0 {
		res, err := s.db.ExecContext(ctx, `
INSERT INTO table_snapshots (table_id, room_code, snapshot, version, updated_at_ms)
VALUES (?, ?, ?, 1, ?)
ON CONFLICT(table_id) DO NOTHING
`, snap.ID, snap.RoomCode, string(raw), nowMs)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE table_snapshots
SET snapshot = ?, version = ?, updated_at_ms = ?
WHERE table_id = ? AND version = ?
`, string(raw), next, nowMs, snap.ID, expectVersion)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}

func (s *sqliteStore) LoadSnapshot(ctx context.Context, tableID string) (*engine.Snapshot, int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var raw []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `
SELECT snapshot, version FROM table_snapshots WHERE table_id = ?
`, tableID).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, 0, err
	}
	return &snap, version, nil
}

func (s *sqliteStore) AppendAction(ctx context.Context, tableID string, rec engine.ActionRecord) error {
	if tableID == "" {
		return fmt.Errorf("empty table id")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO table_actions (table_id, action_type, player_id, amount, acted_at_ms)
VALUES (?, ?, ?, ?, ?)
`, tableID, string(rec.Type), rec.PlayerID, rec.Amount, rec.At.UTC().UnixMilli())
	return err
}

func (s *sqliteStore) ListActions(ctx context.Context, tableID string, limit int) ([]SavedAction, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `
SELECT seq, action_type, player_id, amount, acted_at_ms
FROM table_actions
WHERE table_id = ?
ORDER BY seq`
	args := []any{tableID}
	if limit > 0 {
		query = `
SELECT seq, action_type, player_id, amount, acted_at_ms
FROM (
    SELECT seq, action_type, player_id, amount, acted_at_ms
    FROM table_actions
    WHERE table_id = ?
    ORDER BY seq DESC
    LIMIT ?
)
ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedAction
	for rows.Next() {
		var rec SavedAction
		var actionType string
		var atMs int64
		if err := rows.Scan(&rec.Seq, &actionType, &rec.PlayerID, &rec.Amount, &atMs); err != nil {
			return nil, err
		}
		rec.TableID = tableID
		rec.Type = engine.ActionType(actionType)
		rec.At = time.UnixMilli(atMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteTable(ctx context.Context, tableID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM table_actions WHERE table_id = ?`, tableID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM table_snapshots WHERE table_id = ?`, tableID); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS table_snapshots (
    table_id TEXT PRIMARY KEY,
    room_code TEXT NOT NULL,
    snapshot TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    updated_at_ms INTEGER NOT NULL
)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS table_actions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    table_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    player_id TEXT NOT NULL DEFAULT '',
    amount INTEGER NOT NULL DEFAULT 0,
    acted_at_ms INTEGER NOT NULL
)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_table_actions_table ON table_actions (table_id, seq)`)
	return err
}

func storeLocalDatabasePathFromEnv() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("STORE_LOCAL_DATABASE_PATH")),
		strings.TrimSpace(os.Getenv("LOCAL_DATABASE_PATH")),
	}
	for _, candidate := range candidates {
		if candidate != "" {
			return filepath.Clean(candidate), nil
		}
	}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "chiptrack", defaultLocalDBName), nil
}
