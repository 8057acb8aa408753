package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "chiptrack_local.db"

// SQLiteManager is the Service backed by a local sqlite file.
type SQLiteManager struct {
	db         *sql.DB
	sessionTTL time.Duration
}

func NewSQLiteManagerFromEnv() (*SQLiteManager, error) {
	dbPath, err := authLocalDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteManager(dbPath, sessionTTLFromEnv())
}

func NewSQLiteManager(dbPath string, sessionTTL time.Duration) (*SQLiteManager, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
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
	if err := ensureSQLiteAuthSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteManager{db: db, sessionTTL: sessionTTL}, nil
}

func (m *SQLiteManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *SQLiteManager) Register(username, password string) (Player, string, error) {
	if err := validateUsername(username); err != nil {
		return Player{}, "", err
	}
	if err := validatePassword(password); err != nil {
		return Player{}, "", err
	}

	normalized := normalizeUsername(username)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Player{}, "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, "", err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT player_id FROM accounts WHERE username = ?`, normalized).Scan(&existing)
	if err == nil {
		return Player{}, "", ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Player{}, "", err
	}

	playerID := uuid.NewString()
	nowMs := time.Now().UTC().UnixMilli()
	_, err = tx.ExecContext(ctx, `
INSERT INTO accounts (player_id, username, password_hash, created_at_ms, last_login_at_ms)
VALUES (?, ?, ?, ?, ?)
`, playerID, normalized, passwordHash, nowMs, nowMs)
	if err != nil {
		return Player{}, "", err
	}

	token, err := m.issueSession(ctx, tx, playerID, nowMs)
	if err != nil {
		return Player{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Player{}, "", err
	}
	return Player{ID: playerID, Username: normalized}, token, nil
}

func (m *SQLiteManager) Login(username, password string) (Player, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return Player{}, "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Player{}, "", err
	}
	defer tx.Rollback()

	var playerID string
	var passwordHash []byte
	err = tx.QueryRowContext(ctx, `
SELECT player_id, password_hash FROM accounts WHERE username = ?
`, normalized).Scan(&playerID, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Player{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return Player{}, "", err
	}
	if bcrypt.CompareHashAndPassword(passwordHash, []byte(password)) != nil {
		return Player{}, "", ErrInvalidCredentials
	}

	nowMs := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
UPDATE accounts SET last_login_at_ms = ? WHERE player_id = ?
`, nowMs, playerID); err != nil {
		return Player{}, "", err
	}

	token, err := m.issueSession(ctx, tx, playerID, nowMs)
	if err != nil {
		return Player{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return Player{}, "", err
	}
	return Player{ID: playerID, Username: normalized}, token, nil
}

func (m *SQLiteManager) ResolveSession(token string) (Player, bool) {
	if token == "" {
		return Player{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var playerID string
	var username string
	var expiresAtMs int64
	err := m.db.QueryRowContext(ctx, `
SELECT s.player_id, a.username, s.expires_at_ms
FROM sessions s
JOIN accounts a ON a.player_id = s.player_id
WHERE s.token = ?
`, token).Scan(&playerID, &username, &expiresAtMs)
	if err != nil {
		return Player{}, false
	}

	now := time.Now().UTC()
	if now.UnixMilli() >= expiresAtMs {
		_, _ = m.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return Player{}, false
	}

	newExpiry := now.Add(m.sessionTTL).UnixMilli()
	_, _ = m.db.ExecContext(ctx, `UPDATE sessions SET expires_at_ms = ? WHERE token = ?`, newExpiry, token)
	return Player{ID: playerID, Username: username}, true
}

func (m *SQLiteManager) Logout(token string) {
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = m.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
}

func (m *SQLiteManager) issueSession(ctx context.Context, tx *sql.Tx, playerID string, nowMs int64) (string, error) {
	token := mustToken()
	expiresAtMs := time.UnixMilli(nowMs).Add(m.sessionTTL).UnixMilli()
	_, err := tx.ExecContext(ctx, `
INSERT INTO sessions (token, player_id, created_at_ms, expires_at_ms)
VALUES (?, ?, ?, ?)
`, token, playerID, nowMs, expiresAtMs)
	if err != nil {
		return "", err
	}
	return token, nil
}

func ensureSQLiteAuthSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
    player_id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash BLOB NOT NULL,
    created_at_ms INTEGER NOT NULL,
    last_login_at_ms INTEGER NOT NULL
)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    player_id TEXT NOT NULL REFERENCES accounts(player_id),
    created_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL
)`)
	return err
}

func authLocalDatabasePathFromEnv() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("AUTH_LOCAL_DATABASE_PATH")),
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
