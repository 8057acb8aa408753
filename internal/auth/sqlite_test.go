package auth

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newSQLiteTestManager(t *testing.T) *SQLiteManager {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "auth_test.db")
	m, err := NewSQLiteManager(dbPath, time.Hour)
	if err != nil {
		t.Fatalf("NewSQLiteManager err: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSQLiteRegisterLoginRoundTrip(t *testing.T) {
	m := newSQLiteTestManager(t)

	player, token, err := m.Register("bob_02", "secret12")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if player.ID == "" || token == "" {
		t.Fatalf("expected player id and token")
	}

	resolved, ok := m.ResolveSession(token)
	if !ok {
		t.Fatalf("expected valid session")
	}
	if resolved.ID != player.ID || resolved.Username != "bob_02" {
		t.Fatalf("unexpected resolved player: %+v", resolved)
	}

	if _, _, err := m.Register("bob_02", "secret12"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	loginPlayer, _, err := m.Login("bob_02", "secret12")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginPlayer.ID != player.ID {
		t.Fatalf("expected same player id after login")
	}
}

func TestSQLiteLogoutInvalidatesSession(t *testing.T) {
	m := newSQLiteTestManager(t)

	_, token, err := m.Register("bob_02", "secret12")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	m.Logout(token)
	if _, ok := m.ResolveSession(token); ok {
		t.Fatalf("expected logged out token to be invalid")
	}
}
