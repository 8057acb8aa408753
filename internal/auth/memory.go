package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Manager is the in-memory Service used for tests and single-process
// dev runs. Accounts vanish on restart.
type Manager struct {
	mu sync.Mutex

	sessionTTL    time.Duration
	sessions      map[string]sessionRecord
	accountsByID  map[string]accountRecord
	accountsByKey map[string]string // normalized username -> player id
}

type sessionRecord struct {
	PlayerID  string
	ExpiresAt time.Time
}

type accountRecord struct {
	PlayerID     string
	Username     string
	PasswordHash []byte
	LastLoginAt  time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessionTTL:    defaultSessionTTL,
		sessions:      make(map[string]sessionRecord),
		accountsByID:  make(map[string]accountRecord),
		accountsByKey: make(map[string]string),
	}
}

func (m *Manager) Close() error {
	return nil
}

func (m *Manager) Register(username, password string) (Player, string, error) {
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

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accountsByKey[normalized]; exists {
		return Player{}, "", ErrUsernameTaken
	}

	now := time.Now()
	playerID := uuid.NewString()
	m.accountsByID[playerID] = accountRecord{
		PlayerID:     playerID,
		Username:     normalized,
		PasswordHash: passwordHash,
		LastLoginAt:  now,
	}
	m.accountsByKey[normalized] = playerID

	token := m.issueSessionLocked(playerID, now)
	return Player{ID: playerID, Username: normalized}, token, nil
}

func (m *Manager) Login(username, password string) (Player, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return Player{}, "", ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	playerID, exists := m.accountsByKey[normalized]
	if !exists {
		return Player{}, "", ErrInvalidCredentials
	}

	profile := m.accountsByID[playerID]
	if len(profile.PasswordHash) == 0 {
		return Player{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)) != nil {
		return Player{}, "", ErrInvalidCredentials
	}

	now := time.Now()
	profile.LastLoginAt = now
	m.accountsByID[playerID] = profile
	token := m.issueSessionLocked(playerID, now)
	return Player{ID: playerID, Username: profile.Username}, token, nil
}

// ResolveSession validates and refreshes a session token.
func (m *Manager) ResolveSession(token string) (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if token == "" {
		return Player{}, false
	}
	rec, exists := m.sessions[token]
	if !exists {
		return Player{}, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return Player{}, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec

	profile := m.accountsByID[rec.PlayerID]
	return Player{ID: rec.PlayerID, Username: profile.Username}, true
}

func (m *Manager) Logout(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) issueSessionLocked(playerID string, now time.Time) string {
	token := mustToken()
	m.sessions[token] = sessionRecord{
		PlayerID:  playerID,
		ExpiresAt: now.Add(m.sessionTTL),
	}
	return token
}
