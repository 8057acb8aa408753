// Package lobby tracks every live table and maps human-friendly room
// codes to table actors.
package lobby

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chiptrack/engine"
	"chiptrack/internal/store"
	"chiptrack/internal/table"
	"chiptrack/internal/wire"
)

var ErrRoomNotFound = errors.New("room not found")

// Room codes avoid 0/O and 1/I.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const roomCodeLength = 6

const defaultIdleTTL = 10 * time.Minute

// RoomInfo is the listing entry exposed over the HTTP API.
type RoomInfo struct {
	TableID    string `json:"table_id"`
	RoomCode   string `json:"room_code"`
	SmallBlind int64  `json:"small_blind"`
	BigBlind   int64  `json:"big_blind"`
	Seated     int    `json:"seated"`
	Phase      string `json:"phase"`
}

// Lobby manages table lifecycles: creation, lookup by code, idle reaping.
type Lobby struct {
	mu      sync.RWMutex
	tables  map[string]*table.Table // table id -> actor
	byCode  map[string]string       // room code -> table id
	idleTTL time.Duration

	defaultConfig table.Config
	store         store.Store
	broadcast     func(playerID string, env *wire.ServerEnvelope)

	stopOnce sync.Once
	done     chan struct{}
}

func New(st store.Store, broadcastFn func(playerID string, env *wire.ServerEnvelope)) *Lobby {
	l := &Lobby{
		tables:  make(map[string]*table.Table),
		byCode:  make(map[string]string),
		idleTTL: defaultIdleTTL,
		defaultConfig: table.Config{
			SmallBlind: 5,
			BigBlind:   10,
			MaxSeats:   9,
		},
		store:     st,
		broadcast: broadcastFn,
		done:      make(chan struct{}),
	}
	go l.reapLoop()
	return l
}

// CreateRoom opens a new table with the given blinds (zero means the
// lobby defaults) and returns its actor.
func (l *Lobby) CreateRoom(smallBlind, bigBlind int64) (*table.Table, error) {
	cfg := l.defaultConfig
	if smallBlind > 0 {
		cfg.SmallBlind = smallBlind
	}
	if bigBlind > 0 {
		cfg.BigBlind = bigBlind
	}
	if cfg.BigBlind <= cfg.SmallBlind {
		cfg.BigBlind = 2 * cfg.SmallBlind
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tableID := uuid.NewString()
	code := l.newRoomCodeLocked()
	t := table.New(tableID, code, cfg, l.store, l.broadcast)
	l.tables[tableID] = t
	l.byCode[code] = tableID

	log.Printf("[Lobby] Created room %s (table %s, blinds %d/%d)", code, tableID, cfg.SmallBlind, cfg.BigBlind)
	return t, nil
}

// JoinByCode resolves a room code to its table, restoring the table
// from the store when the actor is not in memory.
func (l *Lobby) JoinByCode(code string) (*table.Table, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	l.mu.RLock()
	tableID, ok := l.byCode[code]
	var t *table.Table
	if ok {
		t = l.tables[tableID]
	}
	l.mu.RUnlock()
	if t != nil && !t.IsClosed() {
		return t, nil
	}

	return l.resumeByCode(code)
}

// GetTable returns a live table by ID.
func (l *Lobby) GetTable(tableID string) *table.Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tables[tableID]
}

// ListRooms returns info for every live table.
func (l *Lobby) ListRooms() []RoomInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]RoomInfo, 0, len(l.tables))
	for _, t := range l.tables {
		if t.IsClosed() {
			continue
		}
		snap := t.Snapshot()
		out = append(out, RoomInfo{
			TableID:    snap.ID,
			RoomCode:   snap.RoomCode,
			SmallBlind: snap.SmallBlind,
			BigBlind:   snap.BigBlind,
			Seated:     len(snap.Seats),
			Phase:      string(snap.Phase),
		})
	}
	return out
}

// Stop shuts down the reaper and every table actor.
func (l *Lobby) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.tables {
		t.Stop()
	}
}

func (l *Lobby) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.reapIdle()
		case <-l.done:
			return
		}
	}
}

func (l *Lobby) reapIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, t := range l.tables {
		if !t.IsIdleFor(l.idleTTL) {
			continue
		}
		t.Stop()
		delete(l.tables, id)
		// byCode survives so the room can be resumed from the store.
		log.Printf("[Lobby] Reaped idle room %s (table %s)", t.RoomCode, id)
	}
}

func (l *Lobby) resumeByCode(code string) (*table.Table, error) {
	if l.store == nil || code == "" {
		return nil, ErrRoomNotFound
	}

	snap, version, err := l.loadByCode(code)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing := l.tables[snap.ID]; existing != nil && !existing.IsClosed() {
		return existing, nil
	}

	cfg := l.defaultConfig
	cfg.SmallBlind = snap.SmallBlind
	cfg.BigBlind = snap.BigBlind
	t := table.Resume(*snap, version, cfg, l.store, l.broadcast)
	l.tables[snap.ID] = t
	l.byCode[snap.RoomCode] = snap.ID
	log.Printf("[Lobby] Resumed room %s (table %s) from store", snap.RoomCode, snap.ID)
	return t, nil
}

func (l *Lobby) loadByCode(code string) (*engine.Snapshot, int64, error) {
	// The store is keyed by table id, so resume goes through the
	// code -> id mapping kept for the life of the process.
	l.mu.RLock()
	tableID, ok := l.byCode[code]
	l.mu.RUnlock()
	if !ok {
		return nil, 0, ErrRoomNotFound
	}
	snap, version, err := l.store.LoadSnapshot(context.Background(), tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, ErrRoomNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return snap, version, nil
}

func (l *Lobby) newRoomCodeLocked() string {
	for {
		code := randomRoomCode()
		if _, exists := l.byCode[code]; !exists {
			return code
		}
	}
}

func randomRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
