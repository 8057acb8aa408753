package lobby

import (
	"strings"
	"testing"

	"chiptrack/internal/store"
	"chiptrack/internal/table"
	"chiptrack/internal/wire"
)

func noopBroadcast(string, *wire.ServerEnvelope) {}

func newTestLobby(t *testing.T) *Lobby {
	t.Helper()
	l := New(store.NewMemoryStore(), noopBroadcast)
	t.Cleanup(l.Stop)
	return l
}

func TestCreateAndJoinByCode(t *testing.T) {
	l := newTestLobby(t)

	created, err := l.CreateRoom(5, 10)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.RoomCode == "" || len(created.RoomCode) != roomCodeLength {
		t.Fatalf("unexpected room code %q", created.RoomCode)
	}

	joined, err := l.JoinByCode(created.RoomCode)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if joined.ID != created.ID {
		t.Fatalf("expected table %s, got %s", created.ID, joined.ID)
	}

	// Codes are case-insensitive on join.
	lower, err := l.JoinByCode(strings.ToLower(created.RoomCode))
	if err != nil {
		t.Fatalf("lowercase join failed: %v", err)
	}
	if lower.ID != created.ID {
		t.Fatalf("expected same table for lowercase code")
	}
}

func TestJoinUnknownCode(t *testing.T) {
	l := newTestLobby(t)
	if _, err := l.JoinByCode("NOSUCH"); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestCreateRoomEnforcesBlindOrdering(t *testing.T) {
	l := newTestLobby(t)
	created, err := l.CreateRoom(10, 5)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	snap := created.Snapshot()
	if snap.BigBlind <= snap.SmallBlind {
		t.Fatalf("expected big blind above small blind, got %d/%d", snap.SmallBlind, snap.BigBlind)
	}
}

func TestListRooms(t *testing.T) {
	l := newTestLobby(t)
	a, _ := l.CreateRoom(5, 10)
	b, _ := l.CreateRoom(25, 50)

	rooms := l.ListRooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	seen := map[string]bool{}
	for _, room := range rooms {
		seen[room.TableID] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Fatalf("missing rooms in listing: %+v", rooms)
	}
}

func TestResumeAfterReap(t *testing.T) {
	l := newTestLobby(t)
	created, err := l.CreateRoom(5, 10)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Seat someone so a snapshot lands in the store.
	if err := created.SubmitEvent(table.Event{Type: table.EventJoin, PlayerID: "p1", Username: "alice"}); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := created.SubmitEvent(table.Event{Type: table.EventTakeSeat, PlayerID: "p1", SeatNo: 1, Amount: 500}); err != nil {
		t.Fatalf("take seat failed: %v", err)
	}

	// Simulate the reaper dropping the idle actor.
	created.Stop()
	l.mu.Lock()
	delete(l.tables, created.ID)
	l.mu.Unlock()

	resumed, err := l.JoinByCode(created.RoomCode)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if resumed.ID != created.ID {
		t.Fatalf("expected resumed table %s, got %s", created.ID, resumed.ID)
	}
	snap := resumed.Snapshot()
	if len(snap.Seats) != 1 || snap.Seats[0].PlayerID != "p1" {
		t.Fatalf("expected restored seat, got %+v", snap.Seats)
	}
}
