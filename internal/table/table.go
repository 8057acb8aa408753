// Package table hosts one actor goroutine per live table. All mutations
// of the table snapshot flow through the event channel, so the engine
// state never needs a lock of its own.
package table

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"chiptrack/engine"
	"chiptrack/internal/store"
	"chiptrack/internal/wire"
)

// Config holds the fixed parameters of a table.
type Config struct {
	SmallBlind    int64
	BigBlind      int64
	MinBuyIn      int64
	MaxBuyIn      int64
	MaxSeats      int
	ActionTimeout time.Duration
	NextHandDelay time.Duration
	OfflineGrace  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSeats <= 0 {
		c.MaxSeats = 9
	}
	if c.MinBuyIn <= 0 {
		c.MinBuyIn = 20 * c.BigBlind
	}
	if c.MaxBuyIn <= 0 {
		c.MaxBuyIn = 200 * c.BigBlind
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 30 * time.Second
	}
	if c.NextHandDelay <= 0 {
		c.NextHandDelay = 3 * time.Second
	}
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = 2 * time.Minute
	}
	return c
}

// PlayerConn tracks a member of the table, seated or spectating.
type PlayerConn struct {
	PlayerID string
	Username string
	Online   bool
	LastSeen time.Time
}

// Event types for the actor message queue.
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventTakeSeat
	EventStartGame
	EventNextHand
	EventAction
	EventConnLost
	EventClose
)

// Event is a message to the table actor.
type Event struct {
	Type      EventType
	PlayerID  string
	Username  string
	SeatNo    int
	Amount    int64
	Action    engine.Action
	Timestamp time.Time
	Response  chan error
}

var ErrTableClosed = errors.New("table closed")

// Table is the actor owning one engine snapshot.
type Table struct {
	ID       string
	RoomCode string
	Config   Config

	mu      sync.RWMutex
	snap    engine.Snapshot
	version int64
	members map[string]*PlayerConn
	closed  bool

	stopOnce sync.Once
	events   chan Event
	done     chan struct{}

	serverSeq uint64

	actionTimeoutPlayer string
	actionDeadline      time.Time
	nextHandAt          time.Time
	emptySince          time.Time

	// broadcast delivers env to one member, or to every member when
	// playerID is empty.
	broadcast func(playerID string, env *wire.ServerEnvelope)
	store     store.Store
}

// New opens a fresh table and starts its actor goroutine.
func New(id, roomCode string, cfg Config, st store.Store, broadcastFn func(playerID string, env *wire.ServerEnvelope)) *Table {
	return start(engine.NewTable(id, roomCode, cfg.SmallBlind, cfg.BigBlind), 0, cfg, st, broadcastFn)
}

// Resume rebuilds a table actor around a snapshot loaded from the store.
func Resume(snap engine.Snapshot, version int64, cfg Config, st store.Store, broadcastFn func(playerID string, env *wire.ServerEnvelope)) *Table {
	return start(snap, version, cfg, st, broadcastFn)
}

func start(snap engine.Snapshot, version int64, cfg Config, st store.Store, broadcastFn func(playerID string, env *wire.ServerEnvelope)) *Table {
	t := &Table{
		ID:         snap.ID,
		RoomCode:   snap.RoomCode,
		Config:     cfg.withDefaults(),
		snap:       snap,
		version:    version,
		members:    make(map[string]*PlayerConn),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		broadcast:  broadcastFn,
		store:      st,
		emptySince: time.Now(),
	}

	go t.run()

	log.Printf("[Table %s] Created room=%s blinds=%d/%d", t.ID, t.RoomCode, t.Config.SmallBlind, t.Config.BigBlind)
	return t
}

func (t *Table) run() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			log.Printf("[Table %s] Actor stopped", t.ID)
			return
		}
	}
}

// SubmitEvent sends an event to the actor and waits for the outcome.
func (t *Table) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventJoin:
		return t.handleJoin(e.PlayerID, e.Username)
	case EventLeave:
		return t.handleLeave(e.PlayerID)
	case EventTakeSeat:
		return t.handleTakeSeat(e.PlayerID, e.SeatNo, e.Amount)
	case EventStartGame:
		return t.handleStartGame()
	case EventNextHand:
		return t.handleNextHand()
	case EventAction:
		return t.handleAction(e.PlayerID, e.Action)
	case EventConnLost:
		return t.handleConnLost(e.PlayerID, e.Timestamp)
	case EventClose:
		t.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (t *Table) handleJoin(playerID, username string) error {
	now := time.Now()
	name := normalizeName(username, playerID)
	if member, exists := t.members[playerID]; exists {
		member.Online = true
		member.LastSeen = now
		member.Username = name
		t.sendSnapshotLocked(playerID)
		return nil
	}
	t.members[playerID] = &PlayerConn{
		PlayerID: playerID,
		Username: name,
		Online:   true,
		LastSeen: now,
	}
	t.emptySince = time.Time{}
	log.Printf("[Table %s] Player %s joined", t.ID, playerID)
	t.sendSnapshotLocked(playerID)
	return nil
}

func (t *Table) handleLeave(playerID string) error {
	member := t.members[playerID]
	if member == nil {
		return nil
	}

	if t.seatOf(playerID) != nil {
		next, err := engine.RemovePlayer(t.snap, playerID)
		if err != nil {
			return err
		}
		if err := t.commitLocked(next); err != nil {
			return err
		}
	}

	delete(t.members, playerID)
	t.updateEmptySinceLocked(time.Now())
	log.Printf("[Table %s] Player %s left", t.ID, playerID)
	t.broadcastEnvelope("", wire.MustWrapServer(wire.TypeLeft, t.ID, t.nextSeq(), wire.JoinedPayload{
		TableID:  t.ID,
		RoomCode: t.RoomCode,
		PlayerID: playerID,
	}))
	return nil
}

func (t *Table) handleTakeSeat(playerID string, seatNo int, buyIn int64) error {
	member := t.members[playerID]
	if member == nil {
		return &engine.Rejection{Kind: engine.RejectPlayerNotFound, Message: "player is not a member of this table"}
	}
	if seatNo < 1 || seatNo > t.Config.MaxSeats {
		return &engine.Rejection{Kind: engine.RejectInvalidAction, Message: fmt.Sprintf("invalid seat %d (1-%d)", seatNo, t.Config.MaxSeats)}
	}
	if buyIn < t.Config.MinBuyIn || buyIn > t.Config.MaxBuyIn {
		return &engine.Rejection{Kind: engine.RejectInvalidBetAmount, Message: fmt.Sprintf("buy-in %d outside range %d-%d", buyIn, t.Config.MinBuyIn, t.Config.MaxBuyIn)}
	}

	next, err := engine.AddPlayer(t.snap, playerID, member.Username, seatNo, buyIn)
	if err != nil {
		return err
	}
	if err := t.commitLocked(next); err != nil {
		return err
	}

	log.Printf("[Table %s] Player %s took seat %d with %d", t.ID, playerID, seatNo, buyIn)
	t.broadcastSnapshotLocked()
	return nil
}

func (t *Table) handleStartGame() error {
	next, err := engine.StartGame(t.snap)
	if err != nil {
		return err
	}
	if err := t.commitLocked(next); err != nil {
		return err
	}

	log.Printf("[Table %s] Game started. Dealer seat %d, turn seat %d", t.ID, t.snap.DealerSeat, t.snap.TurnSeat)
	t.broadcastSnapshotLocked()
	return nil
}

func (t *Table) handleNextHand() error {
	t.nextHandAt = time.Time{}
	next, err := engine.ResetForNextHand(t.snap)
	if err != nil {
		return err
	}
	if err := t.commitLocked(next); err != nil {
		return err
	}

	log.Printf("[Table %s] Next hand. Dealer seat %d", t.ID, t.snap.DealerSeat)
	t.broadcastSnapshotLocked()
	return nil
}

func (t *Table) handleAction(playerID string, action engine.Action) error {
	member := t.members[playerID]
	if member == nil {
		return &engine.Rejection{Kind: engine.RejectPlayerNotFound, Message: "player is not a member of this table"}
	}
	action.PlayerID = playerID

	next, err := engine.Apply(t.snap, action)
	if err != nil {
		return err
	}
	if t.actionTimeoutPlayer == playerID {
		t.clearActionTimeoutLocked()
	}
	if err := t.commitLocked(next); err != nil {
		return err
	}

	log.Printf("[Table %s] Player %s action %s amount %d -> phase %s", t.ID, playerID, action.Type, action.Amount, t.snap.Phase)
	t.broadcastSnapshotLocked()

	if t.snap.Phase == engine.PhaseHandOver {
		t.nextHandAt = time.Now().Add(t.Config.NextHandDelay)
	}
	return nil
}

func (t *Table) handleConnLost(playerID string, ts time.Time) error {
	member := t.members[playerID]
	if member == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	member.Online = false
	member.LastSeen = ts
	log.Printf("[Table %s] Player %s connection lost", t.ID, playerID)
	return nil
}

// commitLocked persists next and installs it as the current snapshot.
// New action records are appended to the store log.
func (t *Table) commitLocked(next engine.Snapshot) error {
	prevCount := len(t.snap.Actions)

	version := t.version
	if t.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		v, err := t.store.SaveSnapshot(ctx, &next, t.version)
		if err != nil {
			return err
		}
		version = v
		for _, rec := range next.Actions[prevCount:] {
			if err := t.store.AppendAction(ctx, t.ID, rec); err != nil {
				log.Printf("[Table %s] append action failed: %v", t.ID, err)
			}
		}
	} else {
		version++
	}

	t.snap = next
	t.version = version
	t.armActionTimeoutLocked(time.Now())
	return nil
}

func (t *Table) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	now := time.Now()
	if err := t.handleTimeout(now); err != nil {
		log.Printf("[Table %s] timeout handler failed: %v", t.ID, err)
	}
	if !t.nextHandAt.IsZero() && !now.Before(t.nextHandAt) {
		if err := t.handleNextHand(); err != nil {
			t.nextHandAt = time.Time{}
			if rej, ok := engine.AsRejection(err); !ok || rej.Kind != engine.RejectNotEnoughPlayers {
				log.Printf("[Table %s] scheduled next hand failed: %v", t.ID, err)
			}
		}
	}
	t.reapOfflineLocked(now)
}

// reapOfflineLocked drops members whose connection has been gone past
// the grace period. Removal can be rejected while a hand is live, in
// which case it is retried on a later tick.
func (t *Table) reapOfflineLocked(now time.Time) {
	for id, member := range t.members {
		if member.Online || now.Sub(member.LastSeen) < t.Config.OfflineGrace {
			continue
		}
		_ = t.handleLeave(id)
	}
}

func (t *Table) handleTimeout(now time.Time) error {
	if t.actionTimeoutPlayer == "" || t.actionDeadline.IsZero() {
		return nil
	}
	if now.Before(t.actionDeadline) {
		return nil
	}

	playerID := t.actionTimeoutPlayer
	t.clearActionTimeoutLocked()

	seat := t.seatOf(playerID)
	if seat == nil || seat.SeatNo != t.snap.TurnSeat {
		return nil
	}

	action := t.pickTimeoutAction(*seat)
	log.Printf("[Table %s] Action timeout player=%s -> auto %s amount=%d", t.ID, playerID, action.Type, action.Amount)
	return t.handleAction(playerID, action)
}

// pickTimeoutAction chooses the least damaging legal action for a
// player who ran out of time: post the due blind during setup, check
// when nothing is owed, fold otherwise.
func (t *Table) pickTimeoutAction(seat engine.Seat) engine.Action {
	if t.snap.Phase == engine.PhaseSetup {
		if t.snap.HighestBet > 0 {
			return engine.Action{Type: engine.ActionBigBlind, Amount: t.Config.BigBlind}
		}
		return engine.Action{Type: engine.ActionSmallBlind, Amount: t.Config.SmallBlind}
	}
	if seat.RoundBet == t.snap.HighestBet {
		return engine.Action{Type: engine.ActionCheck}
	}
	return engine.Action{Type: engine.ActionFold}
}

func (t *Table) armActionTimeoutLocked(now time.Time) {
	t.clearActionTimeoutLocked()
	if t.snap.TurnSeat == engine.NoSeat {
		return
	}
	for _, seat := range t.snap.Seats {
		if seat.SeatNo == t.snap.TurnSeat {
			t.actionTimeoutPlayer = seat.PlayerID
			t.actionDeadline = now.Add(t.Config.ActionTimeout)
			return
		}
	}
}

func (t *Table) clearActionTimeoutLocked() {
	t.actionTimeoutPlayer = ""
	t.actionDeadline = time.Time{}
}

func (t *Table) seatOf(playerID string) *engine.Seat {
	for i := range t.snap.Seats {
		if t.snap.Seats[i].PlayerID == playerID {
			return &t.snap.Seats[i]
		}
	}
	return nil
}

func (t *Table) updateEmptySinceLocked(now time.Time) {
	if len(t.members) == 0 {
		if t.emptySince.IsZero() {
			t.emptySince = now
		}
		return
	}
	t.emptySince = time.Time{}
}

func (t *Table) nextSeq() uint64 {
	t.serverSeq++
	return t.serverSeq
}

func (t *Table) sendSnapshotLocked(playerID string) {
	snap := t.snap
	t.broadcastEnvelope(playerID, wire.SnapshotEnvelope(t.ID, t.nextSeq(), &snap))
}

func (t *Table) broadcastSnapshotLocked() {
	t.sendSnapshotLocked("")
}

func (t *Table) broadcastEnvelope(playerID string, env *wire.ServerEnvelope) {
	if t.broadcast == nil {
		return
	}
	if playerID != "" {
		t.broadcast(playerID, env)
		return
	}
	for id := range t.members {
		t.broadcast(id, env)
	}
}

// Stop shuts down the table actor.
func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.nextHandAt = time.Time{}
	t.clearActionTimeoutLocked()
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// Snapshot returns a copy of the current table state.
func (t *Table) Snapshot() engine.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Members lists the player IDs currently joined to the table.
func (t *Table) Members() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.members))
	for id := range t.members {
		out = append(out, id)
	}
	return out
}

// IsIdleFor reports whether the table has had no members for ttl.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return true
	}
	if len(t.members) > 0 {
		return false
	}
	if t.emptySince.IsZero() {
		return false
	}
	return time.Since(t.emptySince) >= ttl
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func normalizeName(raw, playerID string) string {
	name := strings.TrimSpace(raw)
	if name != "" {
		return name
	}
	if len(playerID) > 8 {
		return "player_" + playerID[:8]
	}
	return "player_" + playerID
}
