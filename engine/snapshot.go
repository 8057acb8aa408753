package engine

import "time"

// Seat is one occupied position at the table.
type Seat struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name,omitempty"`
	SeatNo     int    `json:"seat_no"`
	Chips      int64  `json:"chips"`
	RoundBet   int64  `json:"round_bet"`
	Folded     bool   `json:"folded"`
	SittingOut bool   `json:"sitting_out"`
	Active     bool   `json:"active"`
}

// canAct reports whether the seat participates in turn rotation.
// All-in players keep contending for the pot but are skipped for turns.
func (s Seat) canAct() bool {
	return s.Active && !s.Folded && !s.SittingOut
}

// contending reports whether the seat is still eligible to win the hand.
func (s Seat) contending() bool {
	return !s.Folded && !s.SittingOut
}

// ActionRecord is one entry of the append-only table history.
type ActionRecord struct {
	Type     ActionType `json:"type"`
	PlayerID string     `json:"player_id,omitempty"`
	Amount   int64      `json:"amount,omitempty"`
	At       time.Time  `json:"at"`
}

// Snapshot is the full state of one table. Transitions never mutate a
// snapshot in place; Apply and the lifecycle operations return fresh values
// so a caller holding the previous version keeps a consistent view.
type Snapshot struct {
	ID         string        `json:"id"`
	RoomCode   string        `json:"room_code"`
	SmallBlind int64         `json:"small_blind"`
	BigBlind   int64         `json:"big_blind"`
	Phase      Phase         `json:"phase"`
	Pot        int64         `json:"pot"`
	TurnSeat   int           `json:"turn_seat"`
	DealerSeat int           `json:"dealer_seat"`
	HighestBet int64         `json:"highest_bet"`
	MinRaise   int64         `json:"min_raise"`
	LastAction *ActionRecord `json:"last_action,omitempty"`
	Seats      []Seat        `json:"seats"`

	// Actions is append-only across hands. Round reasoning windows it at
	// the most recent WIN record (see currentHandActions).
	Actions []ActionRecord `json:"actions"`
}

// NewTable opens an empty table in SETUP with no dealer assigned.
func NewTable(id, roomCode string, smallBlind, bigBlind int64) Snapshot {
	return Snapshot{
		ID:         id,
		RoomCode:   roomCode,
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
		Phase:      PhaseSetup,
		TurnSeat:   NoSeat,
		DealerSeat: NoSeat,
		MinRaise:   bigBlind,
	}
}

// clone deep-copies the snapshot so transitions can write freely.
func (s Snapshot) clone() Snapshot {
	next := s
	next.Seats = make([]Seat, len(s.Seats))
	copy(next.Seats, s.Seats)
	next.Actions = make([]ActionRecord, len(s.Actions), len(s.Actions)+1)
	copy(next.Actions, s.Actions)
	if s.LastAction != nil {
		la := *s.LastAction
		next.LastAction = &la
	}
	return next
}

func (s *Snapshot) seatByPlayer(playerID string) *Seat {
	if playerID == "" {
		return nil
	}
	for i := range s.Seats {
		if s.Seats[i].PlayerID == playerID {
			return &s.Seats[i]
		}
	}
	return nil
}

func (s *Snapshot) seatByNo(seatNo int) *Seat {
	if seatNo == NoSeat {
		return nil
	}
	for i := range s.Seats {
		if s.Seats[i].SeatNo == seatNo {
			return &s.Seats[i]
		}
	}
	return nil
}

// contenders are the occupants still eligible to win the current hand.
func (s Snapshot) contenders() []Seat {
	out := make([]Seat, 0, len(s.Seats))
	for _, seat := range s.Seats {
		if seat.contending() {
			out = append(out, seat)
		}
	}
	return out
}

// currentHandActions returns the history segment after the most recent WIN.
// Records before that boundary belong to an earlier hand and must not feed
// round-completion reasoning.
func (s Snapshot) currentHandActions() []ActionRecord {
	for i := len(s.Actions) - 1; i >= 0; i-- {
		if s.Actions[i].Type == ActionWin {
			return s.Actions[i+1:]
		}
	}
	return s.Actions
}

// record appends to the history and updates LastAction.
func (s *Snapshot) record(t ActionType, playerID string, amount int64) {
	rec := ActionRecord{Type: t, PlayerID: playerID, Amount: amount, At: time.Now().UTC()}
	s.Actions = append(s.Actions, rec)
	s.LastAction = &rec
}

// refreshActive rederives the seat's turn eligibility after a chip or
// sitting-out change.
func refreshActive(seat *Seat) {
	seat.Active = seat.Chips > 0 && !seat.SittingOut
}

// AddPlayer claims seatNo for playerID with a starting stack. During a live
// betting round the newcomer enters folded and joins play from the next hand.
func AddPlayer(s Snapshot, playerID, name string, seatNo int, chips int64) (Snapshot, error) {
	if playerID == "" {
		return s, reject(RejectInvalidAction, "missing player id")
	}
	if seatNo == NoSeat {
		return s, reject(RejectInvalidAction, "invalid seat %d", seatNo)
	}
	if chips < 0 {
		return s, reject(RejectInvalidAction, "negative buy-in %d", chips)
	}
	if s.seatByNo(seatNo) != nil {
		return s, reject(RejectInvalidAction, "seat %d is occupied", seatNo)
	}
	if s.seatByPlayer(playerID) != nil {
		return s, reject(RejectInvalidAction, "player %s already seated", playerID)
	}

	next := s.clone()
	seat := Seat{
		PlayerID: playerID,
		Name:     name,
		SeatNo:   seatNo,
		Chips:    chips,
		Folded:   bettingPhases[s.Phase] && s.Phase != PhaseSetup,
	}
	refreshActive(&seat)
	next.Seats = append(next.Seats, seat)
	return next, nil
}

// RemovePlayer releases a seat between hands. A mid-hand departure must fold
// (or sit out) first; removing a live contender would corrupt turn order.
func RemovePlayer(s Snapshot, playerID string) (Snapshot, error) {
	seat := s.seatByPlayer(playerID)
	if seat == nil {
		return s, reject(RejectPlayerNotFound, "player %s not seated", playerID)
	}
	if bettingPhases[s.Phase] && s.Phase != PhaseSetup && seat.contending() {
		return s, reject(RejectInvalidActionPhase, "cannot leave during a live hand")
	}

	next := s.clone()
	for i := range next.Seats {
		if next.Seats[i].PlayerID == playerID {
			next.Seats = append(next.Seats[:i], next.Seats[i+1:]...)
			break
		}
	}
	if next.DealerSeat == seat.SeatNo {
		next.DealerSeat = NoSeat
	}
	if next.TurnSeat == seat.SeatNo {
		next.TurnSeat = nextActiveSeat(next.Seats, seat.SeatNo)
	}
	return next, nil
}
