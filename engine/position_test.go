package engine

import "testing"

func seatsFor(stacks ...int64) []Seat {
	seats := make([]Seat, 0, len(stacks))
	for i, chips := range stacks {
		seat := Seat{
			PlayerID: playerID(i + 1),
			SeatNo:   i + 1,
			Chips:    chips,
		}
		refreshActive(&seat)
		seats = append(seats, seat)
	}
	return seats
}

func playerID(n int) string {
	return "p" + string(rune('0'+n))
}

func TestNextActiveSeat_CircularOverActiveSeats(t *testing.T) {
	seats := seatsFor(100, 100, 100, 100)

	// k applications over k acting seats must return to the start.
	cur := 1
	for i := 0; i < len(seats); i++ {
		cur = nextActiveSeat(seats, cur)
	}
	if cur != 1 {
		t.Fatalf("expected to come back to seat 1, got %d", cur)
	}
}

func TestNextActiveSeat_WrapsPastHighestSeat(t *testing.T) {
	seats := seatsFor(100, 100, 100)
	if got := nextActiveSeat(seats, 3); got != 1 {
		t.Fatalf("expected wrap to seat 1, got %d", got)
	}
}

func TestNextActiveSeat_SkipsFoldedAndSittingOut(t *testing.T) {
	seats := seatsFor(100, 100, 100, 100)
	seats[1].Folded = true
	seats[2].SittingOut = true
	refreshActive(&seats[2])

	if got := nextActiveSeat(seats, 1); got != 4 {
		t.Fatalf("expected seat 4 after skipping 2 and 3, got %d", got)
	}
}

func TestNextActiveSeat_FromSeatThatJustFolded(t *testing.T) {
	seats := seatsFor(100, 100, 100)
	seats[1].Folded = true

	// Circular order resumes after the folder, not at the lowest seat.
	if got := nextActiveSeat(seats, 2); got != 3 {
		t.Fatalf("expected seat 3 after folded seat 2, got %d", got)
	}
	seats[2].Folded = true
	if got := nextActiveSeat(seats, 2); got != 1 {
		t.Fatalf("expected wrap to seat 1, got %d", got)
	}
}

func TestNextActiveSeat_NoSeatAndUnknownFrom(t *testing.T) {
	seats := seatsFor(100, 100)
	if got := nextActiveSeat(seats, NoSeat); got != 1 {
		t.Fatalf("expected first acting seat for NoSeat, got %d", got)
	}
	if got := nextActiveSeat(seats, 9); got != 1 {
		t.Fatalf("expected first acting seat for unknown seat, got %d", got)
	}
	if got := nextActiveSeat(nil, 1); got != NoSeat {
		t.Fatalf("expected NoSeat on empty table, got %d", got)
	}
}

func TestSmallBlindSeat_HeadsUpDealerPosts(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100)
	s.DealerSeat = 2

	if got := smallBlindSeat(s); got != 2 {
		t.Fatalf("heads-up small blind should be the dealer, got seat %d", got)
	}
	if got := bigBlindSeat(s, 2); got != 1 {
		t.Fatalf("expected big blind on seat 1, got %d", got)
	}
}

func TestSmallBlindSeat_MultiwayIsAfterDealer(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100, 100)
	s.DealerSeat = 1

	if got := smallBlindSeat(s); got != 2 {
		t.Fatalf("expected small blind on seat 2, got %d", got)
	}
	if got := bigBlindSeat(s, 2); got != 3 {
		t.Fatalf("expected big blind on seat 3, got %d", got)
	}
}

func TestSmallBlindSeat_NoDealer(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100, 100)

	if got := smallBlindSeat(s); got != NoSeat {
		t.Fatalf("expected NoSeat without a dealer, got %d", got)
	}
	if got := bigBlindSeat(s, NoSeat); got != NoSeat {
		t.Fatalf("expected NoSeat big blind, got %d", got)
	}
}

func TestFirstToActSeat_PreflopAfterBigBlind(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100, 100, 100)
	s.DealerSeat = 1
	s.Phase = PhasePreflop

	// sb=2, bb=3, first to act preflop is seat 4.
	if got := firstToActSeat(s); got != 4 {
		t.Fatalf("expected seat 4 to open preflop, got %d", got)
	}
}

func TestFirstToActSeat_PostflopAfterDealer(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100, 100, 100)
	s.DealerSeat = 1

	for _, phase := range []Phase{PhaseFlop, PhaseTurn, PhaseRiver} {
		s.Phase = phase
		if got := firstToActSeat(s); got != 2 {
			t.Fatalf("phase %s: expected seat 2 to open, got %d", phase, got)
		}
	}
}

func TestFirstToActSeat_HeadsUpPostflopIsBigBlind(t *testing.T) {
	s := NewTable("t", "ROOM", 5, 10)
	s.Seats = seatsFor(100, 100)
	s.DealerSeat = 1
	s.Phase = PhaseFlop

	// Dealer posts the small blind heads-up, so seat 2 (the big blind)
	// opens every postflop street.
	if got := firstToActSeat(s); got != 2 {
		t.Fatalf("expected seat 2 to open, got %d", got)
	}
}
