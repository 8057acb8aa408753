package engine

import (
	"sort"

	"github.com/thoas/go-funk"
)

// actingOrder returns the seat numbers that can take a turn, ascending.
func actingOrder(seats []Seat) []int {
	acting := funk.Filter(seats, func(s Seat) bool { return s.canAct() }).([]Seat)
	order := make([]int, 0, len(acting))
	for _, s := range acting {
		order = append(order, s.SeatNo)
	}
	sort.Ints(order)
	return order
}

// nextActiveSeat walks the circular seat order and returns the first seat
// able to act after fromSeat. fromSeat itself need not be able to act: a
// seat that just folded or sat out still anchors where the order resumes.
// NoSeat means nobody can act at all.
func nextActiveSeat(seats []Seat, fromSeat int) int {
	order := actingOrder(seats)
	if len(order) == 0 {
		return NoSeat
	}
	if fromSeat == NoSeat {
		return order[0]
	}
	for _, seatNo := range order {
		if seatNo > fromSeat {
			return seatNo
		}
	}
	return order[0]
}

// blindEligible are the occupants considered when placing the blinds:
// seated, funded and not sitting out.
func blindEligible(seats []Seat) []Seat {
	return funk.Filter(seats, func(s Seat) bool {
		return s.Active && !s.SittingOut
	}).([]Seat)
}

// smallBlindSeat locates the small blind for the current dealer. Heads-up
// the dealer posts the small blind; otherwise it is the next seat after the
// button.
func smallBlindSeat(s Snapshot) int {
	if s.DealerSeat == NoSeat {
		return NoSeat
	}
	if len(blindEligible(s.Seats)) == 2 {
		return s.DealerSeat
	}
	return nextActiveSeat(s.Seats, s.DealerSeat)
}

func bigBlindSeat(s Snapshot, smallBlind int) int {
	if smallBlind == NoSeat {
		return NoSeat
	}
	return nextActiveSeat(s.Seats, smallBlind)
}

// firstToActSeat is where a betting round opens. Pre-flop action starts
// after the big blind; on later streets it starts after the button.
func firstToActSeat(s Snapshot) int {
	if s.DealerSeat == NoSeat {
		return NoSeat
	}
	switch s.Phase {
	case PhaseSetup, PhasePreflop:
		bb := bigBlindSeat(s, smallBlindSeat(s))
		if bb == NoSeat {
			return nextActiveSeat(s.Seats, s.DealerSeat)
		}
		return nextActiveSeat(s.Seats, bb)
	default:
		return nextActiveSeat(s.Seats, s.DealerSeat)
	}
}
