package engine

// eligibleForHand counts occupants able to play the next hand.
func eligibleForHand(seats []Seat) int {
	n := 0
	for _, seat := range seats {
		if seat.Chips > 0 && !seat.SittingOut {
			n++
		}
	}
	return n
}

// ResetForNextHand prepares the table for a fresh deal: the button moves to
// the next funded occupant, per-hand flags clear and the turn lands on the
// new small blind, waiting for the blinds to be posted. The action history
// is kept; it is segmented at WIN records.
func ResetForNextHand(s Snapshot) (Snapshot, error) {
	if eligibleForHand(s.Seats) < 2 {
		return s, reject(RejectNotEnoughPlayers, "need at least two funded players, have %d", eligibleForHand(s.Seats))
	}

	next := s.clone()
	for i := range next.Seats {
		next.Seats[i].RoundBet = 0
		next.Seats[i].Folded = false
		refreshActive(&next.Seats[i])
	}

	next.DealerSeat = nextActiveSeat(next.Seats, next.DealerSeat)
	next.Phase = PhaseSetup
	next.Pot = 0
	next.HighestBet = 0
	next.MinRaise = next.BigBlind
	next.LastAction = nil

	sb := smallBlindSeat(next)
	if sb == NoSeat {
		return s, reject(RejectInternal, "small blind seat could not be derived")
	}
	next.TurnSeat = sb
	return next, nil
}

// StartGame begins play on a table that has never dealt: the button goes to
// the lowest funded seat and the first hand is set up. The controller is
// expected to request the two blinds next.
func StartGame(s Snapshot) (Snapshot, error) {
	if s.DealerSeat != NoSeat {
		return s, reject(RejectInvalidActionPhase, "game already started")
	}
	return ResetForNextHand(s)
}

// DeclareWinner concludes a showdown (or any stalled hand) by awarding the
// pot to the named player.
func DeclareWinner(s Snapshot, winnerID string) (Snapshot, error) {
	return Apply(s, Action{Type: ActionWin, TargetPlayerID: winnerID})
}
