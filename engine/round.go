package engine

// lastAggressorSeat scans the current-hand history backwards for the most
// recent BET or RAISE and resolves its actor's seat. NoSeat when the hand
// has seen no voluntary aggression yet (blinds do not count).
func lastAggressorSeat(s Snapshot, hand []ActionRecord) int {
	for i := len(hand) - 1; i >= 0; i-- {
		rec := hand[i]
		if rec.Type != ActionBet && rec.Type != ActionRaise {
			continue
		}
		if seat := s.seatByPlayer(rec.PlayerID); seat != nil {
			return seat.SeatNo
		}
		return NoSeat
	}
	return NoSeat
}

// postedBigBlindSeat resolves the seat that posted the big blind this hand
// from the hand history. Positional recomputation is only a fallback for
// hands where no blind record exists: once a caller goes all in or sits
// out, blind eligibility shifts mid-hand and the computed seat no longer
// matches who actually posted.
func postedBigBlindSeat(s Snapshot, hand []ActionRecord) int {
	for i := len(hand) - 1; i >= 0; i-- {
		rec := hand[i]
		if rec.Type != ActionBigBlind {
			continue
		}
		if seat := s.seatByPlayer(rec.PlayerID); seat != nil {
			return seat.SeatNo
		}
		return NoSeat
	}
	return bigBlindSeat(s, smallBlindSeat(s))
}

// roundComplete decides whether the current betting round has closed. It is
// evaluated after an action has been applied and the turn pointer advanced.
//
// The closure rule is a three-way disjunction once all contender bets match:
//   - pre-flop with no raise and the bet stuck at the big blind: the big
//     blind keeps the option, so the round stays open until the turn moves
//     past that seat;
//   - a live aggressor: the round closes when the turn comes back around to
//     the aggressor (or to the first seat able to act after them, when the
//     aggressor can no longer act);
//   - otherwise (check-around): the round closes when the turn returns to
//     the street's first-to-act seat.
func roundComplete(s Snapshot) bool {
	contenders := s.contenders()
	if len(contenders) <= 1 {
		return true
	}

	hand := s.currentHandActions()
	if s.Phase != PhasePreflop && len(hand) == 0 {
		return false
	}

	for _, seat := range contenders {
		if seat.RoundBet != s.HighestBet {
			return false
		}
	}

	aggressor := lastAggressorSeat(s, hand)

	if s.Phase == PhasePreflop && aggressor == NoSeat && s.HighestBet == s.BigBlind {
		if bb := postedBigBlindSeat(s, hand); bb != NoSeat {
			return s.TurnSeat != bb
		}
	}

	if aggressor != NoSeat && s.HighestBet > 0 {
		target := aggressor
		if seat := s.seatByNo(aggressor); seat == nil || !seat.canAct() {
			target = nextActiveSeat(s.Seats, aggressor)
		}
		return s.TurnSeat == target
	}

	return s.TurnSeat == firstToActSeat(s)
}

// advancePhaseIfClosed moves the hand to the next street when the betting
// round is done: highest bet and round contributions reset, the minimum
// raise snaps back to the big blind and the turn is recomputed. Reaching
// SHOWDOWN stops the machine; a WIN must be applied to conclude the hand.
func advancePhaseIfClosed(s *Snapshot) {
	if !bettingPhases[s.Phase] || s.Phase == PhaseSetup {
		return
	}
	if !roundComplete(*s) {
		return
	}

	s.Phase = nextPhase(s.Phase)
	s.HighestBet = 0
	s.MinRaise = s.BigBlind
	for i := range s.Seats {
		s.Seats[i].RoundBet = 0
	}
	if s.Phase == PhaseShowdown {
		s.TurnSeat = NoSeat
		return
	}
	s.TurnSeat = firstToActSeat(*s)
}
