package engine

// Apply is the single entry point of the state machine: it takes the current
// snapshot and one action and returns the successor snapshot, or a
// *Rejection explaining why the action is not legal. The input snapshot is
// never modified.
func Apply(s Snapshot, a Action) (Snapshot, error) {
	switch a.Type {
	case ActionFold:
		return applyFold(s, a)
	case ActionCheck:
		return applyCheck(s, a)
	case ActionCall:
		return applyCall(s, a)
	case ActionBet, ActionRaise:
		return applyBetRaise(s, a)
	case ActionSmallBlind:
		return applySmallBlind(s, a)
	case ActionBigBlind:
		return applyBigBlind(s, a)
	case ActionSitOut:
		return applySitOut(s, a)
	case ActionSitIn:
		return applySitIn(s, a)
	case ActionWin:
		return applyWin(s, a)
	default:
		return s, reject(RejectInvalidAction, "unsupported action type %q", a.Type)
	}
}

// requireTurn validates that the hand is in a bettable phase and that the
// action comes from the seat holding the turn.
func requireTurn(s Snapshot, playerID string) (*Seat, *Rejection) {
	if playerID == "" {
		return nil, reject(RejectInvalidAction, "missing player id")
	}
	if !bettingPhases[s.Phase] {
		return nil, reject(RejectInvalidActionPhase, "no betting actions in phase %s", s.Phase)
	}
	seat := s.seatByPlayer(playerID)
	if seat == nil {
		return nil, reject(RejectPlayerNotFound, "player %s not seated", playerID)
	}
	if s.TurnSeat == NoSeat || s.TurnSeat != seat.SeatNo {
		return nil, reject(RejectNotYourTurn, "seat %d does not hold the turn", seat.SeatNo)
	}
	return seat, nil
}

func applyFold(s Snapshot, a Action) (Snapshot, error) {
	if _, rej := requireTurn(s, a.PlayerID); rej != nil {
		return s, rej
	}

	next := s.clone()
	seat := next.seatByPlayer(a.PlayerID)
	seat.Folded = true
	next.record(ActionFold, a.PlayerID, 0)
	next.TurnSeat = nextActiveSeat(next.Seats, seat.SeatNo)

	// Last player standing takes the pot without a showdown.
	if contenders := next.contenders(); len(contenders) == 1 {
		awardPot(&next, contenders[0].PlayerID)
		return next, nil
	}

	advancePhaseIfClosed(&next)
	return next, nil
}

func applyCheck(s Snapshot, a Action) (Snapshot, error) {
	seat, rej := requireTurn(s, a.PlayerID)
	if rej != nil {
		return s, rej
	}
	if s.HighestBet != 0 && seat.RoundBet != s.HighestBet {
		return s, reject(RejectInvalidAction, "cannot check against a live bet of %d", s.HighestBet)
	}

	next := s.clone()
	next.record(ActionCheck, a.PlayerID, 0)
	next.TurnSeat = nextActiveSeat(next.Seats, seat.SeatNo)
	advancePhaseIfClosed(&next)
	return next, nil
}

func applyCall(s Snapshot, a Action) (Snapshot, error) {
	seat, rej := requireTurn(s, a.PlayerID)
	if rej != nil {
		return s, rej
	}
	delta := s.HighestBet - seat.RoundBet
	if delta < 0 {
		delta = 0
	}
	if delta > seat.Chips {
		return s, reject(RejectInsufficientFunds, "call of %d exceeds stack %d", delta, seat.Chips)
	}

	next := s.clone()
	called := next.seatByPlayer(a.PlayerID)
	called.Chips -= delta
	called.RoundBet = next.HighestBet
	refreshActive(called)
	next.Pot += delta
	next.record(ActionCall, a.PlayerID, delta)
	next.TurnSeat = nextActiveSeat(next.Seats, called.SeatNo)
	advancePhaseIfClosed(&next)
	return next, nil
}

func applyBetRaise(s Snapshot, a Action) (Snapshot, error) {
	seat, rej := requireTurn(s, a.PlayerID)
	if rej != nil {
		return s, rej
	}
	if a.Amount < s.HighestBet+s.MinRaise {
		return s, reject(RejectInvalidBetAmount, "amount %d below minimum %d", a.Amount, s.HighestBet+s.MinRaise)
	}
	delta := a.Amount - seat.RoundBet
	if delta > seat.Chips {
		return s, reject(RejectInsufficientFunds, "raise to %d exceeds stack %d", a.Amount, seat.Chips)
	}

	next := s.clone()
	raiser := next.seatByPlayer(a.PlayerID)
	raiser.Chips -= delta
	raiser.RoundBet = a.Amount
	refreshActive(raiser)
	next.Pot += delta
	next.MinRaise = a.Amount - next.HighestBet
	next.HighestBet = a.Amount
	next.record(a.Type, a.PlayerID, a.Amount)
	next.TurnSeat = nextActiveSeat(next.Seats, raiser.SeatNo)
	advancePhaseIfClosed(&next)
	return next, nil
}

func applySmallBlind(s Snapshot, a Action) (Snapshot, error) {
	if a.PlayerID == "" {
		return s, reject(RejectInvalidAction, "missing player id")
	}
	if s.Phase != PhaseSetup {
		return s, reject(RejectInvalidActionPhase, "blinds are posted during %s, not %s", PhaseSetup, s.Phase)
	}
	if s.HighestBet != 0 {
		return s, reject(RejectInvalidAction, "small blind already posted")
	}
	seat := s.seatByPlayer(a.PlayerID)
	if seat == nil {
		return s, reject(RejectPlayerNotFound, "player %s not seated", a.PlayerID)
	}
	sb := smallBlindSeat(s)
	if sb == NoSeat || seat.SeatNo != sb {
		return s, reject(RejectNotYourTurn, "seat %d is not the small blind", seat.SeatNo)
	}
	if s.SmallBlind > seat.Chips {
		return s, reject(RejectInsufficientFunds, "small blind of %d exceeds stack %d", s.SmallBlind, seat.Chips)
	}

	next := s.clone()
	poster := next.seatByPlayer(a.PlayerID)
	poster.Chips -= next.SmallBlind
	poster.RoundBet = next.SmallBlind
	refreshActive(poster)
	next.Pot += next.SmallBlind
	next.HighestBet = next.SmallBlind
	next.record(ActionSmallBlind, a.PlayerID, next.SmallBlind)
	next.TurnSeat = bigBlindSeat(next, sb)
	return next, nil
}

func applyBigBlind(s Snapshot, a Action) (Snapshot, error) {
	if a.PlayerID == "" {
		return s, reject(RejectInvalidAction, "missing player id")
	}
	if s.Phase != PhaseSetup {
		return s, reject(RejectInvalidActionPhase, "blinds are posted during %s, not %s", PhaseSetup, s.Phase)
	}
	seat := s.seatByPlayer(a.PlayerID)
	if seat == nil {
		return s, reject(RejectPlayerNotFound, "player %s not seated", a.PlayerID)
	}
	bb := bigBlindSeat(s, smallBlindSeat(s))
	if bb == NoSeat || seat.SeatNo != bb {
		return s, reject(RejectNotYourTurn, "seat %d is not the big blind", seat.SeatNo)
	}
	if s.BigBlind > seat.Chips {
		return s, reject(RejectInsufficientFunds, "big blind of %d exceeds stack %d", s.BigBlind, seat.Chips)
	}

	next := s.clone()
	poster := next.seatByPlayer(a.PlayerID)
	poster.Chips -= next.BigBlind
	poster.RoundBet = next.BigBlind
	refreshActive(poster)
	next.Pot += next.BigBlind
	next.HighestBet = next.BigBlind
	next.MinRaise = next.BigBlind
	next.record(ActionBigBlind, a.PlayerID, next.BigBlind)
	next.Phase = PhasePreflop
	next.TurnSeat = firstToActSeat(next)
	return next, nil
}

func applySitOut(s Snapshot, a Action) (Snapshot, error) {
	seat := s.seatByPlayer(a.PlayerID)
	if seat == nil {
		return s, reject(RejectPlayerNotFound, "player %s not seated", a.PlayerID)
	}

	next := s.clone()
	out := next.seatByPlayer(a.PlayerID)
	out.SittingOut = true
	refreshActive(out)
	next.record(ActionSitOut, a.PlayerID, 0)
	if next.TurnSeat == out.SeatNo {
		next.TurnSeat = nextActiveSeat(next.Seats, out.SeatNo)
	}
	return next, nil
}

func applySitIn(s Snapshot, a Action) (Snapshot, error) {
	seat := s.seatByPlayer(a.PlayerID)
	if seat == nil {
		return s, reject(RejectPlayerNotFound, "player %s not seated", a.PlayerID)
	}

	next := s.clone()
	in := next.seatByPlayer(a.PlayerID)
	in.SittingOut = false
	refreshActive(in)
	next.record(ActionSitIn, a.PlayerID, 0)
	return next, nil
}

func applyWin(s Snapshot, a Action) (Snapshot, error) {
	target := a.TargetPlayerID
	if target == "" {
		target = a.PlayerID
	}
	if s.seatByPlayer(target) == nil {
		return s, reject(RejectPlayerNotFound, "winner %s not seated", target)
	}

	next := s.clone()
	awardPot(&next, target)
	return next, nil
}

// awardPot moves the whole pot to the winner and closes the hand: HAND_OVER
// when at least two occupants still hold chips, otherwise the terminal
// GAMEOVER state.
func awardPot(s *Snapshot, winnerID string) {
	winner := s.seatByPlayer(winnerID)
	winner.Chips += s.Pot
	refreshActive(winner)
	s.record(ActionWin, winnerID, s.Pot)
	s.Pot = 0

	funded := 0
	for _, seat := range s.Seats {
		if seat.Chips > 0 {
			funded++
		}
	}
	if funded <= 1 {
		s.Phase = PhaseGameOver
		s.TurnSeat = NoSeat
		s.DealerSeat = NoSeat
		return
	}
	s.Phase = PhaseHandOver
	s.TurnSeat = NoSeat
	s.HighestBet = 0
	s.MinRaise = s.BigBlind
}
