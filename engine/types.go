package engine

// NoSeat marks an unassigned seat pointer (turn, dealer, blind positions).
const NoSeat = -1

// Phase is the betting-round state of a hand.
type Phase string

const (
	PhaseSetup    Phase = "SETUP"
	PhasePreflop  Phase = "PREFLOP"
	PhaseFlop     Phase = "FLOP"
	PhaseTurn     Phase = "TURN"
	PhaseRiver    Phase = "RIVER"
	PhaseShowdown Phase = "SHOWDOWN"
	PhaseHandOver Phase = "HAND_OVER"
	PhaseGameOver Phase = "GAMEOVER"
)

// ActionType enumerates every transition the engine accepts.
type ActionType string

const (
	ActionFold       ActionType = "FOLD"
	ActionCheck      ActionType = "CHECK"
	ActionCall       ActionType = "CALL"
	ActionBet        ActionType = "BET"
	ActionRaise      ActionType = "RAISE"
	ActionSmallBlind ActionType = "SMALL_BLIND"
	ActionBigBlind   ActionType = "BIG_BLIND"
	ActionWin        ActionType = "WIN"
	ActionSitOut     ActionType = "SIT_OUT"
	ActionSitIn      ActionType = "SIT_IN"
)

// Action is the tagged input record for Apply.
type Action struct {
	Type           ActionType `json:"type"`
	PlayerID       string     `json:"player_id,omitempty"`
	Amount         int64      `json:"amount,omitempty"`
	TargetPlayerID string     `json:"target_player_id,omitempty"`
}

// bettingPhases are the phases in which seat-turn betting actions are legal.
var bettingPhases = map[Phase]bool{
	PhaseSetup:   true,
	PhasePreflop: true,
	PhaseFlop:    true,
	PhaseTurn:    true,
	PhaseRiver:   true,
}

func nextPhase(p Phase) Phase {
	switch p {
	case PhasePreflop:
		return PhaseFlop
	case PhaseFlop:
		return PhaseTurn
	case PhaseTurn:
		return PhaseRiver
	case PhaseRiver:
		return PhaseShowdown
	default:
		return p
	}
}
