package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTableWithPlayers seats n players at seats 1..n and starts the game, so
// the dealer is seat 1 and the turn waits on the small blind.
func newTableWithPlayers(t *testing.T, sb, bb int64, stacks ...int64) Snapshot {
	t.Helper()
	s := NewTable("tbl", "ROOM", sb, bb)
	var err error
	for i, chips := range stacks {
		s, err = AddPlayer(s, playerID(i+1), "", i+1, chips)
		require.NoError(t, err)
	}
	s, err = StartGame(s)
	require.NoError(t, err)
	return s
}

func mustApply(t *testing.T, s Snapshot, a Action) Snapshot {
	t.Helper()
	next, err := Apply(s, a)
	require.NoError(t, err, "action %s by %s", a.Type, a.PlayerID)
	return next
}

func chipsInPlay(s Snapshot) int64 {
	total := s.Pot
	for _, seat := range s.Seats {
		total += seat.Chips
	}
	return total
}

func TestApply_BlindsCallsAndBigBlindCheckAdvanceToFlop(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	require.Equal(t, 1, s.DealerSeat)
	require.Equal(t, 2, s.TurnSeat, "turn opens on the small blind")

	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	assert.EqualValues(t, 5, s.Pot)
	assert.EqualValues(t, 5, s.HighestBet)
	assert.Equal(t, 3, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	assert.EqualValues(t, 15, s.Pot)
	assert.EqualValues(t, 10, s.HighestBet)
	assert.EqualValues(t, 10, s.MinRaise)
	assert.Equal(t, PhasePreflop, s.Phase)
	assert.Equal(t, 1, s.TurnSeat, "preflop opens after the big blind")

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p1"})
	assert.EqualValues(t, 990, s.seatByPlayer("p1").Chips)
	assert.EqualValues(t, 25, s.Pot)
	assert.Equal(t, 2, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p2"})
	assert.EqualValues(t, 990, s.seatByPlayer("p2").Chips)
	assert.EqualValues(t, 30, s.Pot)
	assert.Equal(t, 3, s.TurnSeat)
	assert.Equal(t, PhasePreflop, s.Phase, "big blind still holds the option")

	s = mustApply(t, s, Action{Type: ActionCheck, PlayerID: "p3"})
	assert.Equal(t, PhaseFlop, s.Phase)
	assert.EqualValues(t, 0, s.HighestBet)
	assert.EqualValues(t, 10, s.MinRaise)
	assert.Equal(t, 2, s.TurnSeat, "flop opens on the seat after the dealer")
	for _, seat := range s.Seats {
		assert.EqualValues(t, 0, seat.RoundBet)
	}
	assert.EqualValues(t, 3000, chipsInPlay(s), "chips are conserved")
}

func TestApply_WrongTurnLeavesSnapshotUntouched(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})

	// Turn is on seat 1; seat 2 talking out of turn is refused as data.
	got, err := Apply(s, Action{Type: ActionCall, PlayerID: "p2"})
	require.Error(t, err)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectNotYourTurn, rej.Kind)
	assert.Equal(t, s, got, "rejected action must not change the snapshot")
}

func TestApply_CheckAgainstLiveBetRejected(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})

	_, err := Apply(s, Action{Type: ActionCheck, PlayerID: "p1"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidAction, rej.Kind)
}

func TestApply_RaiseBelowMinimumRejected(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})

	_, err := Apply(s, Action{Type: ActionRaise, PlayerID: "p1", Amount: 15})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidBetAmount, rej.Kind)
}

func TestApply_CallWithoutChipsRejectedNotClamped(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 8)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})

	// Seat 3 cannot cover the big blind.
	_, err := Apply(s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInsufficientFunds, rej.Kind)
	assert.EqualValues(t, 8, s.seatByPlayer("p3").Chips, "no partial deduction")
}

func TestApply_RaiseUpdatesMinRaiseAndReopensAction(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})

	s = mustApply(t, s, Action{Type: ActionRaise, PlayerID: "p1", Amount: 30})
	assert.EqualValues(t, 30, s.HighestBet)
	assert.EqualValues(t, 20, s.MinRaise, "min raise is the raise delta")
	assert.EqualValues(t, 970, s.seatByPlayer("p1").Chips)
	assert.EqualValues(t, 45, s.Pot)

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p3"})
	assert.Equal(t, PhaseFlop, s.Phase, "round closes when the turn returns to the raiser")
	assert.EqualValues(t, 90, s.Pot)
}

func TestApply_FoldFromMiddleSeatPassesTurnClockwise(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	s = mustApply(t, s, Action{Type: ActionRaise, PlayerID: "p1", Amount: 30})
	require.Equal(t, 2, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionFold, PlayerID: "p2"})
	assert.Equal(t, 3, s.TurnSeat, "turn continues past the folder, not back to the lowest seat")
}

func TestApply_SitOutOnOwnTurnPassesTurnClockwise(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p1"})
	require.Equal(t, 2, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionSitOut, PlayerID: "p2"})
	assert.Equal(t, 3, s.TurnSeat, "turn continues past the seat that sat out")
}

func TestApply_BigBlindKeepsOptionAfterAllInCall(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 10, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})

	// Seat 1 calls for its whole stack, dropping out of the turn
	// rotation and out of blind eligibility.
	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p1"})
	assert.EqualValues(t, 0, s.seatByPlayer("p1").Chips)
	assert.False(t, s.seatByPlayer("p1").Active)

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p2"})
	assert.Equal(t, PhasePreflop, s.Phase, "the posted big blind still holds the option")
	assert.Equal(t, 3, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionCheck, PlayerID: "p3"})
	assert.Equal(t, PhaseFlop, s.Phase)
}

func TestApply_BlindsOnlyDuringSetup(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})

	// A second small blind before the big blind is refused.
	_, err := Apply(s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidAction, rej.Kind)

	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	require.Equal(t, PhasePreflop, s.Phase)

	for _, blind := range []ActionType{ActionSmallBlind, ActionBigBlind} {
		_, err := Apply(s, Action{Type: blind, PlayerID: "p2"})
		rej, ok := AsRejection(err)
		require.True(t, ok, "%s after setup must be rejected", blind)
		assert.Equal(t, RejectInvalidActionPhase, rej.Kind)
	}
}

func TestApply_FoldOutAwardsPotAutomatically(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	s = mustApply(t, s, Action{Type: ActionRaise, PlayerID: "p1", Amount: 30})

	s = mustApply(t, s, Action{Type: ActionFold, PlayerID: "p2"})
	assert.Equal(t, PhasePreflop, s.Phase, "one fold leaves two contenders")

	s = mustApply(t, s, Action{Type: ActionFold, PlayerID: "p3"})
	assert.Equal(t, PhaseHandOver, s.Phase)
	assert.EqualValues(t, 0, s.Pot)
	assert.EqualValues(t, 1015, s.seatByPlayer("p1").Chips, "raiser collects blinds")
	assert.Equal(t, NoSeat, s.TurnSeat)
	require.NotNil(t, s.LastAction)
	assert.Equal(t, ActionWin, s.LastAction.Type)
	assert.EqualValues(t, 3000, chipsInPlay(s))
}

func TestApply_HeadsUpRunsToShowdownAndManualWin(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000)
	require.Equal(t, 1, s.DealerSeat)
	require.Equal(t, 1, s.TurnSeat, "heads-up dealer posts the small blind")

	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p1"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p2"})
	require.Equal(t, 1, s.TurnSeat, "heads-up small blind opens preflop")

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p1"})
	require.Equal(t, PhasePreflop, s.Phase, "big blind option keeps the round open")
	s = mustApply(t, s, Action{Type: ActionCheck, PlayerID: "p2"})
	require.Equal(t, PhaseFlop, s.Phase)

	for _, want := range []Phase{PhaseTurn, PhaseRiver, PhaseShowdown} {
		require.Equal(t, 2, s.TurnSeat, "big blind opens postflop streets")
		s = mustApply(t, s, Action{Type: ActionCheck, PlayerID: "p2"})
		s = mustApply(t, s, Action{Type: ActionCheck, PlayerID: "p1"})
		require.Equal(t, want, s.Phase)
	}
	require.Equal(t, NoSeat, s.TurnSeat)

	// No action plays at showdown; the winner is declared externally.
	_, err := Apply(s, Action{Type: ActionCheck, PlayerID: "p1"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidActionPhase, rej.Kind)

	s, err = DeclareWinner(s, "p2")
	require.NoError(t, err)
	assert.Equal(t, PhaseHandOver, s.Phase)
	assert.EqualValues(t, 1010, s.seatByPlayer("p2").Chips)
	assert.EqualValues(t, 990, s.seatByPlayer("p1").Chips)
}

func TestApply_AllInForcesGameOverAfterWin(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 100, 100)

	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p1"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionRaise, PlayerID: "p1", Amount: 100})
	assert.EqualValues(t, 0, s.seatByPlayer("p1").Chips)
	assert.False(t, s.seatByPlayer("p1").Active, "all-in seat leaves turn rotation")

	s = mustApply(t, s, Action{Type: ActionCall, PlayerID: "p2"})
	assert.EqualValues(t, 200, s.Pot)
	assert.Equal(t, NoSeat, s.TurnSeat, "nobody left to act")

	s, err := DeclareWinner(s, "p2")
	require.NoError(t, err)
	assert.Equal(t, PhaseGameOver, s.Phase)
	assert.Equal(t, NoSeat, s.TurnSeat)
	assert.Equal(t, NoSeat, s.DealerSeat)
	assert.EqualValues(t, 200, s.seatByPlayer("p2").Chips)
}

func TestApply_WinTargetMustExist(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000)
	_, err := Apply(s, Action{Type: ActionWin, TargetPlayerID: "ghost"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectPlayerNotFound, rej.Kind)
}

func TestApply_SitOutAdvancesTurnAndSitInRestores(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000, 1000)
	s = mustApply(t, s, Action{Type: ActionSmallBlind, PlayerID: "p2"})
	s = mustApply(t, s, Action{Type: ActionBigBlind, PlayerID: "p3"})
	require.Equal(t, 1, s.TurnSeat)

	s = mustApply(t, s, Action{Type: ActionSitOut, PlayerID: "p1"})
	assert.True(t, s.seatByPlayer("p1").SittingOut)
	assert.Equal(t, 2, s.TurnSeat, "turn moves off the seat that sat out")

	s = mustApply(t, s, Action{Type: ActionSitIn, PlayerID: "p1"})
	assert.False(t, s.seatByPlayer("p1").SittingOut)
	assert.True(t, s.seatByPlayer("p1").Active)
}

func TestApply_UnknownActionType(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 1000, 1000)
	_, err := Apply(s, Action{Type: "DANCE", PlayerID: "p1"})
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectInvalidAction, rej.Kind)
}

func TestApply_ChipsConservedAcrossFullHand(t *testing.T) {
	s := newTableWithPlayers(t, 5, 10, 500, 700, 900)
	actions := []Action{
		{Type: ActionSmallBlind, PlayerID: "p2"},
		{Type: ActionBigBlind, PlayerID: "p3"},
		{Type: ActionRaise, PlayerID: "p1", Amount: 40},
		{Type: ActionCall, PlayerID: "p2"},
		{Type: ActionFold, PlayerID: "p3"},
		{Type: ActionBet, PlayerID: "p2", Amount: 60},
		{Type: ActionCall, PlayerID: "p1"},
	}
	for _, a := range actions {
		s = mustApply(t, s, a)
		assert.EqualValues(t, 2100, chipsInPlay(s), "after %s", a.Type)
	}
	s, err := DeclareWinner(s, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2100, chipsInPlay(s))
	assert.EqualValues(t, 0, s.Pot)
}
