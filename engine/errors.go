package engine

import (
	"errors"
	"fmt"
)

// RejectKind classifies why an action was refused. Rejections are data, not
// crashes: the table state referenced by the call is left untouched.
type RejectKind string

const (
	RejectInvalidAction      RejectKind = "INVALID_ACTION"
	RejectNotYourTurn        RejectKind = "NOT_YOUR_TURN"
	RejectPlayerNotFound     RejectKind = "PLAYER_NOT_FOUND"
	RejectInsufficientFunds  RejectKind = "INSUFFICIENT_FUNDS"
	RejectInvalidBetAmount   RejectKind = "INVALID_BET_AMOUNT"
	RejectInvalidActionPhase RejectKind = "INVALID_ACTION_PHASE"
	RejectNotEnoughPlayers   RejectKind = "NOT_ENOUGH_PLAYERS"
	RejectInternal           RejectKind = "INTERNAL_ERROR"
)

// Rejection is the structured refusal returned by every engine operation.
type Rejection struct {
	Kind    RejectKind
	Message string
}

func (r *Rejection) Error() string {
	return string(r.Kind) + ": " + r.Message
}

func reject(kind RejectKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection when the engine produced it.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
