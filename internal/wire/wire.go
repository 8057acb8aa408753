// Package wire defines the JSON message envelopes exchanged between
// clients and the server over the websocket connection.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"chiptrack/engine"
)

// Client -> server message types.
const (
	TypeJoinTable  = "join_table"
	TypeLeaveTable = "leave_table"
	TypeTakeSeat   = "take_seat"
	TypeStartGame  = "start_game"
	TypeNextHand   = "next_hand"
	TypeAction     = "action"
	TypePing       = "ping"
)

// Server -> client message types.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
	TypeJoined   = "joined"
	TypeLeft     = "left"
	TypePong     = "pong"
)

// ClientEnvelope is the outer frame of every client message. Payload is
// decoded according to Type.
type ClientEnvelope struct {
	Type     string          `json:"type"`
	TableID  string          `json:"table_id,omitempty"`
	RoomCode string          `json:"room_code,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ServerEnvelope is the outer frame of every server message.
type ServerEnvelope struct {
	Type       string          `json:"type"`
	TableID    string          `json:"table_id,omitempty"`
	ServerSeq  uint64          `json:"server_seq"`
	ServerTsMs int64           `json:"server_ts_ms"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// TakeSeatPayload asks for a specific seat with a buy-in amount.
type TakeSeatPayload struct {
	SeatNo int   `json:"seat_no"`
	BuyIn  int64 `json:"buy_in"`
}

// ActionPayload carries a table action from the acting player. The
// player identity comes from the authenticated connection, not the
// payload.
type ActionPayload struct {
	Type           engine.ActionType `json:"type"`
	Amount         int64             `json:"amount,omitempty"`
	TargetPlayerID string            `json:"target_player_id,omitempty"`
}

// ErrorPayload reports a rejected request back to the sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     uint64 `json:"seq,omitempty"`
}

// JoinedPayload confirms table membership and tells the client who it is.
type JoinedPayload struct {
	TableID  string `json:"table_id"`
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

// SnapshotPayload is the full table state pushed after every accepted
// action. Clients render from this alone.
type SnapshotPayload struct {
	Snapshot *engine.Snapshot `json:"snapshot"`
}

// WrapServer builds a ServerEnvelope around an already-typed payload.
func WrapServer(msgType, tableID string, serverSeq uint64, payload interface{}) (*ServerEnvelope, error) {
	env := &ServerEnvelope{
		Type:       msgType,
		TableID:    tableID,
		ServerSeq:  serverSeq,
		ServerTsMs: time.Now().UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("wire: marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// MustWrapServer is WrapServer for payloads that cannot fail to marshal.
func MustWrapServer(msgType, tableID string, serverSeq uint64, payload interface{}) *ServerEnvelope {
	env, err := WrapServer(msgType, tableID, serverSeq, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// ErrorEnvelope wraps an engine rejection (or any error) for the client.
// Rejections keep their kind as the error code; everything else maps to
// INTERNAL_ERROR.
func ErrorEnvelope(tableID string, serverSeq uint64, clientSeq uint64, err error) *ServerEnvelope {
	code := string(engine.RejectInternal)
	if rej, ok := engine.AsRejection(err); ok {
		code = string(rej.Kind)
	}
	return MustWrapServer(TypeError, tableID, serverSeq, ErrorPayload{
		Code:    code,
		Message: err.Error(),
		Seq:     clientSeq,
	})
}

// SnapshotEnvelope wraps a table snapshot for broadcast.
func SnapshotEnvelope(tableID string, serverSeq uint64, snap *engine.Snapshot) *ServerEnvelope {
	return MustWrapServer(TypeSnapshot, tableID, serverSeq, SnapshotPayload{Snapshot: snap})
}

// DecodeClient parses a raw client frame.
func DecodeClient(data []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: decode client envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("wire: client envelope missing type")
	}
	return &env, nil
}

// DecodeActionPayload parses the payload of a TypeAction envelope.
func DecodeActionPayload(env *ClientEnvelope) (*ActionPayload, error) {
	var p ActionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("wire: decode action payload: %w", err)
	}
	return &p, nil
}

// DecodeTakeSeatPayload parses the payload of a TypeTakeSeat envelope.
func DecodeTakeSeatPayload(env *ClientEnvelope) (*TakeSeatPayload, error) {
	var p TakeSeatPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("wire: decode take_seat payload: %w", err)
	}
	return &p, nil
}
