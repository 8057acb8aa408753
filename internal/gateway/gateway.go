// Package gateway owns the websocket edge: one Connection per client,
// authenticated by session token at upgrade time, speaking the JSON
// envelopes defined in internal/wire.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chiptrack/engine"
	"chiptrack/internal/auth"
	"chiptrack/internal/lobby"
	"chiptrack/internal/table"
	"chiptrack/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins in production
	},
}

// Connection is one authenticated websocket client.
type Connection struct {
	ID       uint64
	PlayerID string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	mu      sync.Mutex
	tableID string
	table   *table.Table
}

// Gateway manages websocket connections and routes table broadcasts
// back to them.
type Gateway struct {
	mu          sync.RWMutex
	connections map[uint64]*Connection
	playerConns map[string]*Connection
	nextConnID  uint64
	seq         uint64

	lobby *lobby.Lobby
	auth  auth.Service
}

func New(lby *lobby.Lobby, authService auth.Service) *Gateway {
	return &Gateway{
		connections: make(map[uint64]*Connection),
		playerConns: make(map[string]*Connection),
		lobby:       lby,
		auth:        authService,
	}
}

// Deliver implements the broadcast callback handed to table actors.
func (g *Gateway) Deliver(playerID string, env *wire.ServerEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Gateway] marshal envelope failed: %v", err)
		return
	}

	g.mu.RLock()
	c := g.playerConns[playerID]
	g.mu.RUnlock()

	if c != nil {
		select {
		case c.Send <- data:
		default:
			// Slow consumer, drop the frame. The next snapshot
			// supersedes it anyway.
		}
	}
}

// HandleWebSocket upgrades the request after validating the session token.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player, ok := g.auth.ResolveSession(auth.BearerToken(r))
	if !ok {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	c := &Connection{
		ID:       atomic.AddUint64(&g.nextConnID, 1),
		PlayerID: player.ID,
		Username: player.Username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
	}

	g.mu.Lock()
	if old := g.playerConns[player.ID]; old != nil {
		// One connection per player. Closing the socket makes the
		// replaced connection's readPump exit and clean itself up;
		// Send is never closed, senders may still hold it.
		old.Conn.Close()
	}
	g.connections[c.ID] = c
	g.playerConns[player.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: player=%s conn=%d, total: %d", player.ID, c.ID, total)

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := wire.DecodeClient(data)
	if err != nil {
		c.sendError(0, err)
		return
	}

	switch env.Type {
	case wire.TypeJoinTable:
		c.handleJoinTable(env)
	case wire.TypeLeaveTable:
		c.handleLeaveTable(env)
	case wire.TypeTakeSeat:
		c.handleTakeSeat(env)
	case wire.TypeStartGame:
		c.submitSimple(env, table.EventStartGame)
	case wire.TypeNextHand:
		c.submitSimple(env, table.EventNextHand)
	case wire.TypeAction:
		c.handleAction(env)
	case wire.TypePing:
		c.sendEnvelope(wire.MustWrapServer(wire.TypePong, c.currentTableID(), c.Gateway.nextSeq(), nil))
	default:
		log.Printf("[Gateway] Unknown message type %q from player %s", env.Type, c.PlayerID)
	}
}

func (c *Connection) handleJoinTable(env *wire.ClientEnvelope) {
	var t *table.Table
	var err error
	if env.RoomCode != "" {
		t, err = c.Gateway.lobby.JoinByCode(env.RoomCode)
	} else if env.TableID != "" {
		if t = c.Gateway.lobby.GetTable(env.TableID); t == nil {
			err = lobby.ErrRoomNotFound
		}
	} else {
		t, err = c.Gateway.lobby.CreateRoom(0, 0)
	}
	if err != nil {
		c.sendError(env.Seq, err)
		return
	}

	if err := t.SubmitEvent(table.Event{
		Type:     table.EventJoin,
		PlayerID: c.PlayerID,
		Username: c.Username,
	}); err != nil {
		c.sendError(env.Seq, err)
		return
	}

	c.mu.Lock()
	c.tableID = t.ID
	c.table = t
	c.mu.Unlock()

	c.sendEnvelope(wire.MustWrapServer(wire.TypeJoined, t.ID, c.Gateway.nextSeq(), wire.JoinedPayload{
		TableID:  t.ID,
		RoomCode: t.RoomCode,
		PlayerID: c.PlayerID,
	}))
	log.Printf("[Gateway] Player %s joined table %s", c.PlayerID, t.ID)
}

func (c *Connection) handleLeaveTable(env *wire.ClientEnvelope) {
	t := c.currentTable()
	if t == nil {
		return
	}
	if err := t.SubmitEvent(table.Event{
		Type:     table.EventLeave,
		PlayerID: c.PlayerID,
	}); err != nil {
		c.sendError(env.Seq, err)
		return
	}
	c.mu.Lock()
	c.tableID = ""
	c.table = nil
	c.mu.Unlock()
}

func (c *Connection) handleTakeSeat(env *wire.ClientEnvelope) {
	t := c.currentTable()
	if t == nil {
		c.sendError(env.Seq, lobby.ErrRoomNotFound)
		return
	}
	req, err := wire.DecodeTakeSeatPayload(env)
	if err != nil {
		c.sendError(env.Seq, err)
		return
	}
	if err := t.SubmitEvent(table.Event{
		Type:     table.EventTakeSeat,
		PlayerID: c.PlayerID,
		SeatNo:   req.SeatNo,
		Amount:   req.BuyIn,
	}); err != nil {
		c.sendError(env.Seq, err)
	}
}

func (c *Connection) handleAction(env *wire.ClientEnvelope) {
	t := c.currentTable()
	if t == nil {
		c.sendError(env.Seq, lobby.ErrRoomNotFound)
		return
	}
	req, err := wire.DecodeActionPayload(env)
	if err != nil {
		c.sendError(env.Seq, err)
		return
	}
	if err := t.SubmitEvent(table.Event{
		Type:     table.EventAction,
		PlayerID: c.PlayerID,
		Action: engine.Action{
			Type:           req.Type,
			Amount:         req.Amount,
			TargetPlayerID: req.TargetPlayerID,
		},
	}); err != nil {
		c.sendError(env.Seq, err)
	}
}

func (c *Connection) submitSimple(env *wire.ClientEnvelope, eventType table.EventType) {
	t := c.currentTable()
	if t == nil {
		c.sendError(env.Seq, lobby.ErrRoomNotFound)
		return
	}
	if err := t.SubmitEvent(table.Event{
		Type:     eventType,
		PlayerID: c.PlayerID,
	}); err != nil {
		c.sendError(env.Seq, err)
	}
}

func (c *Connection) currentTable() *table.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table
}

func (c *Connection) currentTableID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID
}

func (c *Connection) sendError(clientSeq uint64, err error) {
	c.sendEnvelope(wire.ErrorEnvelope(c.currentTableID(), c.Gateway.nextSeq(), clientSeq, err))
}

func (c *Connection) sendEnvelope(env *wire.ServerEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Gateway] marshal envelope failed: %v", err)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	if g.playerConns[c.PlayerID] == c {
		delete(g.playerConns, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	if t := c.currentTable(); t != nil {
		_ = t.SubmitEvent(table.Event{
			Type:     table.EventConnLost,
			PlayerID: c.PlayerID,
		})
	}
	log.Printf("[Gateway] Client disconnected: player=%s conn=%d, total: %d", c.PlayerID, c.ID, total)
}

func (g *Gateway) nextSeq() uint64 {
	return atomic.AddUint64(&g.seq, 1)
}
