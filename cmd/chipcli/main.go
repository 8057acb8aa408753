package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"chiptrack/engine"
	"chiptrack/internal/wire"
)

type session struct {
	serverURL    string
	playerID     string
	username     string
	sessionToken string

	conn *websocket.Conn
	seq  uint64

	mu   sync.Mutex
	last *engine.Snapshot
}

func main() {
	serverFlag := flag.String("server", "http://localhost:8080", "chiptrackd base URL")
	flag.Parse()

	title, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Chip", pterm.FgLightGreen.ToStyle()),
		putils.LettersFromStringWithStyle("Track", pterm.FgDarkGray.ToStyle()),
	).Srender()
	if err == nil {
		pterm.Print(title)
	}

	s := &session{serverURL: strings.TrimRight(*serverFlag, "/")}

	if err := s.authenticate(); err != nil {
		pterm.Error.Printfln("Authentication failed: %v", err)
		os.Exit(1)
	}
	pterm.Success.Printfln("Logged in as %s", s.username)

	if err := s.connect(); err != nil {
		pterm.Error.Printfln("Connection failed: %v", err)
		os.Exit(1)
	}
	defer s.conn.Close()

	go s.readLoop()

	if err := s.joinRoom(); err != nil {
		pterm.Error.Printfln("Join failed: %v", err)
		os.Exit(1)
	}

	s.commandLoop()
}

func (s *session) authenticate() error {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"login", "register"}).
		Show("Account")
	username, _ := pterm.DefaultInteractiveTextInput.Show("Username")
	password, _ := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")

	path := "/api/auth/login"
	if choice == "register" {
		path = "/api/auth/register"
	}

	body, _ := json.Marshal(map[string]string{
		"username": strings.TrimSpace(username),
		"password": password,
	})
	resp, err := http.Post(s.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var auth struct {
		PlayerID     string `json:"player_id"`
		Username     string `json:"username"`
		SessionToken string `json:"session_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return err
	}
	s.playerID = auth.PlayerID
	s.username = auth.Username
	s.sessionToken = auth.SessionToken
	return nil
}

func (s *session) connect() error {
	u, err := url.Parse(s.serverURL)
	if err != nil {
		return err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws?token=%s", scheme, u.Host, url.QueryEscape(s.sessionToken))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *session) joinRoom() error {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"create room", "join by code"}).
		Show("Room")

	env := wire.ClientEnvelope{Type: wire.TypeJoinTable, Seq: s.nextSeq()}
	if choice == "join by code" {
		code, _ := pterm.DefaultInteractiveTextInput.Show("Room code")
		env.RoomCode = strings.ToUpper(strings.TrimSpace(code))
	}
	return s.send(env)
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			pterm.Error.Printfln("Connection closed: %v", err)
			os.Exit(1)
		}

		var env wire.ServerEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case wire.TypeJoined:
			var p wire.JoinedPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				pterm.Success.Printfln("Joined room %s", p.RoomCode)
			}
		case wire.TypeSnapshot:
			var p wire.SnapshotPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil && p.Snapshot != nil {
				s.mu.Lock()
				s.last = p.Snapshot
				s.mu.Unlock()
				renderSnapshot(p.Snapshot, s.playerID)
			}
		case wire.TypeError:
			var p wire.ErrorPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				pterm.Warning.Printfln("%s: %s", p.Code, p.Message)
			}
		}
	}
}

func (s *session) commandLoop() {
	pterm.Info.Println("Commands: seat <no> <buyin>, start, sb, bb, fold, check, call, bet <n>, raise <n>, win <player>, sitout, sitin, next, leave, quit")

	for {
		line, _ := pterm.DefaultInteractiveTextInput.Show(">")
		fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "leave":
			_ = s.send(wire.ClientEnvelope{Type: wire.TypeLeaveTable, Seq: s.nextSeq()})
		case "start":
			_ = s.send(wire.ClientEnvelope{Type: wire.TypeStartGame, Seq: s.nextSeq()})
		case "next":
			_ = s.send(wire.ClientEnvelope{Type: wire.TypeNextHand, Seq: s.nextSeq()})
		case "seat":
			if len(fields) < 3 {
				pterm.Warning.Println("usage: seat <no> <buyin>")
				continue
			}
			seatNo, _ := strconv.Atoi(fields[1])
			buyIn, _ := strconv.ParseInt(fields[2], 10, 64)
			s.sendPayload(wire.TypeTakeSeat, wire.TakeSeatPayload{SeatNo: seatNo, BuyIn: buyIn})
		case "fold":
			s.sendAction(engine.ActionFold, 0, "")
		case "check":
			s.sendAction(engine.ActionCheck, 0, "")
		case "call":
			s.sendAction(engine.ActionCall, 0, "")
		case "sb":
			s.sendAction(engine.ActionSmallBlind, 0, "")
		case "bb":
			s.sendAction(engine.ActionBigBlind, 0, "")
		case "bet":
			s.sendAmountAction(engine.ActionBet, fields)
		case "raise":
			s.sendAmountAction(engine.ActionRaise, fields)
		case "win":
			if len(fields) < 2 {
				pterm.Warning.Println("usage: win <seat|name>")
				continue
			}
			target, ok := s.resolveWinner(fields[1])
			if !ok {
				pterm.Warning.Printfln("no seated player matching %q", fields[1])
				continue
			}
			s.sendAction(engine.ActionWin, 0, target)
		case "sitout":
			s.sendAction(engine.ActionSitOut, 0, "")
		case "sitin":
			s.sendAction(engine.ActionSitIn, 0, "")
		default:
			pterm.Warning.Printfln("unknown command %q", fields[0])
		}

		// Give the server response a moment to render before the
		// next prompt overwrites the line.
		time.Sleep(150 * time.Millisecond)
	}
}

// resolveWinner maps a seat number or player name from the latest
// snapshot to a player ID.
func (s *session) resolveWinner(arg string) (string, bool) {
	s.mu.Lock()
	snap := s.last
	s.mu.Unlock()
	if snap == nil {
		return "", false
	}

	if seatNo, err := strconv.Atoi(arg); err == nil {
		for _, seat := range snap.Seats {
			if seat.SeatNo == seatNo {
				return seat.PlayerID, true
			}
		}
		return "", false
	}
	for _, seat := range snap.Seats {
		if strings.EqualFold(seat.Name, arg) {
			return seat.PlayerID, true
		}
	}
	return "", false
}

func (s *session) sendAmountAction(t engine.ActionType, fields []string) {
	if len(fields) < 2 {
		pterm.Warning.Printfln("usage: %s <amount>", strings.ToLower(string(t)))
		return
	}
	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || amount <= 0 {
		pterm.Warning.Println("amount must be a positive number")
		return
	}
	s.sendAction(t, amount, "")
}

func (s *session) sendAction(t engine.ActionType, amount int64, target string) {
	s.sendPayload(wire.TypeAction, wire.ActionPayload{
		Type:           t,
		Amount:         amount,
		TargetPlayerID: target,
	})
}

func (s *session) sendPayload(msgType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		pterm.Error.Printfln("encode payload: %v", err)
		return
	}
	_ = s.send(wire.ClientEnvelope{
		Type:    msgType,
		Seq:     s.nextSeq(),
		Payload: raw,
	})
}

func (s *session) send(env wire.ClientEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) nextSeq() uint64 {
	s.seq++
	return s.seq
}
