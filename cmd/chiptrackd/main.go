package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"chiptrack/internal/auth"
	"chiptrack/internal/gateway"
	"chiptrack/internal/lobby"
	"chiptrack/internal/store"
	"chiptrack/internal/wire"
)

func main() {
	_ = godotenv.Load()

	authService, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init auth service: %v", err)
	}
	defer authService.Close()

	st, storeMode, err := store.NewStoreFromEnv(os.Getenv("STORE_MODE"))
	if err != nil {
		log.Fatalf("[Server] Failed to init store: %v", err)
	}
	defer st.Close()

	var gw *gateway.Gateway
	lby := lobby.New(st, func(playerID string, env *wire.ServerEnvelope) {
		gw.Deliver(playerID, env)
	})
	defer lby.Stop()
	gw = gateway.New(lby, authService)

	authHTTP := auth.NewHTTPHandler(authService)
	roomsHTTP := newRoomsHandler(lby, authService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", gw.HandleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	authHTTP.RegisterRoutes(r)
	roomsHTTP.RegisterRoutes(r)

	addr := listenAddrFromEnv()
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[Server] Auth mode: %s", authMode)
		log.Printf("[Server] Store mode: %s", storeMode)
		log.Printf("[Server] Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Server] Failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("[Server] Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func listenAddrFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		return ":" + v
	}
	return ":8080"
}

// roomsHandler exposes room listing and creation over HTTP. Creation
// requires a valid session.
type roomsHandler struct {
	lobby *lobby.Lobby
	auth  auth.Service
}

type createRoomRequest struct {
	SmallBlind int64 `json:"small_blind"`
	BigBlind   int64 `json:"big_blind"`
}

type createRoomResponse struct {
	TableID  string `json:"table_id"`
	RoomCode string `json:"room_code"`
}

func newRoomsHandler(lby *lobby.Lobby, authService auth.Service) *roomsHandler {
	return &roomsHandler{lobby: lby, auth: authService}
}

func (h *roomsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/rooms", h.handleList)
	r.Post("/api/rooms", h.handleCreate)
}

func (h *roomsHandler) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.lobby.ListRooms())
}

func (h *roomsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.auth.ResolveSession(auth.BearerToken(r)); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	t, err := h.lobby.CreateRoom(req.SmallBlind, req.BigBlind)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{
		TableID:  t.ID,
		RoomCode: t.RoomCode,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
