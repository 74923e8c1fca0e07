// Package realtime is the WebSocket fan-out of spec §4.7: per-(game,address)
// player rooms plus a per-game spectator room. Same Hub shape as the
// teacher's internal/api/websocket.go (mutex-guarded client set, buffered
// broadcast, write-deadline loop), generalized from one global room to
// many scoped rooms and single-connection-per-player takeover.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeDeadline = 5 * time.Second

// Message is any JSON-serializable frame; the `type` field is the wire
// discriminator from spec §6.
type Message map[string]interface{}

func typed(t string, fields Message) Message {
	out := Message{"type": t}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// client wraps one accepted connection and its send queue. Writes go
// through a per-connection goroutine so a slow client never blocks the Hub
// (spec §5: "any WebSocket send" is a suspension point, not shared state).
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	gameID int64

	mu       sync.Mutex
	address  string // empty for spectators
	closed   bool
}

func newClient(conn *websocket.Conn, gameID int64) *client {
	return &client{conn: conn, send: make(chan []byte, 64), gameID: gameID}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.Close()
}

func (c *client) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("[Realtime] dropping message to slow client (game %d)", c.gameID)
	}
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}

// gameRoom holds one game's player connections (keyed by address) and its
// spectator set.
type gameRoom struct {
	mu         sync.Mutex
	players    map[string]*client
	spectators map[*client]struct{}
}

func newGameRoom() *gameRoom {
	return &gameRoom{
		players:    make(map[string]*client),
		spectators: make(map[*client]struct{}),
	}
}

// Hub owns every game's rooms. One Hub per coordinator process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]*gameRoom
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int64]*gameRoom)}
}

func (h *Hub) roomFor(gameID int64) *gameRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[gameID]
	if !ok {
		r = newGameRoom()
		h.rooms[gameID] = r
	}
	return r
}

// Authenticator validates an auth frame and returns the player's current
// number and sub-phase, letting realtime stay free of store/coordinator
// imports (spec §9: no module-level singleton bridge; constructor-injected
// handles only).
type Authenticator interface {
	// Authenticate verifies the signed message and resolves the player.
	// ok=false means the connection should be rejected.
	Authenticate(gameID int64, address, signature, message string) (ok bool, playerNumber int, subPhase string)
}

// SpectatorInitProvider builds the one-shot snapshot frame a spectator
// connection receives right after joining its room, letting realtime stay
// free of store/coordinator imports the same way Authenticator does (spec
// §9).
type SpectatorInitProvider interface {
	// SpectatorInit resolves gameID's current phase/counters/leaderboard/
	// positions snapshot. ok=false means the game doesn't exist.
	SpectatorInit(gameID int64) (msg Message, ok bool)
}

// Serve upgrades an inbound request and runs the connection's lifecycle:
// wait for either an {type:"auth", ...} or {type:"spectate", ...} frame,
// then route it into the right room.
func (h *Hub) Serve(c *gin.Context, auth Authenticator, init SpectatorInitProvider) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Realtime] upgrade failed: %v", err)
		return
	}

	var frame struct {
		Type      string `json:"type"`
		GameID    int64  `json:"gameId"`
		Address   string `json:"address"`
		Signature string `json:"signature"`
		Message   string `json:"message"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		_ = conn.Close()
		return
	}

	switch frame.Type {
	case "auth":
		h.serveAuth(conn, auth, frame.GameID, frame.Address, frame.Signature, frame.Message)
	case "spectate":
		h.serveSpectate(conn, frame.GameID, init)
	default:
		_ = conn.Close()
	}
}

func (h *Hub) serveAuth(conn *websocket.Conn, auth Authenticator, gameID int64, address, signature, message string) {
	ok, playerNumber, subPhase := auth.Authenticate(gameID, address, signature, message)
	if !ok {
		_ = conn.WriteJSON(typed("error", Message{"message": "authentication failed"}))
		_ = conn.Close()
		return
	}

	c := newClient(conn, gameID)
	c.address = address
	go c.writeLoop()

	room := h.roomFor(gameID)
	room.mu.Lock()
	if prev, exists := room.players[address]; exists {
		code := uuid.NewString()
		prev.enqueue(mustJSON(typed("session:superseded", Message{"takeoverCode": code})))
		prev.close()
	}
	room.players[address] = c
	room.mu.Unlock()

	c.enqueue(mustJSON(typed("auth:success", Message{
		"address":      address,
		"playerNumber": playerNumber,
		"subPhase":     subPhase,
	})))

	h.readUntilClose(conn, func() { h.removePlayer(gameID, address, c) })
}

func (h *Hub) serveSpectate(conn *websocket.Conn, gameID int64, init SpectatorInitProvider) {
	c := newClient(conn, gameID)
	go c.writeLoop()

	room := h.roomFor(gameID)
	room.mu.Lock()
	room.spectators[c] = struct{}{}
	room.mu.Unlock()

	if init != nil {
		if msg, ok := init.SpectatorInit(gameID); ok {
			c.enqueue(mustJSON(typed("spectate:init", msg)))
		}
	}

	h.readUntilClose(conn, func() { h.removeSpectator(gameID, c) })
}

func (h *Hub) readUntilClose(conn *websocket.Conn, onClose func()) {
	defer onClose()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removePlayer(gameID int64, address string, c *client) {
	room := h.roomFor(gameID)
	room.mu.Lock()
	if room.players[address] == c {
		delete(room.players, address)
	}
	room.mu.Unlock()
	c.close()
}

func (h *Hub) removeSpectator(gameID int64, c *client) {
	room := h.roomFor(gameID)
	room.mu.Lock()
	delete(room.spectators, c)
	room.mu.Unlock()
	c.close()
}

// Broadcast sends msg to every player and spectator connection of gameID
// (spec §4.7 "broadcast(gameId, message)").
func (h *Hub) Broadcast(gameID int64, msgType string, fields Message) {
	payload := mustJSON(typed(msgType, fields))
	room := h.roomFor(gameID)
	room.mu.Lock()
	defer room.mu.Unlock()
	for _, p := range room.players {
		p.enqueue(payload)
	}
	for s := range room.spectators {
		s.enqueue(payload)
	}
}

// SendToPlayer sends msg only to address's connection, if any (spec §4.7
// "sendToPlayer(gameId, address, message)").
func (h *Hub) SendToPlayer(gameID int64, address, msgType string, fields Message) {
	payload := mustJSON(typed(msgType, fields))
	room := h.roomFor(gameID)
	room.mu.Lock()
	p, ok := room.players[address]
	room.mu.Unlock()
	if ok {
		p.enqueue(payload)
	}
}

// ConnectedPlayerCount reports how many authenticated player connections a
// game room currently holds, for metrics.
func (h *Hub) ConnectedPlayerCount(gameID int64) int {
	room := h.roomFor(gameID)
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.players)
}

func mustJSON(m Message) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		log.Printf("[Realtime] marshal error: %v", err)
		return []byte(`{"type":"error","message":"internal"}`)
	}
	return b
}
