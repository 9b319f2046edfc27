// Package ws pushes realtime events to connected clients over
// WebSocket.
package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types pushed to clients.
const (
	EventWalletUpdate     = "WALLET_UPDATE"
	EventBattleUpdate     = "BATTLE_UPDATE"
	EventTournamentUpdate = "TOURNAMENT_UPDATE"
	EventDepositUpdate    = "DEPOSIT_UPDATE"
	EventWithdrawalUpdate = "WITHDRAWAL_UPDATE"
	EventPong             = "PONG"
)

// Message is one event pushed to a client. UserID zero means
// broadcast to everyone.
type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id,omitempty"`
	Data   any    `json:"data"`
}

// Client is one connected user.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
}

// Hub fans events out to connected clients. All connection map access
// happens on the run goroutine, so no locking is needed.
type Hub struct {
	clients    map[int64]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	events     chan *Message
}

// NewHub creates a hub and starts its dispatch goroutine.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[int64]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *Message, 256),
	}
	go h.run()
	return h
}

// Register attaches a client connection.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister detaches a client connection.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// SendToUser pushes an event to one user if they are connected.
func (h *Hub) SendToUser(userID int64, eventType string, data any) {
	h.enqueue(&Message{Type: eventType, UserID: userID, Data: data})
}

// Broadcast pushes an event to every connected client.
func (h *Hub) Broadcast(eventType string, data any) {
	h.enqueue(&Message{Type: eventType, Data: data})
}

// enqueue drops the event if the queue is full rather than stalling a
// money flow on a slow socket.
func (h *Hub) enqueue(msg *Message) {
	select {
	case h.events <- msg:
	default:
		log.Warn().Str("type", msg.Type).Msg("Event queue full, dropping message")
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			if old, ok := h.clients[client.UserID]; ok {
				old.Close()
			}
			h.clients[client.UserID] = client.Conn
			log.Debug().Int64("user_id", client.UserID).Msg("WebSocket client connected")

		case client := <-h.unregister:
			if conn, ok := h.clients[client.UserID]; ok && conn == client.Conn {
				delete(h.clients, client.UserID)
				log.Debug().Int64("user_id", client.UserID).Msg("WebSocket client disconnected")
			}

		case msg := <-h.events:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) dispatch(msg *Message) {
	if msg.UserID != 0 {
		if conn, ok := h.clients[msg.UserID]; ok {
			h.write(msg.UserID, conn, msg)
		}
		return
	}
	for userID, conn := range h.clients {
		h.write(userID, conn, msg)
	}
}

func (h *Hub) write(userID int64, conn *websocket.Conn, msg *Message) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Int64("user_id", userID).Msg("WebSocket write failed")
		conn.Close()
		delete(h.clients, userID)
	}
}
