package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades authenticated connections and attaches them to
// the event hub.
type WSHandler struct {
	deps *Deps
}

// NewWSHandler creates a new WSHandler instance.
func NewWSHandler(deps *Deps) *WSHandler {
	return &WSHandler{deps: deps}
}

// Connect upgrades the request and pumps client messages. The only
// client message handled is PING.
func (h *WSHandler) Connect(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("WebSocket upgrade failed")
		return
	}

	client := &ws.Client{UserID: userID, Conn: conn}
	h.deps.Hub.Register(client)
	defer func() {
		h.deps.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Int64("user_id", userID).Msg("WebSocket read error")
			}
			return
		}
		if msg.Type == "PING" {
			h.deps.Hub.SendToUser(userID, ws.EventPong, gin.H{"timestamp": time.Now().Unix()})
		}
	}
}
