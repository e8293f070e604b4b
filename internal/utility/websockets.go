package utility

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub holds active plan-update connections: Map[UserID] -> connections
var (
	Clients   = make(map[string]map[*websocket.Conn]bool)
	ClientsMu sync.Mutex
	Upgrader  = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Allow CORS for development
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

// RegisterClient adds a connection for userID. A user may have several tabs open.
func RegisterClient(userID string, conn *websocket.Conn) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if Clients[userID] == nil {
		Clients[userID] = make(map[*websocket.Conn]bool)
	}
	Clients[userID][conn] = true
	log.Info().Str("user_id", userID).Msg("WebSocket Client Connected")
}

func UnregisterClient(userID string, conn *websocket.Conn) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()
	if conns, ok := Clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(Clients, userID)
		}
		log.Info().Str("user_id", userID).Msg("WebSocket Client Disconnected")
	}
}

// NotifyPlanUpdated tells every connection of userID that a plan of kind was rewritten.
func NotifyPlanUpdated(userID, kind string) {
	ClientsMu.Lock()
	defer ClientsMu.Unlock()

	msg := []byte("PLAN_UPDATED:" + kind)
	for conn := range Clients[userID] {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send WS message, removing client")
			conn.Close()
			delete(Clients[userID], conn)
		}
	}
	if len(Clients[userID]) == 0 {
		delete(Clients, userID)
	}
}
