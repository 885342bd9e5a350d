package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/townlet/townlet-server/town/registry"
	"github.com/townlet/townlet-server/town/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound event buffer per client. A client whose buffer fills is
	// dropped so it cannot stall town fan-out.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Hub upgrades and authenticates socket connections against the town
// registry. Event routing itself needs no central state: each client
// subscribes directly to its town controller.
type Hub struct {
	registry *registry.Registry
	service  service.TownService
}

// NewHub creates a hub bound to the registry and service.
func NewHub(reg *registry.Registry, svc service.TownService) *Hub {
	return &Hub{registry: reg, service: svc}
}

// ServeWS handles a socket connection request. The town ID and session
// token arrive as query parameters and are verified before the upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	townID := r.URL.Query().Get("town")
	token := r.URL.Query().Get("token")
	if townID == "" || token == "" {
		http.Error(w, "town and token parameters required", http.StatusBadRequest)
		return
	}

	tc, err := h.registry.Get(townID)
	if err != nil {
		http.Error(w, "unknown town", http.StatusNotFound)
		return
	}
	session := tc.GetSessionByToken(token)
	if session == nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn, tc, session, townID)
	tc.AddTownListener(client)

	log.Printf("Client connected: town=%s player=%s", townID, session.Player.ID)

	go client.writePump()
	go client.readPump()
}
