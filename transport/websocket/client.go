package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/townlet/townlet-server/town/controller"
	"github.com/townlet/townlet-server/town/model"
)

// Outbound event names.
const (
	EventPlayerJoined       = "player_joined"
	EventPlayerMoved        = "player_moved"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerSongUpdated  = "player_song_updated"
	EventAreaUpdated        = "conversation_area_updated"
	EventAreaDestroyed      = "conversation_area_destroyed"
	EventChatMessage        = "chat_message"
	EventTownClosing        = "town_closing"
)

// Inbound action names.
const (
	ActionPlayerMovement = "player_movement"
	ActionChatMessage    = "chat_message"
	ActionChangeSong     = "change_song"
)

// Event is the outbound frame sent to clients.
type Event struct {
	Event            string                  `json:"event"`
	Player           *model.Player           `json:"player,omitempty"`
	ConversationArea *model.ConversationArea `json:"conversationArea,omitempty"`
	Message          *model.ChatMessage      `json:"message,omitempty"`
}

// command is the inbound frame received from clients.
type command struct {
	Action   string                `json:"action"`
	Location *model.PlayerLocation `json:"location,omitempty"`
	Message  *model.ChatMessage    `json:"message,omitempty"`
	Song     *model.SongData       `json:"song,omitempty"`
}

// Client is one authenticated socket connection. It implements
// controller.TownListener by enqueuing events onto its buffered send
// channel; the write pump drains the channel onto the wire.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	town    *controller.TownController
	session *model.PlayerSession
	townID  string

	// done is closed when the town shuts down or the client is dropped;
	// the write pump flushes pending events and exits.
	done     chan struct{}
	doneOnce sync.Once
	cleanup  sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, tc *controller.TownController, session *model.PlayerSession, townID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		town:    tc,
		session: session,
		townID:  townID,
		done:    make(chan struct{}),
	}
}

// TownListener implementation. These run under the town lock and must
// only enqueue.

func (c *Client) OnPlayerJoined(player *model.Player) {
	c.enqueue(Event{Event: EventPlayerJoined, Player: player})
}

func (c *Client) OnPlayerMoved(player *model.Player) {
	c.enqueue(Event{Event: EventPlayerMoved, Player: player})
}

func (c *Client) OnPlayerDisconnected(player *model.Player) {
	c.enqueue(Event{Event: EventPlayerDisconnected, Player: player})
}

func (c *Client) OnPlayerSongUpdated(player *model.Player) {
	c.enqueue(Event{Event: EventPlayerSongUpdated, Player: player})
}

func (c *Client) OnConversationAreaUpdated(area *model.ConversationArea) {
	c.enqueue(Event{Event: EventAreaUpdated, ConversationArea: area})
}

func (c *Client) OnConversationAreaDestroyed(area *model.ConversationArea) {
	c.enqueue(Event{Event: EventAreaDestroyed, ConversationArea: area})
}

func (c *Client) OnChatMessage(message model.ChatMessage) {
	c.enqueue(Event{Event: EventChatMessage, Message: &message})
}

func (c *Client) OnTownDestroyed() {
	c.enqueue(Event{Event: EventTownClosing})
	c.signalDone()
}

// enqueue marshals and buffers an event. A full buffer drops the client.
func (c *Client) enqueue(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal event %s: %v", event.Event, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Client send buffer full, dropping: town=%s player=%s", c.townID, c.session.Player.ID)
		c.signalDone()
	}
}

func (c *Client) signalDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

// teardown unsubscribes the client and destroys its session. Both calls
// tolerate a town that has already been destroyed or pruned.
func (c *Client) teardown() {
	c.cleanup.Do(func() {
		c.town.RemoveTownListener(c)
		if err := c.hub.service.LeaveTown(context.Background(), c.townID, c.session.SessionToken); err != nil {
			log.Printf("Session teardown: town=%s player=%s: %v", c.townID, c.session.Player.ID, err)
		} else {
			log.Printf("Client disconnected: town=%s player=%s", c.townID, c.session.Player.ID)
		}
	})
}

// readPump pumps messages from the socket into the town controller.
func (c *Client) readPump() {
	defer func() {
		c.signalDone()
		c.teardown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("Ignoring malformed client frame: %v", err)
			continue
		}
		c.dispatch(cmd)
	}
}

// dispatch translates one client command onto the controller.
func (c *Client) dispatch(cmd command) {
	switch cmd.Action {
	case ActionPlayerMovement:
		if cmd.Location != nil {
			c.town.UpdatePlayerLocation(c.session.Player, *cmd.Location)
		}
	case ActionChatMessage:
		if cmd.Message != nil {
			c.town.OnChatMessage(*cmd.Message)
		}
	case ActionChangeSong:
		if cmd.Song != nil {
			c.town.ChangePlayerSong(c.session.Player, *cmd.Song)
		}
	default:
		log.Printf("Ignoring unknown client action %q", cmd.Action)
	}
}

// writePump pumps buffered events onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-c.done:
			// Flush whatever is buffered, then close the connection.
			for {
				select {
				case message := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ controller.TownListener = (*Client)(nil)
