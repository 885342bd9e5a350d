package controller

import "github.com/townlet/townlet-server/town/model"

// TownListener receives push notifications for town-state changes. All
// callbacks are invoked with the town lock held and must not call back
// into the controller; implementations that relay to slow consumers should
// hand off to a buffered channel, as the websocket adapter does.
//
// Listeners are compared by identity: subscribing the same listener value
// twice does not double-notify.
type TownListener interface {
	// OnPlayerJoined fires when a player joins the town.
	OnPlayerJoined(player *model.Player)

	// OnPlayerMoved fires on every location update, whether or not the
	// player's conversation-area membership changed.
	OnPlayerMoved(player *model.Player)

	// OnPlayerDisconnected fires when a player's session is destroyed.
	OnPlayerDisconnected(player *model.Player)

	// OnPlayerSongUpdated fires when a player's currently-playing track
	// changes to a playing state. Clearing a song does not notify.
	OnPlayerSongUpdated(player *model.Player)

	// OnConversationAreaUpdated fires when an area is created or its
	// occupant list changes.
	OnConversationAreaUpdated(area *model.ConversationArea)

	// OnConversationAreaDestroyed fires exactly once when an area loses
	// its last occupant and is removed from the town.
	OnConversationAreaDestroyed(area *model.ConversationArea)

	// OnChatMessage fires for each chat message relayed through the town.
	OnChatMessage(message model.ChatMessage)

	// OnTownDestroyed fires when the town is torn down; no further events
	// are delivered to any listener afterwards.
	OnTownDestroyed()
}
