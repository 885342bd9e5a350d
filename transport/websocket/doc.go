// Package websocket provides the socket transport between town
// controllers and connected clients.
//
// The package uses a hub model: the Hub upgrades and authenticates
// connections, and each accepted connection becomes a Client handled by a
// dedicated read and write goroutine pair.
//
// Message Protocol:
//
// Messages are JSON-encoded:
//   - Incoming: {action: "player_movement" | "chat_message" | "change_song", ...payload}
//   - Outgoing: {event: "player_joined" | "player_moved" | ..., ...payload}
//
// Session Integration:
//
// Clients authenticate the connection with the session token issued at
// join time (?town=<townID>&token=<sessionToken>). A connection with an
// unknown town or token is refused before the upgrade. Each authenticated
// client subscribes itself as a town listener; events are delivered only
// to clients of the same town.
//
// Connection Lifecycle:
//
// 1. Client joins over REST and receives a session token
// 2. Client connects with town ID and token
// 3. Client listener subscribes to the town
// 4. Client sends actions, receives town events
// 5. Disconnection destroys the session and unsubscribes the listener
//
// Concurrency:
//
// Listener callbacks run under the town lock, so they only enqueue onto
// the client's buffered send channel; a client that cannot keep up is
// dropped rather than allowed to stall the town.
package websocket
