// Package controller implements the town session controller, the component
// that owns all mutable state for a single town: its players, their
// sessions, the conversation areas, and the set of subscribed listeners.
//
// Core Rules:
//
// A town serializes every mutation behind a single mutex, including the
// span of any external call made mid-operation, so movement, joins,
// disconnects, chat, and song polling for one town never interleave.
// Different towns are fully independent.
//
// Conversation-area membership follows the player's reported location. An
// explicit conversation label on the location is authoritative; otherwise
// membership is the area whose bounding box contains the point. An area
// whose last occupant leaves is destroyed immediately.
//
// External failures never corrupt town state: a video-token failure aborts
// the join with nothing half-created, and music-service failures leave the
// player's song untouched.
//
// State changes are pushed to subscribers through the TownListener
// interface; transports (websocket, tests) implement it. Fan-out is
// synchronous but isolated per listener, so one misbehaving listener
// cannot stop the others from being notified.
package controller
