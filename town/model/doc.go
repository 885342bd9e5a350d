// Package model defines the value objects shared across the town server:
// players, their locations, conversation areas, playback data, and the
// session pairing issued at join time.
//
// Types here carry no behavior beyond construction helpers and geometry.
// All orchestration (membership transitions, listener fan-out, lifecycle)
// lives in the controller package.
package model
