package music

import "github.com/townlet/townlet-server/town/model"

// PlaybackState is the playing/paused flag reported by the streaming
// service for a linked player.
type PlaybackState struct {
	IsPlaying bool `json:"isPlaying"`
}

// SyncAdapter is the controller's view of the external music-streaming
// service. Every method is best-effort: StartPlayback reports failure as a
// boolean, the queries return nil for unlinked players or upstream
// failures, and none of them may block a town's invariants on a retry.
type SyncAdapter interface {
	// RegisterTown and UnregisterTown bracket a town's lifetime so the
	// adapter can drop per-town token state when the town goes away.
	RegisterTown(townID string)
	UnregisterTown(townID string)

	// LinkPlayer attaches a streaming account to a player using the raw
	// credential payload sent by the client. Malformed payloads are
	// rejected here and never touch town state.
	LinkPlayer(townID string, player *model.Player, rawToken string) error

	// UnlinkPlayer detaches a player's streaming account, if any.
	UnlinkPlayer(townID string, player *model.Player)

	// StartPlayback asks the service to play the song from offset zero on
	// the player's device. It never returns an error; false means the
	// request did not take effect.
	StartPlayback(townID string, player *model.Player, song model.SongData) bool

	// GetCurrentTrack returns the player's currently loaded track, or nil
	// if the player is unlinked, nothing is loaded, or the query failed.
	GetCurrentTrack(townID string, player *model.Player) *model.SongData

	// GetPlaybackState returns the player's play/pause state, or nil under
	// the same conditions as GetCurrentTrack.
	GetPlaybackState(townID string, player *model.Player) *PlaybackState
}
