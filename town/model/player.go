package model

import "github.com/google/uuid"

// Player is a connected participant in a town. The conversation-area
// back-reference is a label resolved against the town's area list, never a
// pointer, so destroying an area cannot leave a dangling reference.
type Player struct {
	ID                      string         `json:"_id"`
	UserName                string         `json:"_userName"`
	Location                PlayerLocation `json:"location"`
	ActiveConversationLabel string         `json:"activeConversationLabel,omitempty"`
	Song                    *SongData      `json:"song,omitempty"`
}

// NewPlayer creates a player with a fresh ID at the default spawn location.
func NewPlayer(userName string) *Player {
	return &Player{
		ID:       uuid.NewString(),
		UserName: userName,
		Location: PlayerLocation{X: 0, Y: 0, Rotation: RotationFront, Moving: false},
	}
}

// PlayerSession pairs a player with the opaque token that authenticates
// their socket connection and the token their client uses to join the
// town's video room. Exactly one session exists per player.
type PlayerSession struct {
	Player       *Player `json:"player"`
	SessionToken string  `json:"sessionToken"`
	VideoToken   string  `json:"videoToken,omitempty"`
}

// NewPlayerSession issues a session with a fresh random token for the
// given player. The video token is attached by the controller once the
// provider has granted one.
func NewPlayerSession(player *Player) *PlayerSession {
	return &PlayerSession{
		Player:       player,
		SessionToken: uuid.NewString(),
	}
}
