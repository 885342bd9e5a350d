package video

// TokenProvider grants a video-room access token for a player joining a
// town. A failure here is fatal to that join attempt: the controller
// admits no player it cannot hand a working token.
type TokenProvider interface {
	GetTokenForTown(townID, playerID string) (string, error)
}
