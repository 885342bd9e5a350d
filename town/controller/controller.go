package controller

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/townlet/townlet-server/music"
	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/video"
)

var (
	ErrTownFull        = errors.New("town is at maximum occupancy")
	ErrSessionNotFound = errors.New("session not found")
)

// TownController owns all state for one town and serializes every mutation
// to it. Operations that call out to an external service hold the town
// lock across the call, so no other operation on the same town can observe
// a half-applied change.
type TownController struct {
	mu sync.Mutex

	townID       string
	friendlyName string
	isListed     bool
	capacity     int

	players   []*model.Player
	sessions  []*model.PlayerSession
	areas     []*model.ConversationArea
	listeners []TownListener

	videoTokens video.TokenProvider
	musicSync   music.SyncAdapter
}

// New creates a controller for the town identified by townID. ID
// allocation belongs to the registry so the controller never has to know
// how towns are indexed.
func New(townID, friendlyName string, isListed bool, videoTokens video.TokenProvider, musicSync music.SyncAdapter) *TownController {
	return &TownController{
		townID:       townID,
		friendlyName: friendlyName,
		isListed:     isListed,
		capacity:     model.DefaultMaxOccupancy,
		videoTokens:  videoTokens,
		musicSync:    musicSync,
	}
}

// TownID returns the town's internal identifier.
func (tc *TownController) TownID() string {
	return tc.townID
}

// FriendlyName returns the town's display name.
func (tc *TownController) FriendlyName() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.friendlyName
}

// SetFriendlyName renames the town.
func (tc *TownController) SetFriendlyName(name string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.friendlyName = name
}

// IsPubliclyListed reports whether the town appears in public listings.
func (tc *TownController) IsPubliclyListed() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.isListed
}

// SetPubliclyListed changes the town's listing visibility.
func (tc *TownController) SetPubliclyListed(listed bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.isListed = listed
}

// Occupancy returns the number of players currently in the town.
func (tc *TownController) Occupancy() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.players)
}

// Capacity returns the town's maximum occupancy.
func (tc *TownController) Capacity() int {
	return tc.capacity
}

// Players returns a snapshot of the town's current players.
func (tc *TownController) Players() []*model.Player {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]*model.Player, len(tc.players))
	copy(out, tc.players)
	return out
}

// ConversationAreas returns a snapshot of the town's active areas.
func (tc *TownController) ConversationAreas() []*model.ConversationArea {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	out := make([]*model.ConversationArea, len(tc.areas))
	copy(out, tc.areas)
	return out
}

// AddPlayer admits a player to the town. It requests a video-room token
// for the player, allocates a session, and announces the join. The
// operation is all-or-nothing: if the token provider fails, no session or
// player state is left behind.
func (tc *TownController) AddPlayer(player *model.Player) (*model.PlayerSession, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if len(tc.players) >= tc.capacity {
		return nil, ErrTownFull
	}

	videoToken, err := tc.videoTokens.GetTokenForTown(tc.townID, player.ID)
	if err != nil {
		return nil, fmt.Errorf("video token request failed: %w", err)
	}

	session := model.NewPlayerSession(player)
	session.VideoToken = videoToken

	tc.sessions = append(tc.sessions, session)
	tc.players = append(tc.players, player)

	tc.notify(func(l TownListener) { l.OnPlayerJoined(player) })
	return session, nil
}

// GetSessionByToken resolves a session token issued by AddPlayer, or nil.
func (tc *TownController) GetSessionByToken(token string) *model.PlayerSession {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, s := range tc.sessions {
		if s.SessionToken == token {
			return s
		}
	}
	return nil
}

// UpdatePlayerLocation records a player's new location and reconciles
// conversation-area membership. An explicit conversation label on the
// location wins over geometry; with no label, membership is the area whose
// box contains the point. OnPlayerMoved fires on every call.
func (tc *TownController) UpdatePlayerLocation(player *model.Player, location model.PlayerLocation) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	next := tc.resolveArea(location)
	prevLabel := player.ActiveConversationLabel

	nextLabel := ""
	if next != nil {
		nextLabel = next.Label
	}

	if prevLabel != nextLabel {
		if prev := tc.areaByLabel(prevLabel); prev != nil {
			tc.removeOccupant(prev, player.ID)
		}
		if next != nil && !next.HasOccupant(player.ID) {
			next.OccupantIDs = append(next.OccupantIDs, player.ID)
			tc.notify(func(l TownListener) { l.OnConversationAreaUpdated(next) })
		}
		player.ActiveConversationLabel = nextLabel
	}

	player.Location = location
	tc.notify(func(l TownListener) { l.OnPlayerMoved(player) })
}

// AddConversationArea creates a new conversation area. It fails without
// mutation when the label is empty or collides with an existing area.
// Players already standing inside the box (and not in another area) are
// admitted as occupants alongside any supplied occupant list.
func (tc *TownController) AddConversationArea(area *model.ConversationArea) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if area.Label == "" || tc.areaByLabel(area.Label) != nil {
		return false
	}

	for _, p := range tc.players {
		if p.ActiveConversationLabel != "" || !area.Box.Contains(p.Location.X, p.Location.Y) {
			continue
		}
		if !area.HasOccupant(p.ID) {
			area.OccupantIDs = append(area.OccupantIDs, p.ID)
		}
		p.ActiveConversationLabel = area.Label
	}

	tc.areas = append(tc.areas, area)
	tc.notify(func(l TownListener) { l.OnConversationAreaUpdated(area) })
	return true
}

// DestroySession removes a player from the town: out of any conversation
// area, out of the player list, and out of the session table. The player's
// streaming link, if any, is dropped best-effort.
func (tc *TownController) DestroySession(session *model.PlayerSession) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	idx := -1
	for i, s := range tc.sessions {
		if s == session || s.SessionToken == session.SessionToken {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSessionNotFound
	}

	player := tc.sessions[idx].Player
	tc.sessions = append(tc.sessions[:idx], tc.sessions[idx+1:]...)

	if area := tc.areaByLabel(player.ActiveConversationLabel); area != nil {
		tc.removeOccupant(area, player.ID)
		player.ActiveConversationLabel = ""
	}

	for i, p := range tc.players {
		if p.ID == player.ID {
			tc.players = append(tc.players[:i], tc.players[i+1:]...)
			break
		}
	}

	tc.musicSync.UnlinkPlayer(tc.townID, player)
	tc.notify(func(l TownListener) { l.OnPlayerDisconnected(player) })
	return nil
}

// DisconnectAllPlayers tears the town down: every listener hears
// OnTownDestroyed exactly once, then all subscriptions and player state
// are dropped. The town is empty and eligible for registry removal
// afterwards.
func (tc *TownController) DisconnectAllPlayers() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.notify(func(l TownListener) { l.OnTownDestroyed() })
	tc.listeners = nil
	tc.players = nil
	tc.sessions = nil
	tc.areas = nil
}

// AddTownListener subscribes a listener. Subscribing the same listener
// value again is a no-op.
func (tc *TownController) AddTownListener(listener TownListener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for _, l := range tc.listeners {
		if l == listener {
			return
		}
	}
	tc.listeners = append(tc.listeners, listener)
}

// RemoveTownListener unsubscribes a listener; it receives no further
// notifications.
func (tc *TownController) RemoveTownListener(listener TownListener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for i, l := range tc.listeners {
		if l == listener {
			tc.listeners = append(tc.listeners[:i], tc.listeners[i+1:]...)
			return
		}
	}
}

// OnChatMessage relays a chat message to every listener. No town state
// changes.
func (tc *TownController) OnChatMessage(message model.ChatMessage) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.notify(func(l TownListener) { l.OnChatMessage(message) })
}

// ChangePlayerSong asks the streaming service to play the song from the
// beginning, ignoring any progress offset the caller supplied. On success
// the player's song is set with progress zero and listeners are notified;
// on failure the player's song is untouched and no notification fires.
func (tc *TownController) ChangePlayerSong(player *model.Player, song model.SongData) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	song.Progress = 0
	if !tc.musicSync.StartPlayback(tc.townID, player, song) {
		return
	}

	player.Song = &song
	tc.notify(func(l TownListener) { l.OnPlayerSongUpdated(player) })
}

// UpdatePlayerSongs polls the streaming service for every player in the
// town. Each player is handled independently: a player's song is set (and
// announced) only when the service reports a playing track; otherwise it
// is cleared silently.
func (tc *TownController) UpdatePlayerSongs() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for _, player := range tc.players {
		track := tc.musicSync.GetCurrentTrack(tc.townID, player)
		state := tc.musicSync.GetPlaybackState(tc.townID, player)

		if state != nil && state.IsPlaying && track != nil {
			player.Song = track
			p := player
			tc.notify(func(l TownListener) { l.OnPlayerSongUpdated(p) })
		} else {
			player.Song = nil
		}
	}
}

// resolveArea determines which conversation area a location belongs to.
// Caller holds the lock.
func (tc *TownController) resolveArea(location model.PlayerLocation) *model.ConversationArea {
	if location.ConversationLabel != "" {
		return tc.areaByLabel(location.ConversationLabel)
	}
	for _, area := range tc.areas {
		if area.Box.Contains(location.X, location.Y) {
			return area
		}
	}
	return nil
}

// areaByLabel returns the area with the given label, or nil. Caller holds
// the lock.
func (tc *TownController) areaByLabel(label string) *model.ConversationArea {
	if label == "" {
		return nil
	}
	for _, area := range tc.areas {
		if area.Label == label {
			return area
		}
	}
	return nil
}

// removeOccupant drops a player from an area's occupant list, destroying
// the area when it empties. Caller holds the lock.
func (tc *TownController) removeOccupant(area *model.ConversationArea, playerID string) {
	for i, id := range area.OccupantIDs {
		if id == playerID {
			area.OccupantIDs = append(area.OccupantIDs[:i], area.OccupantIDs[i+1:]...)
			break
		}
	}

	if len(area.OccupantIDs) > 0 {
		tc.notify(func(l TownListener) { l.OnConversationAreaUpdated(area) })
		return
	}

	for i, a := range tc.areas {
		if a == area {
			tc.areas = append(tc.areas[:i], tc.areas[i+1:]...)
			break
		}
	}
	tc.notify(func(l TownListener) { l.OnConversationAreaDestroyed(area) })
}

// notify invokes fn for every subscribed listener, isolating panics so a
// failing listener cannot stop the rest of the fan-out. Caller holds the
// lock.
func (tc *TownController) notify(fn func(TownListener)) {
	for _, l := range tc.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("town %s: listener panicked during notification: %v", tc.townID, r)
				}
			}()
			fn(l)
		}()
	}
}
