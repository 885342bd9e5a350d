package music

import (
	"sync"

	"github.com/townlet/townlet-server/town/model"
)

// FakeAdapter is an in-memory SyncAdapter for tests and for running the
// server without Spotify credentials. Tests script its responses per
// player and inspect what the controller asked for.
type FakeAdapter struct {
	mu sync.Mutex

	registeredTowns map[string]bool
	linkedPlayers   map[string]string // playerID -> rawToken

	// Scripted responses, keyed by player ID.
	playbackOK    map[string]bool
	currentTracks map[string]*model.SongData
	playbackState map[string]*PlaybackState

	// Call records.
	startCalls   []StartPlaybackCall
	trackQueries map[string]int
	stateQueries map[string]int
}

// StartPlaybackCall records one StartPlayback invocation.
type StartPlaybackCall struct {
	TownID   string
	PlayerID string
	Song     model.SongData
}

// NewFakeAdapter creates a fake whose StartPlayback succeeds by default.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		registeredTowns: make(map[string]bool),
		linkedPlayers:   make(map[string]string),
		playbackOK:      make(map[string]bool),
		currentTracks:   make(map[string]*model.SongData),
		playbackState:   make(map[string]*PlaybackState),
		trackQueries:    make(map[string]int),
		stateQueries:    make(map[string]int),
	}
}

// SetPlaybackResult scripts StartPlayback's answer for a player.
func (f *FakeAdapter) SetPlaybackResult(playerID string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playbackOK[playerID] = ok
}

// SetCurrentTrack scripts GetCurrentTrack's answer for a player.
func (f *FakeAdapter) SetCurrentTrack(playerID string, song *model.SongData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentTracks[playerID] = song
}

// SetPlaybackState scripts GetPlaybackState's answer for a player.
func (f *FakeAdapter) SetPlaybackState(playerID string, state *PlaybackState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playbackState[playerID] = state
}

// StartCalls returns every StartPlayback invocation so far.
func (f *FakeAdapter) StartCalls() []StartPlaybackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StartPlaybackCall, len(f.startCalls))
	copy(out, f.startCalls)
	return out
}

// TrackQueries returns how many times GetCurrentTrack ran for a player.
func (f *FakeAdapter) TrackQueries(playerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackQueries[playerID]
}

// StateQueries returns how many times GetPlaybackState ran for a player.
func (f *FakeAdapter) StateQueries(playerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateQueries[playerID]
}

// IsTownRegistered reports whether RegisterTown was called for the town
// without a matching UnregisterTown.
func (f *FakeAdapter) IsTownRegistered(townID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registeredTowns[townID]
}

// IsPlayerLinked reports whether the player currently has a stored link.
func (f *FakeAdapter) IsPlayerLinked(playerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.linkedPlayers[playerID]
	return ok
}

func (f *FakeAdapter) RegisterTown(townID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registeredTowns[townID] = true
}

func (f *FakeAdapter) UnregisterTown(townID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registeredTowns, townID)
}

func (f *FakeAdapter) LinkPlayer(townID string, player *model.Player, rawToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.registeredTowns[townID] {
		return ErrTownNotRegistered
	}
	f.linkedPlayers[player.ID] = rawToken
	return nil
}

func (f *FakeAdapter) UnlinkPlayer(townID string, player *model.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.linkedPlayers, player.ID)
}

func (f *FakeAdapter) StartPlayback(townID string, player *model.Player, song model.SongData) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, StartPlaybackCall{TownID: townID, PlayerID: player.ID, Song: song})
	ok, scripted := f.playbackOK[player.ID]
	if !scripted {
		return true
	}
	return ok
}

func (f *FakeAdapter) GetCurrentTrack(townID string, player *model.Player) *model.SongData {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackQueries[player.ID]++
	return f.currentTracks[player.ID]
}

func (f *FakeAdapter) GetPlaybackState(townID string, player *model.Player) *PlaybackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateQueries[player.ID]++
	return f.playbackState[player.ID]
}

var _ SyncAdapter = (*FakeAdapter)(nil)
