package music

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/townlet/townlet-server/town/model"
)

const (
	spotifyAPIBase   = "https://api.spotify.com/v1"
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyHTTPWait  = 10 * time.Second
	tokenExpirySlack = 30 * time.Second
)

var (
	ErrTownNotRegistered = errors.New("town not registered with music sync")
	ErrMalformedToken    = errors.New("malformed spotify token payload")
)

// linkPayload is the raw credential blob a client sends after completing
// the Spotify authorization flow.
type linkPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type playerTokens struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// SpotifyClient implements SyncAdapter against the Spotify Web API. It
// keeps per-town, per-player bearer tokens in memory and refreshes them
// with the configured application credentials when they expire. All
// playback operations are best-effort; upstream failures are logged and
// reported as absent/false, never as errors.
type SpotifyClient struct {
	mu    sync.Mutex
	towns map[string]map[string]*playerTokens

	clientID     string
	clientSecret string
	httpClient   *http.Client

	// apiBase and tokenURL are overridable for tests.
	apiBase  string
	tokenURL string
}

// NewSpotifyClient builds a client with the given application credentials.
func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	return &SpotifyClient{
		towns:        make(map[string]map[string]*playerTokens),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: spotifyHTTPWait},
		apiBase:      spotifyAPIBase,
		tokenURL:     spotifyTokenURL,
	}
}

// RegisterTown starts tracking linked players for a town.
func (c *SpotifyClient) RegisterTown(townID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.towns[townID]; !ok {
		c.towns[townID] = make(map[string]*playerTokens)
	}
}

// UnregisterTown drops all token state for a town.
func (c *SpotifyClient) UnregisterTown(townID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.towns, townID)
}

// LinkPlayer stores the player's Spotify credentials. The raw payload is
// validated here so a malformed blob never reaches town state.
func (c *SpotifyClient) LinkPlayer(townID string, player *model.Player, rawToken string) error {
	var payload linkPayload
	if err := json.Unmarshal([]byte(rawToken), &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("%w: missing access_token", ErrMalformedToken)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	townPlayers, ok := c.towns[townID]
	if !ok {
		return ErrTownNotRegistered
	}
	townPlayers[player.ID] = &playerTokens{
		accessToken:  payload.AccessToken,
		refreshToken: payload.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	return nil
}

// UnlinkPlayer forgets a player's credentials, if any.
func (c *SpotifyClient) UnlinkPlayer(townID string, player *model.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if townPlayers, ok := c.towns[townID]; ok {
		delete(townPlayers, player.ID)
	}
}

// StartPlayback asks Spotify to play the song's URIs from position zero on
// the player's active device.
func (c *SpotifyClient) StartPlayback(townID string, player *model.Player, song model.SongData) bool {
	token, ok := c.bearerFor(townID, player.ID)
	if !ok {
		return false
	}

	body, err := json.Marshal(map[string]interface{}{
		"uris":        song.URIs,
		"position_ms": 0,
	})
	if err != nil {
		return false
	}

	status, _, err := c.do(token, http.MethodPut, "/me/player/play", body)
	if err != nil {
		log.Printf("spotify: start playback for player %s: %v", player.ID, err)
		return false
	}
	return status == http.StatusNoContent || status == http.StatusOK
}

// GetCurrentTrack returns the track loaded in the player's Spotify client.
func (c *SpotifyClient) GetCurrentTrack(townID string, player *model.Player) *model.SongData {
	token, ok := c.bearerFor(townID, player.ID)
	if !ok {
		return nil
	}

	status, respBody, err := c.do(token, http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil || status != http.StatusOK {
		return nil
	}

	var resp struct {
		ProgressMS int64 `json:"progress_ms"`
		Item       *struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"item"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil || resp.Item == nil {
		return nil
	}
	return &model.SongData{
		Title:    resp.Item.Name,
		URIs:     []string{resp.Item.URI},
		Progress: resp.ProgressMS,
	}
}

// GetPlaybackState returns whether the player's Spotify client is playing.
func (c *SpotifyClient) GetPlaybackState(townID string, player *model.Player) *PlaybackState {
	token, ok := c.bearerFor(townID, player.ID)
	if !ok {
		return nil
	}

	status, respBody, err := c.do(token, http.MethodGet, "/me/player", nil)
	if err != nil || status != http.StatusOK {
		return nil
	}

	var resp struct {
		IsPlaying bool `json:"is_playing"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil
	}
	return &PlaybackState{IsPlaying: resp.IsPlaying}
}

// bearerFor returns a usable access token for the player, refreshing it
// first if it has expired. The second return is false when the player is
// not linked or the refresh failed.
func (c *SpotifyClient) bearerFor(townID, playerID string) (string, bool) {
	c.mu.Lock()
	townPlayers, ok := c.towns[townID]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	tokens, ok := townPlayers[playerID]
	if !ok {
		c.mu.Unlock()
		return "", false
	}
	access := tokens.accessToken
	refresh := tokens.refreshToken
	expired := time.Now().After(tokens.expiresAt.Add(-tokenExpirySlack))
	c.mu.Unlock()

	if !expired {
		return access, true
	}
	if refresh == "" {
		return "", false
	}
	return c.refresh(townID, playerID, refresh)
}

// refresh exchanges the refresh token for a new access token and stores
// it. The HTTP exchange runs outside the client lock.
func (c *SpotifyClient) refresh(townID, playerID, refreshToken string) (string, bool) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequest(http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("spotify: token refresh for player %s: %v", playerID, err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("spotify: token refresh for player %s: status %d", playerID, resp.StatusCode)
		return "", false
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.AccessToken == "" {
		return "", false
	}

	c.mu.Lock()
	if townPlayers, ok := c.towns[townID]; ok {
		if tokens, ok := townPlayers[playerID]; ok {
			tokens.accessToken = payload.AccessToken
			tokens.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		}
	}
	c.mu.Unlock()

	return payload.AccessToken, true
}

// do performs one authenticated API call and returns the status and body.
func (c *SpotifyClient) do(token, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.apiBase+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

var _ SyncAdapter = (*SpotifyClient)(nil)
