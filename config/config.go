// Package config loads server configuration from the environment. Flags
// in main override the listen address; external-service credentials come
// only from the environment (or a .env file in development).
package config

import (
	"os"
	"time"
)

// DefaultSongPollInterval is how often player songs are refreshed from
// the streaming service when SONG_POLL_INTERVAL is unset.
const DefaultSongPollInterval = 3 * time.Second

// Config holds credentials and tunables for the town server.
type Config struct {
	// Twilio video credentials. All three must be set for real token
	// minting; otherwise the server falls back to the fake provider.
	TwilioAccountSID string
	TwilioAPIKey     string
	TwilioAPISecret  string

	// Spotify application credentials. Both must be set for real music
	// sync; otherwise the server falls back to the in-memory fake.
	SpotifyClientID     string
	SpotifyClientSecret string

	SongPollInterval time.Duration
}

// FromEnv reads configuration from the process environment.
func FromEnv() *Config {
	cfg := &Config{
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAPIKey:        os.Getenv("TWILIO_API_KEY"),
		TwilioAPISecret:     os.Getenv("TWILIO_API_SECRET"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SongPollInterval:    DefaultSongPollInterval,
	}

	if raw := os.Getenv("SONG_POLL_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.SongPollInterval = d
		}
	}
	return cfg
}

// HasTwilio reports whether real video credentials are configured.
func (c *Config) HasTwilio() bool {
	return c.TwilioAccountSID != "" && c.TwilioAPIKey != "" && c.TwilioAPISecret != ""
}

// HasSpotify reports whether real Spotify credentials are configured.
func (c *Config) HasSpotify() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
