// Package music synchronizes players' currently-playing tracks with an
// external streaming account. The controller depends only on the
// SyncAdapter interface. The Spotify implementation talks to the Spotify
// Web API with per-player bearer tokens; all of its operations are
// best-effort and signal failure without errors that could abort a town
// operation.
package music
