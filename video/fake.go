package video

import (
	"fmt"
	"sync"
)

// FakeProvider is an in-memory TokenProvider for tests and for running the
// server without Twilio credentials. It records every request and can be
// told to fail.
type FakeProvider struct {
	mu       sync.Mutex
	requests []FakeRequest
	failWith error
}

// FakeRequest records one token request.
type FakeRequest struct {
	TownID   string
	PlayerID string
}

// NewFakeProvider creates a provider that succeeds for every request.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// FailWith makes subsequent requests fail with the given error; pass nil
// to restore success.
func (f *FakeProvider) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// Requests returns a copy of all recorded requests.
func (f *FakeProvider) Requests() []FakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// GetTokenForTown returns a deterministic token naming the town and
// player, or the configured error.
func (f *FakeProvider) GetTokenForTown(townID, playerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, FakeRequest{TownID: townID, PlayerID: playerID})
	if f.failWith != nil {
		return "", f.failWith
	}
	return fmt.Sprintf("video-token-%s-%s", townID, playerID), nil
}

var _ TokenProvider = (*FakeProvider)(nil)
