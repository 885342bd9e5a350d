package registry

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/townlet/townlet-server/music"
	"github.com/townlet/townlet-server/town/controller"
	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/video"
)

var (
	ErrTownNotFound    = errors.New("town not found")
	ErrInvalidPassword = errors.New("invalid update password")
	ErrEmptyTownName   = errors.New("town name must not be empty")
	ErrNoFieldsToSet   = errors.New("no valid fields to update")
)

// TownListing is the public summary of a listed town.
type TownListing struct {
	TownID           string `json:"townID"`
	FriendlyName     string `json:"friendlyName"`
	CurrentOccupancy int    `json:"currentOccupancy"`
	MaximumOccupancy int    `json:"maximumOccupancy"`
}

type townEntry struct {
	controller   *controller.TownController
	passwordHash []byte
}

// Registry is the directory of live towns. It is safe for concurrent use;
// per-town mutations are serialized by each town's own controller, the
// registry only guards the index itself.
type Registry struct {
	mu    sync.RWMutex
	towns map[string]*townEntry

	videoTokens video.TokenProvider
	musicSync   music.SyncAdapter
}

// New creates an empty registry. Controllers built by CreateTown inherit
// the given external collaborators.
func New(videoTokens video.TokenProvider, musicSync music.SyncAdapter) *Registry {
	return &Registry{
		towns:       make(map[string]*townEntry),
		videoTokens: videoTokens,
		musicSync:   musicSync,
	}
}

// CreateTown creates and indexes a new town. It returns the controller
// together with the one-time clear-text update password; only the bcrypt
// hash is retained. The town is registered with the music adapter
// best-effort.
func (r *Registry) CreateTown(friendlyName string, isListed bool) (*controller.TownController, string, error) {
	if friendlyName == "" {
		return nil, "", ErrEmptyTownName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	townID := r.generateTownID()
	password := generatePassword()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	tc := controller.New(townID, friendlyName, isListed, r.videoTokens, r.musicSync)
	r.towns[townID] = &townEntry{controller: tc, passwordHash: hash}

	r.musicSync.RegisterTown(townID)
	return tc, password, nil
}

// Get returns the controller for a town ID.
func (r *Registry) Get(townID string) (*controller.TownController, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.towns[townID]
	if !ok {
		return nil, ErrTownNotFound
	}
	return entry.controller, nil
}

// Delete destroys a town after verifying the update password: all players
// are forcibly disconnected and the town leaves the index. A password
// mismatch changes nothing.
func (r *Registry) Delete(townID, password string) error {
	r.mu.Lock()
	entry, ok := r.towns[townID]
	if !ok {
		r.mu.Unlock()
		return ErrTownNotFound
	}
	if bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(password)) != nil {
		r.mu.Unlock()
		return ErrInvalidPassword
	}
	delete(r.towns, townID)
	r.mu.Unlock()

	// Teardown happens outside the index lock; the controller serializes
	// against its own in-flight operations.
	entry.controller.DisconnectAllPlayers()
	r.musicSync.UnregisterTown(townID)
	return nil
}

// Update changes a town's friendly name and/or listing visibility after
// verifying the update password. Nil fields are left untouched; an empty
// new name is rejected; at least one field must be set.
func (r *Registry) Update(townID, password string, friendlyName *string, isListed *bool) error {
	if friendlyName == nil && isListed == nil {
		return ErrNoFieldsToSet
	}
	if friendlyName != nil && *friendlyName == "" {
		return ErrEmptyTownName
	}

	r.mu.RLock()
	entry, ok := r.towns[townID]
	r.mu.RUnlock()
	if !ok {
		return ErrTownNotFound
	}
	if bcrypt.CompareHashAndPassword(entry.passwordHash, []byte(password)) != nil {
		return ErrInvalidPassword
	}

	if friendlyName != nil {
		entry.controller.SetFriendlyName(*friendlyName)
	}
	if isListed != nil {
		entry.controller.SetPubliclyListed(*isListed)
	}
	return nil
}

// List returns summaries of all publicly listed towns.
func (r *Registry) List() []TownListing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TownListing, 0, len(r.towns))
	for id, entry := range r.towns {
		if !entry.controller.IsPubliclyListed() {
			continue
		}
		result = append(result, TownListing{
			TownID:           id,
			FriendlyName:     entry.controller.FriendlyName(),
			CurrentOccupancy: entry.controller.Occupancy(),
			MaximumOccupancy: entry.controller.Capacity(),
		})
	}
	return result
}

// RemoveIfEmpty drops a town from the index once its last player has
// disconnected. It reports whether the town was removed. No password is
// required; this is the implicit-destruction path, not the administrative
// one.
func (r *Registry) RemoveIfEmpty(townID string) bool {
	r.mu.Lock()
	entry, ok := r.towns[townID]
	if !ok || entry.controller.Occupancy() > 0 {
		r.mu.Unlock()
		return false
	}
	delete(r.towns, townID)
	r.mu.Unlock()

	entry.controller.DisconnectAllPlayers()
	r.musicSync.UnregisterTown(townID)
	return true
}

// Towns returns every controller in the index, listed or not. Used by the
// song-poll loop, which visits all towns regardless of visibility.
func (r *Registry) Towns() []*controller.TownController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*controller.TownController, 0, len(r.towns))
	for _, entry := range r.towns {
		out = append(out, entry.controller)
	}
	return out
}

// Count returns the number of towns in the index, listed or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.towns)
}

// generateTownID allocates a random hex town ID that is not already in
// use. Caller holds the write lock.
func (r *Registry) generateTownID() string {
	for {
		b := make([]byte, model.TownIDLength/2)
		rand.Read(b)
		id := hex.EncodeToString(b)
		if _, taken := r.towns[id]; !taken {
			return id
		}
	}
}

// generatePassword produces the random clear-text update password handed
// back once at creation time.
func generatePassword() string {
	b := make([]byte, 12)
	rand.Read(b)
	return hex.EncodeToString(b)
}
