package service

import (
	"context"
	"errors"

	"github.com/townlet/townlet-server/music"
	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/town/registry"
)

var (
	ErrEmptyUserName    = errors.New("user name must not be empty")
	ErrEmptyAreaLabel   = errors.New("conversation area label must not be empty")
	ErrEmptyAreaTopic   = errors.New("conversation area topic must not be empty")
	ErrInvalidSession   = errors.New("invalid session token")
	ErrAreaNotCreatable = errors.New("conversation area could not be created")
)

// TownService defines the request-level operations consumed by the REST
// handlers and the transports.
type TownService interface {
	CreateTown(ctx context.Context, friendlyName string, isPubliclyListed bool) (*TownCreateResponse, error)
	JoinTown(ctx context.Context, userName, townID string) (*TownJoinResponse, error)
	UpdateTown(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error
	DeleteTown(ctx context.Context, townID, password string) error
	ListTowns(ctx context.Context) ([]registry.TownListing, error)

	CreateConversationArea(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error
	LinkSpotify(ctx context.Context, townID, sessionToken, rawToken string) error
	LeaveTown(ctx context.Context, townID, sessionToken string) error

	// UpdateAllPlayerSongs runs one song-poll pass over every town. It is
	// invoked on a timer from main.
	UpdateAllPlayerSongs(ctx context.Context)
}

// TownCreateResponse is returned from CreateTown; the password appears
// here once and is never retrievable again.
type TownCreateResponse struct {
	TownID             string `json:"townID"`
	TownUpdatePassword string `json:"townUpdatePassword"`
}

// TownJoinResponse carries everything a client needs after admission.
type TownJoinResponse struct {
	PlayerID          string                    `json:"playerID"`
	SessionToken      string                    `json:"sessionToken"`
	VideoToken        string                    `json:"videoToken"`
	FriendlyName      string                    `json:"friendlyName"`
	IsPubliclyListed  bool                      `json:"isPubliclyListed"`
	CurrentPlayers    []*model.Player           `json:"currentPlayers"`
	ConversationAreas []*model.ConversationArea `json:"conversationAreas"`
}

type townService struct {
	registry  *registry.Registry
	musicSync music.SyncAdapter
}

// New creates the facade over a registry. The music adapter is needed
// directly for LinkSpotify; everything else goes through controllers.
func New(reg *registry.Registry, musicSync music.SyncAdapter) TownService {
	return &townService{registry: reg, musicSync: musicSync}
}

// CreateTown creates a town and returns its ID and one-time password.
func (s *townService) CreateTown(ctx context.Context, friendlyName string, isPubliclyListed bool) (*TownCreateResponse, error) {
	tc, password, err := s.registry.CreateTown(friendlyName, isPubliclyListed)
	if err != nil {
		return nil, err
	}
	return &TownCreateResponse{
		TownID:             tc.TownID(),
		TownUpdatePassword: password,
	}, nil
}

// JoinTown admits a new player into a town and returns their tokens along
// with a snapshot of current town state.
func (s *townService) JoinTown(ctx context.Context, userName, townID string) (*TownJoinResponse, error) {
	if userName == "" {
		return nil, ErrEmptyUserName
	}
	tc, err := s.registry.Get(townID)
	if err != nil {
		return nil, err
	}

	player := model.NewPlayer(userName)
	session, err := tc.AddPlayer(player)
	if err != nil {
		return nil, err
	}

	return &TownJoinResponse{
		PlayerID:          player.ID,
		SessionToken:      session.SessionToken,
		VideoToken:        session.VideoToken,
		FriendlyName:      tc.FriendlyName(),
		IsPubliclyListed:  tc.IsPubliclyListed(),
		CurrentPlayers:    tc.Players(),
		ConversationAreas: tc.ConversationAreas(),
	}, nil
}

// UpdateTown changes a town's name and/or visibility given the password.
func (s *townService) UpdateTown(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error {
	return s.registry.Update(townID, password, friendlyName, isPubliclyListed)
}

// DeleteTown destroys a town given the password.
func (s *townService) DeleteTown(ctx context.Context, townID, password string) error {
	return s.registry.Delete(townID, password)
}

// ListTowns returns the publicly listed towns.
func (s *townService) ListTowns(ctx context.Context) ([]registry.TownListing, error) {
	return s.registry.List(), nil
}

// CreateConversationArea adds a conversation area to a town on behalf of
// an authenticated session.
func (s *townService) CreateConversationArea(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error {
	if area.Label == "" {
		return ErrEmptyAreaLabel
	}
	if area.Topic == "" {
		return ErrEmptyAreaTopic
	}

	tc, err := s.registry.Get(townID)
	if err != nil {
		return err
	}
	if tc.GetSessionByToken(sessionToken) == nil {
		return ErrInvalidSession
	}
	if !tc.AddConversationArea(&area) {
		return ErrAreaNotCreatable
	}
	return nil
}

// LinkSpotify attaches a streaming account to the session's player. A
// malformed credential payload is rejected by the adapter before any
// state changes.
func (s *townService) LinkSpotify(ctx context.Context, townID, sessionToken, rawToken string) error {
	tc, err := s.registry.Get(townID)
	if err != nil {
		return err
	}
	session := tc.GetSessionByToken(sessionToken)
	if session == nil {
		return ErrInvalidSession
	}
	return s.musicSync.LinkPlayer(townID, session.Player, rawToken)
}

// LeaveTown tears down the session and removes the town from the registry
// if it has just been emptied.
func (s *townService) LeaveTown(ctx context.Context, townID, sessionToken string) error {
	tc, err := s.registry.Get(townID)
	if err != nil {
		return err
	}
	session := tc.GetSessionByToken(sessionToken)
	if session == nil {
		return ErrInvalidSession
	}
	if err := tc.DestroySession(session); err != nil {
		return err
	}
	s.registry.RemoveIfEmpty(townID)
	return nil
}

// UpdateAllPlayerSongs polls the streaming service for every player in
// every town. Towns are independent; a hang in one town's poll does not
// stop the others because each controller serializes only its own state.
func (s *townService) UpdateAllPlayerSongs(ctx context.Context) {
	for _, tc := range s.registry.Towns() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		tc.UpdatePlayerSongs()
	}
}
