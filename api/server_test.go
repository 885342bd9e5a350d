package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/town/registry"
	"github.com/townlet/townlet-server/town/service"
)

// MockTownService implements service.TownService for testing
type MockTownService struct {
	CreateTownFunc             func(ctx context.Context, friendlyName string, isPubliclyListed bool) (*service.TownCreateResponse, error)
	JoinTownFunc               func(ctx context.Context, userName, townID string) (*service.TownJoinResponse, error)
	UpdateTownFunc             func(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error
	DeleteTownFunc             func(ctx context.Context, townID, password string) error
	ListTownsFunc              func(ctx context.Context) ([]registry.TownListing, error)
	CreateConversationAreaFunc func(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error
	LinkSpotifyFunc            func(ctx context.Context, townID, sessionToken, rawToken string) error
	LeaveTownFunc              func(ctx context.Context, townID, sessionToken string) error
}

func (m *MockTownService) CreateTown(ctx context.Context, friendlyName string, isPubliclyListed bool) (*service.TownCreateResponse, error) {
	if m.CreateTownFunc != nil {
		return m.CreateTownFunc(ctx, friendlyName, isPubliclyListed)
	}
	return &service.TownCreateResponse{TownID: "abcd1234", TownUpdatePassword: "pw"}, nil
}

func (m *MockTownService) JoinTown(ctx context.Context, userName, townID string) (*service.TownJoinResponse, error) {
	if m.JoinTownFunc != nil {
		return m.JoinTownFunc(ctx, userName, townID)
	}
	return &service.TownJoinResponse{
		PlayerID:     "player1",
		SessionToken: "session1",
		VideoToken:   "video1",
		FriendlyName: "Test Town",
	}, nil
}

func (m *MockTownService) UpdateTown(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error {
	if m.UpdateTownFunc != nil {
		return m.UpdateTownFunc(ctx, townID, password, friendlyName, isPubliclyListed)
	}
	return nil
}

func (m *MockTownService) DeleteTown(ctx context.Context, townID, password string) error {
	if m.DeleteTownFunc != nil {
		return m.DeleteTownFunc(ctx, townID, password)
	}
	return nil
}

func (m *MockTownService) ListTowns(ctx context.Context) ([]registry.TownListing, error) {
	if m.ListTownsFunc != nil {
		return m.ListTownsFunc(ctx)
	}
	return []registry.TownListing{}, nil
}

func (m *MockTownService) CreateConversationArea(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error {
	if m.CreateConversationAreaFunc != nil {
		return m.CreateConversationAreaFunc(ctx, townID, sessionToken, area)
	}
	return nil
}

func (m *MockTownService) LinkSpotify(ctx context.Context, townID, sessionToken, rawToken string) error {
	if m.LinkSpotifyFunc != nil {
		return m.LinkSpotifyFunc(ctx, townID, sessionToken, rawToken)
	}
	return nil
}

func (m *MockTownService) LeaveTown(ctx context.Context, townID, sessionToken string) error {
	if m.LeaveTownFunc != nil {
		return m.LeaveTownFunc(ctx, townID, sessionToken)
	}
	return nil
}

func (m *MockTownService) UpdateAllPlayerSongs(ctx context.Context) {}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return env
}

func TestHandleCreateTown(t *testing.T) {
	server := NewServer(&MockTownService{}, nil)

	t.Run("creates a town", func(t *testing.T) {
		rr := doRequest(t, server, "POST", "/api/towns", map[string]interface{}{
			"friendlyName":     "My Town",
			"isPubliclyListed": true,
		})

		if rr.Code != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", rr.Code)
		}
		env := decodeEnvelope(t, rr)
		if !env.IsOK {
			t.Errorf("Expected isOK true, got message '%s'", env.Message)
		}
	})

	t.Run("empty name maps to 400", func(t *testing.T) {
		mock := &MockTownService{
			CreateTownFunc: func(ctx context.Context, friendlyName string, isPubliclyListed bool) (*service.TownCreateResponse, error) {
				return nil, registry.ErrEmptyTownName
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "POST", "/api/towns", map[string]interface{}{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
		if env := decodeEnvelope(t, rr); env.IsOK {
			t.Error("Expected isOK false")
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/towns", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}

func TestHandleListTowns(t *testing.T) {
	mock := &MockTownService{
		ListTownsFunc: func(ctx context.Context) ([]registry.TownListing, error) {
			return []registry.TownListing{
				{TownID: "abcd1234", FriendlyName: "My Town", CurrentOccupancy: 2, MaximumOccupancy: 50},
			}, nil
		},
	}
	server := NewServer(mock, nil)

	rr := doRequest(t, server, "GET", "/api/towns", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var env struct {
		IsOK     bool `json:"isOK"`
		Response struct {
			Towns []registry.TownListing `json:"towns"`
		} `json:"response"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(env.Response.Towns) != 1 || env.Response.Towns[0].TownID != "abcd1234" {
		t.Errorf("Expected listed town in response, got %+v", env.Response.Towns)
	}
}

func TestHandleJoinTown(t *testing.T) {
	t.Run("join returns session payload", func(t *testing.T) {
		server := NewServer(&MockTownService{}, nil)
		rr := doRequest(t, server, "POST", "/api/sessions", map[string]interface{}{
			"userName": "alice",
			"townID":   "abcd1234",
		})

		if rr.Code != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", rr.Code)
		}

		var env struct {
			IsOK     bool                     `json:"isOK"`
			Response service.TownJoinResponse `json:"response"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if env.Response.SessionToken != "session1" {
			t.Errorf("Expected session token in response, got '%s'", env.Response.SessionToken)
		}
	})

	t.Run("unknown town maps to 404", func(t *testing.T) {
		mock := &MockTownService{
			JoinTownFunc: func(ctx context.Context, userName, townID string) (*service.TownJoinResponse, error) {
				return nil, registry.ErrTownNotFound
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "POST", "/api/sessions", map[string]interface{}{
			"userName": "alice",
			"townID":   "nope",
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rr.Code)
		}
	})
}

func TestHandleUpdateTown(t *testing.T) {
	t.Run("forwards optional fields", func(t *testing.T) {
		var gotName *string
		var gotListed *bool
		mock := &MockTownService{
			UpdateTownFunc: func(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error {
				gotName = friendlyName
				gotListed = isPubliclyListed
				return nil
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "PATCH", "/api/towns/abcd1234", map[string]interface{}{
			"townUpdatePassword": "pw",
			"friendlyName":       "Renamed",
		})

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if gotName == nil || *gotName != "Renamed" {
			t.Error("Expected friendly name forwarded")
		}
		if gotListed != nil {
			t.Error("Expected absent visibility field forwarded as nil")
		}
	})

	t.Run("wrong password maps to 401", func(t *testing.T) {
		mock := &MockTownService{
			UpdateTownFunc: func(ctx context.Context, townID, password string, friendlyName *string, isPubliclyListed *bool) error {
				return registry.ErrInvalidPassword
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "PATCH", "/api/towns/abcd1234", map[string]interface{}{
			"townUpdatePassword": "wrong",
			"friendlyName":       "Renamed",
		})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})
}

func TestHandleDeleteTown(t *testing.T) {
	t.Run("deletes with the password", func(t *testing.T) {
		var gotTownID, gotPassword string
		mock := &MockTownService{
			DeleteTownFunc: func(ctx context.Context, townID, password string) error {
				gotTownID = townID
				gotPassword = password
				return nil
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "DELETE", "/api/towns/abcd1234", map[string]interface{}{
			"townUpdatePassword": "pw",
		})

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if gotTownID != "abcd1234" || gotPassword != "pw" {
			t.Errorf("Expected town and password forwarded, got '%s'/'%s'", gotTownID, gotPassword)
		}
	})

	t.Run("unknown town maps to 404", func(t *testing.T) {
		mock := &MockTownService{
			DeleteTownFunc: func(ctx context.Context, townID, password string) error {
				return registry.ErrTownNotFound
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "DELETE", "/api/towns/nope", map[string]interface{}{
			"townUpdatePassword": "pw",
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rr.Code)
		}
	})
}

func TestHandleCreateConversationArea(t *testing.T) {
	t.Run("creates the area", func(t *testing.T) {
		var gotArea model.ConversationArea
		mock := &MockTownService{
			CreateConversationAreaFunc: func(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error {
				gotArea = area
				return nil
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "POST", "/api/towns/abcd1234/conversationAreas", map[string]interface{}{
			"sessionToken": "session1",
			"conversationArea": map[string]interface{}{
				"label":       "lounge",
				"topic":       "music",
				"boundingBox": map[string]float64{"x": 50, "y": 50, "width": 20, "height": 20},
			},
		})

		if rr.Code != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", rr.Code)
		}
		if gotArea.Label != "lounge" || gotArea.Box.Width != 20 {
			t.Errorf("Expected area decoded, got %+v", gotArea)
		}
	})

	t.Run("invalid session maps to 401", func(t *testing.T) {
		mock := &MockTownService{
			CreateConversationAreaFunc: func(ctx context.Context, townID, sessionToken string, area model.ConversationArea) error {
				return service.ErrInvalidSession
			},
		}
		rr := doRequest(t, NewServer(mock, nil), "POST", "/api/towns/abcd1234/conversationAreas", map[string]interface{}{
			"sessionToken": "bogus",
		})
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})
}

func TestHandleLinkSpotify(t *testing.T) {
	var gotRawToken string
	mock := &MockTownService{
		LinkSpotifyFunc: func(ctx context.Context, townID, sessionToken, rawToken string) error {
			gotRawToken = rawToken
			return nil
		},
	}
	rr := doRequest(t, NewServer(mock, nil), "POST", "/api/towns/abcd1234/spotify", map[string]interface{}{
		"sessionToken": "session1",
		"spotifyToken": map[string]interface{}{"access_token": "tok"},
	})

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	// The credential blob passes through verbatim for the adapter to parse.
	var payload map[string]string
	if err := json.Unmarshal([]byte(gotRawToken), &payload); err != nil || payload["access_token"] != "tok" {
		t.Errorf("Expected raw token forwarded, got '%s'", gotRawToken)
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(&MockTownService{}, nil)
	rr := doRequest(t, server, "GET", "/api/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected healthy status, got '%s'", resp["status"])
	}
}
