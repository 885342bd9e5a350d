package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/townlet/townlet-server/music"
	"github.com/townlet/townlet-server/town/controller"
	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/town/registry"
	"github.com/townlet/townlet-server/town/service"
	ws "github.com/townlet/townlet-server/transport/websocket"
)

// Server is the REST API server.
type Server struct {
	service service.TownService
	hub     *ws.Hub
	router  *mux.Router
}

// NewServer creates an API server over the town service; hub may be nil
// when the socket endpoint is served elsewhere (tests).
func NewServer(townService service.TownService, hub *ws.Hub) *Server {
	s := &Server{
		service: townService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Town management
	api.HandleFunc("/towns", s.handleCreateTown).Methods("POST")
	api.HandleFunc("/towns", s.handleListTowns).Methods("GET")
	api.HandleFunc("/towns/{townID}", s.handleUpdateTown).Methods("PATCH")
	api.HandleFunc("/towns/{townID}", s.handleDeleteTown).Methods("DELETE")

	// Session admission
	api.HandleFunc("/sessions", s.handleJoinTown).Methods("POST")

	// In-town resources
	api.HandleFunc("/towns/{townID}/conversationAreas", s.handleCreateConversationArea).Methods("POST")
	api.HandleFunc("/towns/{townID}/spotify", s.handleLinkSpotify).Methods("POST")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// envelope is the uniform response wrapper: a success flag plus either a
// payload or a human-readable message.
type envelope struct {
	IsOK     bool        `json:"isOK"`
	Response interface{} `json:"response,omitempty"`
	Message  string      `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, payload interface{}) {
	respondJSON(w, http.StatusOK, envelope{IsOK: true, Response: payload})
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), envelope{IsOK: false, Message: err.Error()})
}

// statusFor maps service errors onto HTTP statuses. Anything unrecognized
// is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrTownNotFound),
		errors.Is(err, controller.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, registry.ErrEmptyTownName),
		errors.Is(err, registry.ErrNoFieldsToSet),
		errors.Is(err, service.ErrEmptyUserName),
		errors.Is(err, service.ErrEmptyAreaLabel),
		errors.Is(err, service.ErrEmptyAreaTopic),
		errors.Is(err, service.ErrAreaNotCreatable),
		errors.Is(err, music.ErrMalformedToken),
		errors.Is(err, music.ErrTownNotRegistered):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrTownFull):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Town Handlers

func (s *Server) handleCreateTown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendlyName     string `json:"friendlyName"`
		IsPubliclyListed bool   `json:"isPubliclyListed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	result, err := s.service.CreateTown(r.Context(), req.FriendlyName, req.IsPubliclyListed)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{IsOK: true, Response: result})
}

func (s *Server) handleListTowns(w http.ResponseWriter, r *http.Request) {
	towns, err := s.service.ListTowns(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]interface{}{"towns": towns})
}

func (s *Server) handleUpdateTown(w http.ResponseWriter, r *http.Request) {
	townID := mux.Vars(r)["townID"]

	var req struct {
		Password         string  `json:"townUpdatePassword"`
		FriendlyName     *string `json:"friendlyName,omitempty"`
		IsPubliclyListed *bool   `json:"isPubliclyListed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	if err := s.service.UpdateTown(r.Context(), townID, req.Password, req.FriendlyName, req.IsPubliclyListed); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, nil)
}

func (s *Server) handleDeleteTown(w http.ResponseWriter, r *http.Request) {
	townID := mux.Vars(r)["townID"]

	var req struct {
		Password string `json:"townUpdatePassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	if err := s.service.DeleteTown(r.Context(), townID, req.Password); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, nil)
}

// Session Handlers

func (s *Server) handleJoinTown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"userName"`
		TownID   string `json:"townID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	result, err := s.service.JoinTown(r.Context(), req.UserName, req.TownID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{IsOK: true, Response: result})
}

// In-town Handlers

func (s *Server) handleCreateConversationArea(w http.ResponseWriter, r *http.Request) {
	townID := mux.Vars(r)["townID"]

	var req struct {
		SessionToken     string                 `json:"sessionToken"`
		ConversationArea model.ConversationArea `json:"conversationArea"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	if err := s.service.CreateConversationArea(r.Context(), townID, req.SessionToken, req.ConversationArea); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{IsOK: true})
}

func (s *Server) handleLinkSpotify(w http.ResponseWriter, r *http.Request) {
	townID := mux.Vars(r)["townID"]

	var req struct {
		SessionToken string          `json:"sessionToken"`
		SpotifyToken json.RawMessage `json:"spotifyToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{IsOK: false, Message: "invalid request body"})
		return
	}

	if err := s.service.LinkSpotify(r.Context(), townID, req.SessionToken, string(req.SpotifyToken)); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, nil)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
