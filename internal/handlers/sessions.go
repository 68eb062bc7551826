package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/pkg/adventure"
	"github.com/jwebster45206/adventure-engine/pkg/engine"
)

// StartSessionRequest defines the request body for starting a session.
// A missing client id is generated.
type StartSessionRequest struct {
	ClientID  string `json:"client_id,omitempty"`
	Adventure string `json:"adventure"`
}

type ResourceRequest struct {
	Delta *int `json:"delta,omitempty"`
	Value *int `json:"value,omitempty"`
	Reset bool `json:"reset,omitempty"`
}

type TurnRequest struct {
	Action string `json:"action"` // advance | rewind
	Turn   int    `json:"turn,omitempty"`
}

type PartyRequest struct {
	Members []adventure.PartyMember `json:"members"`
}

type QueueRequest struct {
	Action string   `json:"action"` // reorder | front | advance | remove
	ID     string   `json:"id,omitempty"`
	Order  []string `json:"order,omitempty"`
}

type DrawerRequest struct {
	Expanded bool `json:"expanded"`
}

type DrawerResponse struct {
	Expanded     bool `json:"expanded"`
	AutoExpanded bool `json:"auto_expanded"`
}

type SessionsHandler struct {
	manager *sessions.Manager
	logger  *slog.Logger
}

func NewSessionsHandler(manager *sessions.Manager, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{manager: manager, logger: logger}
}

// ServeHTTP handles HTTP requests for engine sessions
// Routes:
// POST /v1/sessions                          - Start a session
// GET /v1/sessions/{client}                  - Read the session view
// DELETE /v1/sessions/{client}               - Reset the session
// POST /v1/sessions/{client}/resources/{id}  - Modify, set or reset a resource
// POST /v1/sessions/{client}/turn            - Advance or rewind the turn
// POST /v1/sessions/{client}/surge/dismiss   - Dismiss the active surge
// POST /v1/sessions/{client}/party           - Set the party roster
// POST /v1/sessions/{client}/encounter       - Start an encounter
// POST /v1/sessions/{client}/queue           - Reorder or step the combatant queue
// GET|POST /v1/sessions/{client}/drawer      - Read or set the drawer flag
// GET /v1/sessions/{client}/effects          - Drain fired effects
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/sessions")

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleStart(w, r)
		return
	}

	clientID, ok := parseClientID(w, h.logger, parts[0])
	if !ok {
		return
	}
	route := strings.Join(parts[1:], "/")

	switch {
	case route == "" && r.Method == http.MethodGet:
		h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) { return 0, "" })
	case route == "" && r.Method == http.MethodDelete:
		h.handleReset(w, r, clientID)
	case len(parts) == 3 && parts[1] == "resources" && r.Method == http.MethodPost:
		h.handleResource(w, r, clientID, parts[2])
	case route == "turn" && r.Method == http.MethodPost:
		h.handleTurn(w, r, clientID)
	case route == "surge/dismiss" && r.Method == http.MethodPost:
		h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
			if !s.Engine.DismissSurge() {
				return http.StatusConflict, "No active surge"
			}
			return 0, ""
		})
	case route == "party" && r.Method == http.MethodPost:
		h.handleParty(w, r, clientID)
	case route == "encounter" && r.Method == http.MethodPost:
		h.handleEncounter(w, r, clientID)
	case route == "queue" && r.Method == http.MethodPost:
		h.handleQueue(w, r, clientID)
	case route == "drawer" && (r.Method == http.MethodGet || r.Method == http.MethodPost):
		h.handleDrawer(w, r, clientID)
	case route == "effects" && r.Method == http.MethodGet:
		h.handleEffects(w, r, clientID)
	default:
		h.logger.Warn("Unsupported session route", "method", r.Method, "path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed for this path")
	}
}

func (h *SessionsHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if strings.TrimSpace(req.Adventure) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "adventure is required")
		return
	}

	clientID := uuid.New()
	if req.ClientID != "" {
		var ok bool
		if clientID, ok = parseClientID(w, h.logger, req.ClientID); !ok {
			return
		}
	}
	authenticated := r.Header.Get("Authorization") != ""

	s, err := h.manager.Start(r.Context(), clientID, req.Adventure, authenticated)
	if err != nil {
		if errors.Is(err, sessions.ErrUnknownAdventure) {
			writeError(w, h.logger, http.StatusNotFound, "Adventure not found")
			return
		}
		h.logger.Error("Failed to start session", "client_id", clientID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to start session")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{ClientID: clientID.String(), View: s.View()})
}

// SessionResponse is the session view returned by every session route.
type SessionResponse struct {
	ClientID string `json:"client_id"`
	sessions.View
}

// withSession loads the client's session, applies op and writes the resulting
// view. A non-zero status from op is written as an error instead.
func (h *SessionsHandler) withSession(w http.ResponseWriter, r *http.Request, clientID uuid.UUID, op func(s *sessions.Session) (int, string)) {
	s, err := h.manager.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to load session", "client_id", clientID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return
	}

	if status, msg := op(s); status != 0 {
		writeError(w, h.logger, status, msg)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SessionResponse{ClientID: clientID.String(), View: s.View()})
}

func (h *SessionsHandler) handleReset(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	if err := h.manager.Reset(r.Context(), clientID); err != nil {
		h.logger.Error("Failed to reset session", "client_id", clientID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleResource(w http.ResponseWriter, r *http.Request, clientID uuid.UUID, resourceID string) {
	var req ResourceRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	set := 0
	for _, given := range []bool{req.Delta != nil, req.Value != nil, req.Reset} {
		if given {
			set++
		}
	}
	if set != 1 {
		writeError(w, h.logger, http.StatusBadRequest, "Exactly one of delta, value or reset is required")
		return
	}

	h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
		adv := s.Adventure()
		if adv == nil {
			return http.StatusConflict, "No adventure loaded"
		}
		res, ok := adv.Resource(resourceID)
		if !ok {
			return http.StatusNotFound, "Resource not found"
		}
		switch {
		case req.Delta != nil:
			s.Engine.ModifyResource(res.ID, *req.Delta, res.Max)
		case req.Value != nil:
			s.Engine.SetResource(res.ID, *req.Value)
		default:
			s.Engine.ResetResource(res.ID, res.Initial)
		}
		return 0, ""
	})
}

func (h *SessionsHandler) handleTurn(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	var req TurnRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
		switch req.Action {
		case "advance":
			s.Engine.AdvanceTurn()
		case "rewind":
			if !s.Engine.RewindToTurn(req.Turn) {
				return http.StatusNotFound, "No snapshot for that turn"
			}
		default:
			return http.StatusBadRequest, "action must be advance or rewind"
		}
		return 0, ""
	})
}

func (h *SessionsHandler) handleParty(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	var req PartyRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
		s.Engine.SetParty(req.Members)
		return 0, ""
	})
}

func (h *SessionsHandler) handleEncounter(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
		adv := s.Adventure()
		if adv == nil {
			return http.StatusConflict, "No adventure loaded"
		}
		if err := s.Engine.StartEncounter(adv.Combatants); err != nil {
			if errors.Is(err, engine.ErrSurgeActive) {
				return http.StatusConflict, err.Error()
			}
			h.logger.Error("Failed to start encounter", "client_id", clientID, "error", err)
			return http.StatusInternalServerError, "Failed to start encounter"
		}
		return 0, ""
	})
}

func (h *SessionsHandler) handleQueue(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	var req QueueRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	h.withSession(w, r, clientID, func(s *sessions.Session) (int, string) {
		switch req.Action {
		case "reorder":
			if err := s.Engine.ReorderQueueByID(req.Order); err != nil {
				return http.StatusBadRequest, err.Error()
			}
		case "front":
			if !s.Engine.MoveCombatantToFront(req.ID) {
				return http.StatusNotFound, "Combatant not in queue"
			}
		case "advance":
			s.Engine.AdvanceCombatantTurn()
		case "remove":
			if !s.Engine.RemoveCombatant(req.ID) {
				return http.StatusNotFound, "Combatant not in queue"
			}
		default:
			return http.StatusBadRequest, "action must be reorder, front, advance or remove"
		}
		return 0, ""
	})
}

func (h *SessionsHandler) handleDrawer(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	var req DrawerRequest
	if r.Method == http.MethodPost && !decodeBody(w, r, h.logger, &req) {
		return
	}

	s, err := h.manager.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to load session", "client_id", clientID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return
	}

	var resp DrawerResponse
	if r.Method == http.MethodPost {
		s.Engine.SetDrawerExpanded(req.Expanded)
	} else {
		resp.AutoExpanded = s.Engine.ConsumeAutoExpand()
	}
	resp.Expanded = s.Engine.DrawerExpanded()
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionsHandler) handleEffects(w http.ResponseWriter, r *http.Request, clientID uuid.UUID) {
	entries, err := h.manager.DrainEffects(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to drain effects", "client_id", clientID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to drain effects")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entries)
}
