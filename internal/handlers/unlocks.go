package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/adventure-engine/pkg/storage"
)

type UnlocksResponse struct {
	ClientID string   `json:"client_id"`
	Unlocks  []string `json:"unlocks"`
}

type UnlocksHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewUnlocksHandler(storage storage.Storage, logger *slog.Logger) *UnlocksHandler {
	return &UnlocksHandler{storage: storage, logger: logger}
}

// ServeHTTP handles unlock requests
// Routes:
// GET /v1/unlocks/{client}           - List unlocks
// GET /v1/unlocks/{client}/{unlock}  - Check one unlock
// DELETE /v1/unlocks/{client}        - Clear unlocks
func (h *UnlocksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/unlocks")
	if len(parts) < 1 || len(parts) > 2 {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid path. Expected /v1/unlocks/{clientID}")
		return
	}
	clientID, ok := parseClientID(w, h.logger, parts[0])
	if !ok {
		return
	}
	ctx := r.Context()

	switch {
	case r.Method == http.MethodGet && len(parts) == 2:
		unlocked, err := h.storage.IsUnlocked(ctx, clientID, parts[1])
		if err != nil {
			h.logger.Error("Failed to check unlock", "client_id", clientID, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to check unlock")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, map[string]any{"id": parts[1], "unlocked": unlocked})

	case r.Method == http.MethodGet:
		unlocks, err := h.storage.ListUnlocks(ctx, clientID)
		if err != nil {
			h.logger.Error("Failed to list unlocks", "client_id", clientID, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to list unlocks")
			return
		}
		if unlocks == nil {
			unlocks = []string{}
		}
		writeJSON(w, h.logger, http.StatusOK, UnlocksResponse{ClientID: clientID.String(), Unlocks: unlocks})

	case r.Method == http.MethodDelete && len(parts) == 1:
		if err := h.storage.ClearUnlocks(ctx, clientID); err != nil {
			h.logger.Error("Failed to clear unlocks", "client_id", clientID, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to clear unlocks")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	}
}
