package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/jwebster45206/adventure-engine/pkg/storage"
)

// AdventureSummary is one entry of the adventure listing.
type AdventureSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type AdventuresHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewAdventuresHandler(storage storage.Storage, logger *slog.Logger) *AdventuresHandler {
	return &AdventuresHandler{storage: storage, logger: logger}
}

// ServeHTTP handles adventure catalog requests
// Routes:
// GET /v1/adventures      - List adventures
// GET /v1/adventures/{id} - Read one adventure
func (h *AdventuresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	parts := pathParts(r, "/v1/adventures")
	switch len(parts) {
	case 0:
		h.handleList(w, r)
	case 1:
		h.handleGet(w, r, parts[0])
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *AdventuresHandler) handleList(w http.ResponseWriter, r *http.Request) {
	titles, err := h.storage.ListAdventures(r.Context())
	if err != nil {
		h.logger.Error("Failed to list adventures", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list adventures")
		return
	}

	list := make([]AdventureSummary, 0, len(titles))
	for id, title := range titles {
		list = append(list, AdventureSummary{ID: id, Title: title})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, h.logger, http.StatusOK, list)
}

func (h *AdventuresHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	adv, err := h.storage.GetAdventure(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAdventureNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Adventure not found")
			return
		}
		h.logger.Error("Failed to get adventure", "error", err, "adventure_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to retrieve adventure")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, adv)
}
