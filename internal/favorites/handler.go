package favorites

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/common"
	"github.com/noah-isme/autoparts-api/internal/quote"
)

// Handler exposes the authenticated favorites endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	lines, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, lines)
}

// Add handles PUT /favorites/{itemID}.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, itemID, ok := params(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Add(r.Context(), userID, itemID); err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"itemId": itemID, "favorited": true})
}

// Remove handles DELETE /favorites/{itemID}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, itemID, ok := params(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Remove(r.Context(), userID, itemID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func params(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", uuid.Nil, false
	}
	itemID, err := common.URLParamUUID(r, "itemID")
	if err != nil {
		common.WriteError(w, err)
		return "", uuid.Nil, false
	}
	return userID, itemID, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemUnavailable):
		common.JSONError(w, http.StatusNotFound, "ITEM_UNAVAILABLE", "item is not available", nil)
	case errors.Is(err, ErrNotFavorited):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item is not a favorite", nil)
	default:
		quote.WriteError(w, err)
	}
}
