package cart

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/common"
	"github.com/noah-isme/autoparts-api/internal/quote"
)

// Handler exposes guest cart endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addItemRequest struct {
	ItemID   string `json:"itemId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=999"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=999"`
}

// Create handles POST /carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get handles GET /carts/{cartID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "cartID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// AddItem handles POST /carts/{cartID}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "cartID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.AddItem(r.Context(), id, uuid.MustParse(req.ItemID), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// UpdateItem handles PATCH /carts/{cartID}/items/{itemID}. A quantity of zero
// removes the line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, ok := lineParams(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.UpdateQuantity(r.Context(), id, itemID, *req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /carts/{cartID}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, ok := lineParams(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func lineParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, err := common.URLParamUUID(r, "cartID")
	if err != nil {
		common.WriteError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err := common.URLParamUUID(r, "itemID")
	if err != nil {
		common.WriteError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return id, itemID, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart line not found", nil)
	case errors.Is(err, ErrItemUnavailable):
		common.JSONError(w, http.StatusNotFound, "ITEM_UNAVAILABLE", "item is not available", nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, ErrCartBusy):
		common.JSONError(w, http.StatusServiceUnavailable, "CART_BUSY", "cart is being updated, retry shortly", nil)
	default:
		quote.WriteError(w, err)
	}
}
