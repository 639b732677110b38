package quote

import (
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/common"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
)

// Handler exposes stateless pricing endpoints.
type Handler struct {
	Quoter   *Quoter
	Validate *validator.Validate
}

type quoteRequest struct {
	Lines []LineRequest `json:"lines" validate:"required,min=1,max=100,dive"`
}

// ItemPrice returns a single unit of an item priced with its active promotion.
func (h *Handler) ItemPrice(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "itemID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	lines, err := h.Quoter.PriceItems(r.Context(), []uuid.UUID{id})
	if err != nil {
		WriteError(w, err)
		return
	}
	if len(lines) == 0 || !lines[0].Available {
		common.JSONError(w, http.StatusNotFound, "ITEM_UNAVAILABLE", "item is not available", map[string]any{"itemId": id})
		return
	}
	common.Data(w, http.StatusOK, lines[0])
}

// Quote prices a set of lines without storing them.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Quoter.Quote(r.Context(), req.Lines)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

// WriteError maps pricing and resolution errors to HTTP responses.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, pricing.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, promotion.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "ITEM_UNAVAILABLE", "item is not available", nil)
	case errors.Is(err, promotion.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog temporarily unavailable", nil)
	default:
		common.WriteError(w, err)
	}
}
