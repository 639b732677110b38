package promotion

import (
	"errors"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/autoparts-api/internal/common"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// Handler exposes administrative promotion endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	DiscountType   string           `json:"discountType" validate:"required,oneof=percentage fixed_amount"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	StartDate      *time.Time       `json:"startDate"`
	EndDate        *time.Time       `json:"endDate"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	IsActive       *bool            `json:"isActive"`
}

type patchRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=200"`
	DiscountType   *string          `json:"discountType" validate:"omitempty,oneof=percentage fixed_amount"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	StartDate      *time.Time       `json:"startDate"`
	EndDate        *time.Time       `json:"endDate"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount"`
	IsActive       *bool            `json:"isActive"`
}

type linkRequest struct {
	ItemIDs []uuid.UUID `json:"itemIds" validate:"required,min=1,max=500"`
}

type promotionResponse struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Discount       *pricing.DiscountView `json:"discount"`
	StartDate      time.Time             `json:"startDate"`
	EndDate        time.Time             `json:"endDate"`
	MinOrderAmount string                `json:"minOrderAmount"`
	IsActive       bool                  `json:"isActive"`
	IsActiveNow    bool                  `json:"isActiveNow"`
	ItemIDs        []uuid.UUID           `json:"itemIds"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Create registers a promotion.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.DiscountValue == nil || req.StartDate == nil || req.EndDate == nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", "discountValue, startDate and endDate are required", nil)
		return
	}
	in := CreateInput{
		Name:          req.Name,
		DiscountType:  pricing.DiscountKind(req.DiscountType),
		DiscountValue: *req.DiscountValue,
		StartDate:     *req.StartDate,
		EndDate:       *req.EndDate,
		IsActive:      req.IsActive,
	}
	if req.MinOrderAmount != nil {
		in.MinOrderAmount = *req.MinOrderAmount
	}
	view, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, toResponse(view))
}

// Get returns a promotion with its current activity.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "promotionID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, toResponse(view))
}

// Update applies a partial update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "promotionID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req patchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	patch := Patch{
		Name:           req.Name,
		DiscountValue:  req.DiscountValue,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		MinOrderAmount: req.MinOrderAmount,
		IsActive:       req.IsActive,
	}
	if req.DiscountType != nil {
		kind := pricing.DiscountKind(strings.TrimSpace(*req.DiscountType))
		patch.DiscountType = &kind
	}
	view, err := h.Svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, toResponse(view))
}

// Delete soft-deletes a promotion.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "promotionID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkItems associates catalog items with a promotion.
func (h *Handler) LinkItems(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "promotionID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req linkRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.Validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.Svc.LinkItems(r.Context(), id, req.ItemIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, toResponse(view))
}

// UnlinkItem removes one item association.
func (h *Handler) UnlinkItem(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "promotionID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	itemID, err := common.URLParamUUID(r, "itemID")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.UnlinkItem(r.Context(), id, itemID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(v View) promotionResponse {
	var discount *pricing.DiscountView
	if d, err := v.Discount(); err == nil {
		discount = pricing.DescribeDiscount(d)
	}
	return promotionResponse{
		ID:             v.ID,
		Name:           v.Name,
		Discount:       discount,
		StartDate:      v.StartDate,
		EndDate:        v.EndDate,
		MinOrderAmount: pricing.FormatMoney(v.MinOrderAmount),
		IsActive:       v.IsActive,
		IsActiveNow:    v.IsActiveNow,
		ItemIDs:        v.ItemIDs,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, pricing.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion or item not found", nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "promotion store unavailable", nil)
	default:
		common.WriteError(w, err)
	}
}
