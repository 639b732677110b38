package promotion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown or soft-deleted promotions and for
	// items missing from the catalog.
	ErrNotFound = errors.New("promotion: not found")
	// ErrUnavailable is returned when a dependency lookup failed transiently.
	ErrUnavailable = errors.New("promotion: lookup unavailable")
	// ErrCatalogUnavailable marks an outage of the catalog itself. No base
	// price is known so callers cannot degrade.
	ErrCatalogUnavailable = fmt.Errorf("catalog %w", ErrUnavailable)
	// ErrInvalidPromotion rejects promotions that fail lifecycle validation.
	ErrInvalidPromotion = fmt.Errorf("promotion: invalid: %w", pricing.ErrInvalidInput)
)

// Promotion is a time-windowed discount linked to catalog items.
type Promotion struct {
	ID             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	DiscountType   pricing.DiscountKind `json:"discountType"`
	DiscountValue  decimal.Decimal      `json:"discountValue"`
	StartDate      time.Time            `json:"startDate"`
	EndDate        time.Time            `json:"endDate"`
	MinOrderAmount pricing.Money        `json:"minOrderAmount"`
	IsActive       bool                 `json:"isActive"`
	IsDeleted      bool                 `json:"isDeleted"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// IsActiveNow reports whether p is enabled, not deleted and inside its window
// at now. Both window ends are inclusive.
func (p Promotion) IsActiveNow(now time.Time) bool {
	if !p.IsActive || p.IsDeleted {
		return false
	}
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// Discount returns the pricing discount p grants.
func (p Promotion) Discount() (pricing.Discount, error) {
	return pricing.NewDiscount(p.DiscountType, p.DiscountValue)
}

// Validate checks the rules every stored promotion must satisfy.
func (p Promotion) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPromotion)
	}
	if _, err := p.Discount(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPromotion, err)
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidPromotion)
	}
	if !p.EndDate.After(p.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidPromotion)
	}
	if p.MinOrderAmount.IsNegative() {
		return fmt.Errorf("%w: min order amount is negative", ErrInvalidPromotion)
	}
	return nil
}

// Boundaries returns the start and end instants that lie after now.
func (p Promotion) Boundaries(now time.Time) []time.Time {
	var out []time.Time
	for _, at := range []time.Time{p.StartDate, p.EndDate} {
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out
}

// CreateInput carries the fields of a new promotion.
type CreateInput struct {
	Name           string
	DiscountType   pricing.DiscountKind
	DiscountValue  decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	MinOrderAmount pricing.Money
	IsActive       *bool
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name           *string
	DiscountType   *pricing.DiscountKind
	DiscountValue  *decimal.Decimal
	StartDate      *time.Time
	EndDate        *time.Time
	MinOrderAmount *pricing.Money
	IsActive       *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.DiscountType == nil && p.DiscountValue == nil &&
		p.StartDate == nil && p.EndDate == nil && p.MinOrderAmount == nil && p.IsActive == nil
}

// Apply returns a copy of base with the supplied fields replaced. Amounts are
// rounded half-even to the stored scale.
func (p Patch) Apply(base Promotion) Promotion {
	out := base
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.DiscountType != nil {
		out.DiscountType = *p.DiscountType
	}
	if p.DiscountValue != nil {
		out.DiscountValue = pricing.RoundMoney(*p.DiscountValue)
	}
	if p.StartDate != nil {
		out.StartDate = p.StartDate.UTC()
	}
	if p.EndDate != nil {
		out.EndDate = p.EndDate.UTC()
	}
	if p.MinOrderAmount != nil {
		out.MinOrderAmount = pricing.RoundMoney(*p.MinOrderAmount)
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	return out
}

// Resolution is the outcome of resolving an item's promotion.
type Resolution struct {
	Item      catalog.Item
	Promotion *Promotion
	Discount  pricing.Discount
}
