package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// ErrNotFound is returned when a catalog item does not exist.
var ErrNotFound = errors.New("catalog: item not found")

// Item is the priced view of a sellable part.
type Item struct {
	ID            uuid.UUID     `json:"id"`
	SKU           string        `json:"sku"`
	Name          string        `json:"name"`
	UnitPrice     pricing.Money `json:"unitPrice"`
	StockQuantity int           `json:"stockQuantity"`
	IsActive      bool          `json:"isActive"`
}

// InStock reports whether qty units can be fulfilled.
func (i Item) InStock(qty int) bool {
	return qty > 0 && i.StockQuantity >= qty
}

// Reader looks up catalog items by id.
type Reader interface {
	Item(ctx context.Context, id uuid.UUID) (Item, error)
}
