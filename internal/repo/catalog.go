package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
)

// CatalogRepo reads catalog items from Postgres.
type CatalogRepo struct {
	DB DB
}

const selectCatalogItem = `
SELECT id, sku, name, unit_price::text, stock_quantity, is_active
FROM catalog_items
WHERE id = $1`

// Item implements catalog.Reader.
func (r CatalogRepo) Item(ctx context.Context, id uuid.UUID) (catalog.Item, error) {
	var (
		item  catalog.Item
		price string
	)
	err := r.DB.QueryRow(ctx, selectCatalogItem, id).
		Scan(&item.ID, &item.SKU, &item.Name, &price, &item.StockQuantity, &item.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Item{}, catalog.ErrNotFound
		}
		return catalog.Item{}, err
	}
	if item.UnitPrice, err = parseNumeric("unit_price", price); err != nil {
		return catalog.Item{}, err
	}
	return item, nil
}

const upsertCatalogItem = `
INSERT INTO catalog_items (id, sku, name, unit_price, stock_quantity, is_active)
VALUES ($1, $2, $3, $4::numeric, $5, $6)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    unit_price = EXCLUDED.unit_price,
    stock_quantity = EXCLUDED.stock_quantity,
    is_active = EXCLUDED.is_active,
    updated_at = now()
RETURNING id`

// Upsert inserts item or updates the row sharing its SKU, returning the
// stored id. The catalog is owned elsewhere; this backs seeding and tests.
func (r CatalogRepo) Upsert(ctx context.Context, item catalog.Item) (uuid.UUID, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	var id uuid.UUID
	err := r.DB.QueryRow(ctx, upsertCatalogItem,
		item.ID, item.SKU, item.Name, pricing.FormatMoney(item.UnitPrice), item.StockQuantity, item.IsActive,
	).Scan(&id)
	return id, err
}
