package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
)

// PromotionRepo stores promotions and product_promotions links in Postgres.
type PromotionRepo struct {
	DB DB
}

const promotionColumns = `p.id, p.name, p.discount_type, p.discount_value::text, p.start_date, p.end_date,
p.min_order_amount::text, p.is_active, p.is_deleted, p.created_at, p.updated_at`

// PromotionsForItem returns the non-deleted promotions linked to itemID,
// whatever their window.
func (r PromotionRepo) PromotionsForItem(ctx context.Context, itemID uuid.UUID) ([]promotion.Promotion, error) {
	rows, err := r.DB.Query(ctx, `
SELECT `+promotionColumns+`
FROM promotions p
JOIN product_promotions pp ON pp.promotion_id = p.id
WHERE pp.catalog_item_id = $1 AND NOT p.is_deleted
ORDER BY p.start_date DESC, p.id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []promotion.Promotion{}
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Promotion returns a promotion by id, including soft-deleted rows.
func (r PromotionRepo) Promotion(ctx context.Context, id uuid.UUID) (promotion.Promotion, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions p WHERE p.id = $1`, id)
	p, err := scanPromotion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return promotion.Promotion{}, promotion.ErrNotFound
	}
	return p, err
}

// Insert stores a new promotion.
func (r PromotionRepo) Insert(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	row := r.DB.QueryRow(ctx, `
INSERT INTO promotions AS p (id, name, discount_type, discount_value, start_date, end_date,
    min_order_amount, is_active, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::numeric, $8, $9, $10, $11)
RETURNING `+promotionColumns,
		p.ID, p.Name, string(p.DiscountType), p.DiscountValue.String(), p.StartDate, p.EndDate,
		pricing.FormatMoney(p.MinOrderAmount), p.IsActive, p.IsDeleted, p.CreatedAt, p.UpdatedAt)
	stored, err := scanPromotion(row)
	if err != nil {
		return promotion.Promotion{}, mapWriteError(err)
	}
	return stored, nil
}

// Update overwrites the mutable columns of an existing promotion.
func (r PromotionRepo) Update(ctx context.Context, p promotion.Promotion) (promotion.Promotion, error) {
	row := r.DB.QueryRow(ctx, `
UPDATE promotions AS p
SET name = $2, discount_type = $3, discount_value = $4::numeric, start_date = $5, end_date = $6,
    min_order_amount = $7::numeric, is_active = $8, is_deleted = $9, updated_at = $10
WHERE p.id = $1
RETURNING `+promotionColumns,
		p.ID, p.Name, string(p.DiscountType), p.DiscountValue.String(), p.StartDate, p.EndDate,
		pricing.FormatMoney(p.MinOrderAmount), p.IsActive, p.IsDeleted, p.UpdatedAt)
	stored, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promotion.Promotion{}, promotion.ErrNotFound
		}
		return promotion.Promotion{}, mapWriteError(err)
	}
	return stored, nil
}

// LinkItems associates itemIDs with promotion id in one statement. Existing
// links are kept; an unknown item fails the whole call with catalog.ErrNotFound.
func (r PromotionRepo) LinkItems(ctx context.Context, id uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	ids := make([]string, len(itemIDs))
	for i, itemID := range itemIDs {
		ids[i] = itemID.String()
	}
	_, err := r.DB.Exec(ctx, `
INSERT INTO product_promotions (promotion_id, catalog_item_id)
SELECT $1::uuid, item_id FROM unnest($2::uuid[]) AS item_id
ON CONFLICT DO NOTHING`, id, ids)
	if err != nil && pgErrorCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("link items to promotion %s: %w", id, catalog.ErrNotFound)
	}
	return err
}

// UnlinkItem removes one association, returning promotion.ErrNotFound when absent.
func (r PromotionRepo) UnlinkItem(ctx context.Context, id, itemID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM product_promotions WHERE promotion_id = $1 AND catalog_item_id = $2`, id, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// LinkedItems lists the catalog items linked to promotion id.
func (r PromotionRepo) LinkedItems(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT catalog_item_id FROM product_promotions WHERE promotion_id = $1 ORDER BY created_at, catalog_item_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []uuid.UUID{}
	for rows.Next() {
		var itemID uuid.UUID
		if err := rows.Scan(&itemID); err != nil {
			return nil, err
		}
		out = append(out, itemID)
	}
	return out, rows.Err()
}

func scanPromotion(row pgx.Row) (promotion.Promotion, error) {
	var (
		p                     promotion.Promotion
		kind, value, minOrder string
	)
	err := row.Scan(&p.ID, &p.Name, &kind, &value, &p.StartDate, &p.EndDate,
		&minOrder, &p.IsActive, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return promotion.Promotion{}, err
	}
	p.DiscountType = pricing.DiscountKind(kind)
	if p.DiscountValue, err = parseNumeric("discount_value", value); err != nil {
		return promotion.Promotion{}, err
	}
	if p.MinOrderAmount, err = parseNumeric("min_order_amount", minOrder); err != nil {
		return promotion.Promotion{}, err
	}
	p.StartDate, p.EndDate = p.StartDate.UTC(), p.EndDate.UTC()
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

func mapWriteError(err error) error {
	if pgErrorCode(err) == pgCheckViolation {
		return fmt.Errorf("%w: %v", promotion.ErrInvalidPromotion, err)
	}
	return err
}
