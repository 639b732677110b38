package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/app"
	"github.com/noah-isme/autoparts-api/internal/catalog"
	"github.com/noah-isme/autoparts-api/internal/config"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/pricing"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/repo"
	"github.com/noah-isme/autoparts-api/migrations"
)

type seedPart struct {
	SKU   string
	Name  string
	Price string
	Stock int
}

type seedPromotion struct {
	Name     string
	Kind     pricing.DiscountKind
	Value    string
	MinOrder string
	Days     int
	SKUs     []string
}

var parts = []seedPart{
	{"BRK-PAD-F01", "Front brake pad set", "350000", 40},
	{"BRK-DSC-F01", "Front brake disc", "725000", 12},
	{"OIL-FLT-001", "Oil filter", "55000", 120},
	{"AIR-FLT-001", "Air filter", "95000", 60},
	{"SPK-PLG-IR4", "Iridium spark plug", "120000", 200},
	{"WPR-BLD-24", "Wiper blade 24in", "85000", 75},
	{"BAT-NS60", "Battery NS60", "1150000", 8},
	{"CLT-KIT-01", "Clutch kit", "1850000", 0},
}

var promotions = []seedPromotion{
	{"Brake week", pricing.KindPercentage, "15", "0", 7, []string{"BRK-PAD-F01", "BRK-DSC-F01"}},
	{"Service bundle", pricing.KindFixedAmount, "10000", "250000", 30, []string{"OIL-FLT-001", "AIR-FLT-001"}},
	{"Ignition month", pricing.KindPercentage, "10", "0", 30, []string{"SPK-PLG-IR4"}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", cfg.LogLevel).With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := migrations.Up(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := app.NewPostgres(ctx, cfg, "autoparts-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	if err := seed(ctx, pool, logger, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}
	logger.Info().Msg("seeding completed")
}

func seed(ctx context.Context, db repo.DB, logger zerolog.Logger, now time.Time) error {
	items := repo.CatalogRepo{DB: db}
	promos := repo.PromotionRepo{DB: db}

	ids := make(map[string]catalog.Item, len(parts))
	for _, p := range parts {
		item := catalog.Item{
			SKU:           p.SKU,
			Name:          p.Name,
			UnitPrice:     pricing.MustParseMoney(p.Price),
			StockQuantity: p.Stock,
			IsActive:      true,
		}
		id, err := items.Upsert(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		ids[p.SKU] = item
		logger.Info().Str("sku", p.SKU).Str("id", id.String()).Msg("catalog item upserted")
	}

	for _, sp := range promotions {
		first := ids[sp.SKUs[0]]
		existing, err := promos.PromotionsForItem(ctx, first.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			logger.Info().Str("promotion", sp.Name).Msg("already seeded, skipping")
			continue
		}
		p := promotion.Promotion{
			ID:             uuid.New(),
			Name:           sp.Name,
			DiscountType:   sp.Kind,
			DiscountValue:  pricing.MustParseMoney(sp.Value),
			StartDate:      now.Truncate(time.Hour),
			EndDate:        now.Truncate(time.Hour).Add(time.Duration(sp.Days) * 24 * time.Hour),
			MinOrderAmount: pricing.MustParseMoney(sp.MinOrder),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := p.Validate(); err != nil {
			return err
		}
		stored, err := promos.Insert(ctx, p)
		if err != nil {
			return err
		}
		linked := make([]uuid.UUID, 0, len(sp.SKUs))
		for _, sku := range sp.SKUs {
			linked = append(linked, ids[sku].ID)
		}
		if err := promos.LinkItems(ctx, stored.ID, linked); err != nil {
			return err
		}
		logger.Info().Str("promotion", sp.Name).Int("items", len(linked)).Msg("promotion seeded")
	}
	return nil
}
