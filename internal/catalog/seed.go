package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// SeedData is a starter catalog for empty databases.
type SeedData struct {
	Tiers    []models.PackageTier
	Surveys  []models.SurveyPrice
	Features []models.ExtraFeature
}

// SeedResult counts the rows Seed wrote.
type SeedResult struct {
	Tiers    int
	Surveys  int
	Features int
}

// DefaultSeed is the launch price list.
func DefaultSeed() SeedData {
	price := decimal.NewFromInt
	tier := func(name string, kind enums.TierKind, limit int, unit, pkg int64) models.PackageTier {
		return models.PackageTier{
			Name:         name,
			Kind:         kind,
			LimitCount:   limit,
			PricePerUnit: price(unit),
			PackagePrice: price(pkg),
			Active:       true,
		}
	}
	survey := func(code enums.SurveyType, name string, unit int64) models.SurveyPrice {
		return models.SurveyPrice{SurveyType: code, DisplayName: name, PricePerUnit: price(unit), Active: true}
	}
	printOffer := price(120)

	return SeedData{
		Tiers: []models.PackageTier{
			tier("Starter", enums.TierKindRegular, 5, 40, 200),
			tier("Standard", enums.TierKindRegular, 20, 35, 700),
			tier("Bulk", enums.TierKindRegular, 100, 30, 3000),
			tier("Pro 50", enums.TierKindPro, 50, 0, 1250),
			tier("Pro 200", enums.TierKindPro, 200, 0, 4000),
		},
		Surveys: []models.SurveyPrice{
			survey(enums.SurveyTypeCS, "C.S.", 60),
			survey(enums.SurveyTypeSA, "S.A.", 50),
			survey(enums.SurveyTypeRS, "R.S.", 40),
			survey(enums.SurveyTypeBS, "B.S.", 45),
			survey(enums.SurveyTypeSARS, "S.A. and R.S.", 80),
		},
		Features: []models.ExtraFeature{
			{Name: "Digital map access", IsPrimary: true, SortOrder: 0},
			{
				Name:       "Printed copy",
				Price:      price(150),
				OfferPrice: &printOffer,
				SortOrder:  1,
				Additionals: []models.FeatureAdditional{
					{Name: "Lamination", Price: price(50), SortOrder: 0},
					{Name: "Courier delivery", Price: price(60), IsDeliveryCharge: true, SortOrder: 1},
				},
			},
			{Name: "Certified copy", Price: price(300), SortOrder: 2},
		},
	}
}

// Seed writes data when the catalog has no tiers yet and is a no-op
// otherwise, so it is safe to rerun.
func Seed(ctx context.Context, conn *gorm.DB, data SeedData) (SeedResult, error) {
	var result SeedResult
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.PackageTier{}).Count(&existing).Error; err != nil {
			return fmt.Errorf("count tiers: %w", err)
		}
		if existing > 0 {
			return nil
		}

		repo := NewRepository(tx)
		for i := range data.Tiers {
			if err := repo.SaveTier(ctx, &data.Tiers[i]); err != nil {
				return fmt.Errorf("seed tier %q: %w", data.Tiers[i].Name, err)
			}
			result.Tiers++
		}
		for i := range data.Surveys {
			if err := repo.SaveSurveyPrice(ctx, &data.Surveys[i]); err != nil {
				return fmt.Errorf("seed survey price %s: %w", data.Surveys[i].SurveyType, err)
			}
			result.Surveys++
		}
		for i := range data.Features {
			if err := repo.SaveExtraFeature(ctx, &data.Features[i]); err != nil {
				return fmt.Errorf("seed feature %q: %w", data.Features[i].Name, err)
			}
			result.Features++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
