package catalog

import (
	"context"
	"fmt"

	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

// Service exposes the catalog to pricing and checkout. It satisfies
// pricing.TierSource, pricing.SurveySource and FeatureSource.
type Service interface {
	PackageTiers(ctx context.Context) (pricing.TierSet, error)
	SurveyPrice(ctx context.Context, surveyType enums.SurveyType, count int) (*pricing.SurveyPrice, error)
	ExtraFeatures(ctx context.Context) ([]features.Feature, error)
}

// FeatureSource returns the extra-feature catalog.
type FeatureSource interface {
	ExtraFeatures(ctx context.Context) ([]features.Feature, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service over repo.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) PackageTiers(ctx context.Context) (pricing.TierSet, error) {
	rows, err := s.repo.ListActiveTiers(ctx)
	if err != nil {
		return pricing.TierSet{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list package tiers")
	}
	all := make([]pricing.Tier, 0, len(rows))
	for _, row := range rows {
		all = append(all, tierFromModel(row))
	}
	regular, pro := pricing.SplitTiers(all)
	return pricing.TierSet{Regular: regular, Pro: pro}, nil
}

// SurveyPrice returns nil when the code has no active price.
func (s *service) SurveyPrice(ctx context.Context, surveyType enums.SurveyType, count int) (*pricing.SurveyPrice, error) {
	row, err := s.repo.FindSurveyPrice(ctx, surveyType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find survey price")
	}
	if row == nil || !row.Active {
		return nil, nil
	}
	price := pricing.SurveyPrice{
		SurveyType:   row.SurveyType,
		PricePerUnit: row.PricePerUnit,
		DisplayName:  row.DisplayName,
	}
	if count > 0 {
		price.TotalPrice = pricing.SurveyTotal(count, price)
	}
	return &price, nil
}

func (s *service) ExtraFeatures(ctx context.Context) ([]features.Feature, error) {
	rows, err := s.repo.ListExtraFeatures(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list extra features")
	}
	out := make([]features.Feature, 0, len(rows))
	for _, row := range rows {
		out = append(out, featureFromModel(row))
	}
	return out, nil
}

func tierFromModel(m models.PackageTier) pricing.Tier {
	return pricing.Tier{
		ID:           m.ID.String(),
		Name:         m.Name,
		Limit:        m.LimitCount,
		PricePerUnit: m.PricePerUnit,
		PackagePrice: m.PackagePrice,
		Kind:         m.Kind,
	}
}

func featureFromModel(m models.ExtraFeature) features.Feature {
	feature := features.Feature{
		ID:         m.ID.String(),
		Name:       m.Name,
		Price:      m.Price,
		OfferPrice: m.OfferPrice,
		IsPrimary:  m.IsPrimary,
	}
	for _, add := range m.Additionals {
		feature.Additionals = append(feature.Additionals, features.Additional{
			ID:               add.ID.String(),
			Name:             add.Name,
			Price:            add.Price,
			OfferPrice:       add.OfferPrice,
			IsDeliveryCharge: add.IsDeliveryCharge,
		})
	}
	return feature
}
