package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// Repository reads and maintains the pricing catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveTiers(ctx context.Context) ([]models.PackageTier, error)
	FindSurveyPrice(ctx context.Context, surveyType enums.SurveyType) (*models.SurveyPrice, error)
	ListExtraFeatures(ctx context.Context) ([]models.ExtraFeature, error)
	SaveTier(ctx context.Context, tier *models.PackageTier) error
	SaveSurveyPrice(ctx context.Context, price *models.SurveyPrice) error
	SaveExtraFeature(ctx context.Context, feature *models.ExtraFeature) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveTiers(ctx context.Context) ([]models.PackageTier, error) {
	var tiers []models.PackageTier
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("kind ASC").
		Order("limit_count ASC").
		Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// FindSurveyPrice returns nil without error when no row exists for the code.
func (r *repository) FindSurveyPrice(ctx context.Context, surveyType enums.SurveyType) (*models.SurveyPrice, error) {
	var price models.SurveyPrice
	err := r.db.WithContext(ctx).
		Where("survey_type = ?", surveyType).
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *repository) ListExtraFeatures(ctx context.Context) ([]models.ExtraFeature, error) {
	var features []models.ExtraFeature
	if err := r.db.WithContext(ctx).
		Preload("Additionals", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("name ASC")
		}).
		Order("sort_order ASC").
		Order("name ASC").
		Find(&features).Error; err != nil {
		return nil, err
	}
	return features, nil
}

func (r *repository) SaveTier(ctx context.Context, tier *models.PackageTier) error {
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(tier).Error
}

func (r *repository) SaveSurveyPrice(ctx context.Context, price *models.SurveyPrice) error {
	return r.db.WithContext(ctx).Save(price).Error
}

// SaveExtraFeature upserts the feature together with its additionals.
func (r *repository) SaveExtraFeature(ctx context.Context, feature *models.ExtraFeature) error {
	if feature.ID == uuid.Nil {
		feature.ID = uuid.New()
	}
	for i := range feature.Additionals {
		if feature.Additionals[i].ID == uuid.Nil {
			feature.Additionals[i].ID = uuid.New()
		}
		feature.Additionals[i].FeatureID = feature.ID
	}
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(feature).Error
}
