package quota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
)

// EntitlementRepository loads buyer entitlements.
type EntitlementRepository interface {
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.BuyerEntitlement, error)
	Upsert(ctx context.Context, entitlement *models.BuyerEntitlement) error
}

type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository returns a gorm-backed entitlement repository.
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

func (r *entitlementRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.BuyerEntitlement, error) {
	var ent models.BuyerEntitlement
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

func (r *entitlementRepository) Upsert(ctx context.Context, entitlement *models.BuyerEntitlement) error {
	return r.db.WithContext(ctx).Save(entitlement).Error
}
