package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExtraFeature is an optional add-on service offered at checkout.
type ExtraFeature struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	OfferPrice  *decimal.Decimal    `gorm:"column:offer_price;type:numeric(12,2)"`
	IsPrimary   bool                `gorm:"column:is_primary;not null;default:false"`
	SortOrder   int                 `gorm:"column:sort_order;not null;default:0"`
	Additionals []FeatureAdditional `gorm:"foreignKey:FeatureID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// FeatureAdditional is a sub-option nested under an ExtraFeature.
type FeatureAdditional struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	FeatureID        uuid.UUID        `gorm:"column:feature_id;type:uuid;not null;index"`
	Name             string           `gorm:"column:name;not null"`
	Price            decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	OfferPrice       *decimal.Decimal `gorm:"column:offer_price;type:numeric(12,2)"`
	IsDeliveryCharge bool             `gorm:"column:is_delivery_charge;not null;default:false"`
	SortOrder        int              `gorm:"column:sort_order;not null;default:0"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
}
