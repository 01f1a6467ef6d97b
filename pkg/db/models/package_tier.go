package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// PackageTier is one band of the tiered package price list.
type PackageTier struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name         string          `gorm:"column:name;not null"`
	Kind         enums.TierKind  `gorm:"column:kind;type:tier_kind;not null;default:'regular'"`
	LimitCount   int             `gorm:"column:limit_count;not null"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit;type:numeric(12,2);not null;default:0"`
	PackagePrice decimal.Decimal `gorm:"column:package_price;type:numeric(12,2);not null;default:0"`
	Active       bool            `gorm:"column:active;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
