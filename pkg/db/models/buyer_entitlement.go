package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// BuyerEntitlement grants a buyer a daily allowance of free units.
type BuyerEntitlement struct {
	UserID         uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey"`
	PackageName    string         `gorm:"column:package_name;not null"`
	Kind           enums.TierKind `gorm:"column:kind;type:tier_kind;not null;default:'regular'"`
	DailyFreeUnits int            `gorm:"column:daily_free_units;not null;default:0"`
	Active         bool           `gorm:"column:active;not null"`
	ExpiresAt      *time.Time     `gorm:"column:expires_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the entitlement grants anything at the given time.
func (e BuyerEntitlement) ActiveAt(now time.Time) bool {
	if !e.Active {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}
