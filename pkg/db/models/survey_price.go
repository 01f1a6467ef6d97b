package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// SurveyPrice stores the per-unit price for one survey code.
type SurveyPrice struct {
	SurveyType   enums.SurveyType `gorm:"column:survey_type;primaryKey"`
	DisplayName  string           `gorm:"column:display_name;not null"`
	PricePerUnit decimal.Decimal  `gorm:"column:price_per_unit;type:numeric(12,2);not null;default:0"`
	Active       bool             `gorm:"column:active;not null"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
