package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/mapfinderz-backend/pkg/db/types"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// MapOrder is a submitted checkout, free or pending payment.
type MapOrder struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID             uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Kind               enums.OrderKind   `gorm:"column:kind;type:order_kind;not null;default:'file'"`
	Status             enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	PackageID          *string           `gorm:"column:package_id"`
	Amount             decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	IsFree             bool              `gorm:"column:is_free;not null;default:false"`
	UnitCount          int               `gorm:"column:unit_count;not null"`
	UnitNames          pq.StringArray    `gorm:"column:unit_names;type:text[]"`
	ExtraFeatureIDs    dbtypes.UUIDArray `gorm:"column:extra_feature_ids;type:uuid[]"`
	SurveyType         *string           `gorm:"column:survey_type"`
	Note               *string           `gorm:"column:note"`
	DeliveryAddress    *string           `gorm:"column:delivery_address"`
	MobileNumber       *string           `gorm:"column:mobile_number"`
	PaymentRedirectURL *string           `gorm:"column:payment_redirect_url"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
