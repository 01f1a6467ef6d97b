package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	"github.com/angelmondragon/mapfinderz-backend/pkg/types"
)

// OrderDTO is the buyer-facing view of a stored order.
type OrderDTO struct {
	ID                 string            `json:"id"`
	Kind               enums.OrderKind   `json:"kind"`
	Status             enums.OrderStatus `json:"status"`
	PackageID          *string           `json:"package_id,omitempty"`
	Amount             decimal.Decimal   `json:"amount"`
	IsFree             bool              `json:"is_free"`
	UnitCount          int               `json:"unit_count"`
	UnitNames          []string          `json:"unit_names"`
	ExtraFeatureIDs    []string          `json:"extra_feature_ids"`
	SurveyType         *string           `json:"survey_type,omitempty"`
	Note               *string           `json:"note,omitempty"`
	DeliveryAddress    *string           `json:"delivery_address,omitempty"`
	MobileNumber       *string           `json:"mobile_number,omitempty"`
	PaymentRedirectURL *string           `json:"payment_redirect_url,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// OrderList is one page of a buyer's orders.
type OrderList = types.Page[OrderDTO]

// FromModel maps a stored order to its DTO.
func FromModel(m models.MapOrder) OrderDTO {
	unitNames := []string(m.UnitNames)
	if unitNames == nil {
		unitNames = []string{}
	}
	return OrderDTO{
		ID:                 m.ID.String(),
		Kind:               m.Kind,
		Status:             m.Status,
		PackageID:          m.PackageID,
		Amount:             m.Amount,
		IsFree:             m.IsFree,
		UnitCount:          m.UnitCount,
		UnitNames:          unitNames,
		ExtraFeatureIDs:    m.ExtraFeatureIDs.Strings(),
		SurveyType:         m.SurveyType,
		Note:               m.Note,
		DeliveryAddress:    m.DeliveryAddress,
		MobileNumber:       m.MobileNumber,
		PaymentRedirectURL: m.PaymentRedirectURL,
		CreatedAt:          m.CreatedAt,
	}
}
