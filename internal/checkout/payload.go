package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

// Payload is the order submission. Empty optional fields are omitted.
type Payload struct {
	PackageID       string          `json:"package_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	UnitNames       []string        `json:"unit_names,omitempty"`
	UnitCount       int             `json:"unit_count"`
	ExtraFeatureIDs []string        `json:"extra_feature_ids,omitempty"`
	Note            string          `json:"note,omitempty"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	MobileNumber    string          `json:"mobile_number,omitempty"`
	IsFreeOrder     bool            `json:"is_free_order"`
	OrderKind       enums.OrderKind `json:"order_kind,omitempty"`
	SurveyType      string          `json:"survey_type,omitempty"`
	Email           string          `json:"email,omitempty"`
	Password        string          `json:"password,omitempty"`
}

// Normalize trims text fields and drops empty optional values.
func (p Payload) Normalize() Payload {
	out := p
	out.PackageID = strings.TrimSpace(p.PackageID)
	out.Note = strings.TrimSpace(p.Note)
	out.DeliveryAddress = strings.TrimSpace(p.DeliveryAddress)
	out.MobileNumber = strings.TrimSpace(p.MobileNumber)
	out.SurveyType = strings.TrimSpace(p.SurveyType)
	out.Email = strings.ToLower(strings.TrimSpace(p.Email))

	out.UnitNames = nil
	for _, name := range p.UnitNames {
		out.UnitNames = append(out.UnitNames, strings.TrimSpace(name))
	}

	out.ExtraFeatureIDs = nil
	for _, id := range p.ExtraFeatureIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out.ExtraFeatureIDs = append(out.ExtraFeatureIDs, trimmed)
		}
	}
	if out.OrderKind == "" {
		out.OrderKind = enums.OrderKindFile
	}
	return out
}

// Validate checks the payload invariants: a non-negative amount, a zero
// amount on free orders and a unit count that matches the names of file orders.
func (p Payload) Validate() error {
	if p.Amount.IsNegative() {
		return pkgerrors.ValidationField("amount", "amount must not be negative")
	}
	if p.IsFreeOrder && p.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeInternal, "free order carries a positive amount").
			WithDetails(map[string]any{"amount": p.Amount.String()})
	}
	if !p.OrderKind.IsValid() {
		return pkgerrors.ValidationField("order_kind", "unknown order kind")
	}
	if p.OrderKind == enums.OrderKindSearch {
		if p.UnitCount <= 0 {
			return pkgerrors.ValidationField("unit_count", "search orders need a positive unit count")
		}
		return nil
	}
	if p.UnitCount != len(p.UnitNames) {
		return pkgerrors.ValidationField("unit_count", "unit count does not match unit names")
	}
	return nil
}

// Assemble validates the checkout in submission order and builds the
// payload. The first failing check is returned.
func Assemble(state State, breakdown Breakdown) (Payload, error) {
	if !state.Identity.Authenticated {
		if strings.TrimSpace(state.Identity.Email) == "" {
			return Payload{}, pkgerrors.ValidationField("email", "email required")
		}
		if state.Identity.Password == "" {
			return Payload{}, pkgerrors.ValidationField("password", "password required")
		}
	}

	if err := state.Features.DeliveryError(); err != nil {
		return Payload{}, err
	}

	free := breakdown.IsFreeOrder
	if !free && !breakdown.FinalTotal.IsPositive() {
		return Payload{}, pkgerrors.ValidationField("amount", "paid order total must be greater than zero")
	}

	packageID := strings.TrimSpace(state.Quote.PackageID)
	if packageID == "" {
		return Payload{}, pkgerrors.ValidationField("package_id", "package required")
	}

	amount := breakdown.FinalTotal
	if free {
		amount = decimal.Zero
	}

	payload := Payload{
		PackageID:       packageID,
		Amount:          amount,
		UnitNames:       state.UnitNames(),
		UnitCount:       state.UnitCount(),
		ExtraFeatureIDs: state.Features.SelectedIDs(),
		Note:            state.Note,
		IsFreeOrder:     free,
		OrderKind:       state.Kind,
		SurveyType:      state.SurveyType,
	}
	if state.Features.RequiresDeliveryInfo() {
		payload.DeliveryAddress = state.Features.DeliveryAddress
		payload.MobileNumber = state.Features.MobileNumber
	}
	if !state.Identity.Authenticated {
		payload.Email = state.Identity.Email
		payload.Password = state.Identity.Password
	}
	return payload.Normalize(), nil
}
