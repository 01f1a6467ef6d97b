package enums

import "fmt"

// PricingModel names the pricing model that produced a base price.
type PricingModel string

const (
	PricingModelNone   PricingModel = "none"
	PricingModelTier   PricingModel = "tier"
	PricingModelSurvey PricingModel = "survey"
)

var validPricingModels = []PricingModel{
	PricingModelNone,
	PricingModelTier,
	PricingModelSurvey,
}

// String implements fmt.Stringer.
func (p PricingModel) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PricingModel.
func (p PricingModel) IsValid() bool {
	for _, candidate := range validPricingModels {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePricingModel converts raw input into a PricingModel.
func ParsePricingModel(value string) (PricingModel, error) {
	for _, candidate := range validPricingModels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing model %q", value)
}
