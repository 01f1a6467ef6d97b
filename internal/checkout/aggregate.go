package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/pkg/money"
)

// AggregateInput holds everything the price aggregator needs.
type AggregateInput struct {
	BaseTotal   decimal.Decimal
	Count       int
	Features    features.Snapshot
	IsFreeOrder bool
}

// Breakdown is the priced checkout.
type Breakdown struct {
	BaseAmount              decimal.Decimal `json:"base_amount"`
	ExtraFeaturesTotal      decimal.Decimal `json:"extra_features_total"`
	AdditionalFeaturesTotal decimal.Decimal `json:"additional_features_total"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	FinalTotal              decimal.Decimal `json:"final_total"`
	IsFreeOrder             bool            `json:"is_free_order"`
}

// Aggregate combines the base price with selected extras and additionals.
// The base price is charged only while the primary feature is selected; a
// free order reports every component as zero.
func Aggregate(in AggregateInput) Breakdown {
	if in.IsFreeOrder {
		return Breakdown{
			BaseAmount:              decimal.Zero,
			ExtraFeaturesTotal:      decimal.Zero,
			AdditionalFeaturesTotal: decimal.Zero,
			Subtotal:                decimal.Zero,
			FinalTotal:              decimal.Zero,
			IsFreeOrder:             true,
		}
	}

	base := decimal.Zero
	if in.Features.BaseApplies() {
		base = money.NonNegative(in.BaseTotal)
	}

	extras := decimal.Zero
	additionals := decimal.Zero
	for _, sel := range in.Features.Selections {
		if !sel.Feature.IsPrimary {
			extras = extras.Add(money.Times(in.Count, sel.Feature.EffectivePrice()))
		}
		for _, add := range sel.Additionals {
			additionals = additionals.Add(money.Times(in.Count, add.EffectivePrice()))
		}
	}

	subtotal := base.Add(extras).Add(additionals)
	return Breakdown{
		BaseAmount:              base,
		ExtraFeaturesTotal:      extras,
		AdditionalFeaturesTotal: additionals,
		Subtotal:                subtotal,
		FinalTotal:              subtotal,
	}
}
