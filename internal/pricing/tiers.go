package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	"github.com/angelmondragon/mapfinderz-backend/pkg/money"
)

// Tier is one band of a package price list.
type Tier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Limit        int             `json:"limit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	PackagePrice decimal.Decimal `json:"package_price"`
	Kind         enums.TierKind  `json:"kind"`
}

// UnitPrice returns the per-unit price, deriving it from the flat package
// price when the tier carries no explicit per-unit price.
func (t Tier) UnitPrice() decimal.Decimal {
	if t.PricePerUnit.IsPositive() {
		return t.PricePerUnit
	}
	if t.PackagePrice.IsPositive() && t.Limit > 0 {
		return t.PackagePrice.Div(decimal.NewFromInt(int64(t.Limit)))
	}
	return decimal.Zero
}

// TierSet holds both package lists returned by the catalog.
type TierSet struct {
	Regular []Tier `json:"regular_tiers"`
	Pro     []Tier `json:"pro_tiers"`
}

// TierQuote is the result of resolving a count against a tier list.
// A nil Tier means pricing is unavailable; a zero Total alone does not.
type TierQuote struct {
	Total     decimal.Decimal
	UnitPrice decimal.Decimal
	Tier      *Tier
}

// Available reports whether a tier was resolved.
func (q TierQuote) Available() bool {
	return q.Tier != nil
}

// ResolveTier picks the first tier whose limit covers count, or the largest
// tier when count exceeds every limit. Tiers without a positive limit are ignored.
func ResolveTier(tiers []Tier, count int) TierQuote {
	candidates := usableTiers(tiers)
	if len(candidates) == 0 || count <= 0 {
		return TierQuote{Total: decimal.Zero}
	}

	chosen := candidates[len(candidates)-1]
	for _, tier := range candidates {
		if tier.Limit >= count {
			chosen = tier
			break
		}
	}

	unit := money.NonNegative(chosen.UnitPrice())
	return TierQuote{
		Total:     money.CeilTotal(count, unit),
		UnitPrice: unit,
		Tier:      &chosen,
	}
}

func usableTiers(tiers []Tier) []Tier {
	out := make([]Tier, 0, len(tiers))
	for _, tier := range tiers {
		if tier.Limit <= 0 {
			continue
		}
		out = append(out, tier)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Limit < out[j].Limit
	})
	return out
}

// SplitTiers separates a mixed tier list by kind. Unknown kinds are treated as regular.
func SplitTiers(all []Tier) (regular, pro []Tier) {
	for _, tier := range all {
		if tier.Kind == enums.TierKindPro {
			pro = append(pro, tier)
			continue
		}
		regular = append(regular, tier)
	}
	return regular, pro
}

// TiersFor returns the list matching the buyer's entitlement kind. Pro buyers
// fall back to the regular list when no pro tiers are configured.
func TiersFor(kind enums.TierKind, regular, pro []Tier) []Tier {
	if kind == enums.TierKindPro && len(pro) > 0 {
		return pro
	}
	return regular
}
