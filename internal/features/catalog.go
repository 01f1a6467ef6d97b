package features

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/money"
)

// Feature is an optional add-on service offered at checkout.
type Feature struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	OfferPrice  *decimal.Decimal `json:"offer_price,omitempty"`
	IsPrimary   bool             `json:"is_primary"`
	Additionals []Additional     `json:"additionals,omitempty"`
}

// Additional is a sub-option nested under a feature.
type Additional struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	OfferPrice       *decimal.Decimal `json:"offer_price,omitempty"`
	IsDeliveryCharge bool             `json:"is_delivery_charge"`
}

// EffectivePrice is the offer price when present, otherwise the list price.
func (f Feature) EffectivePrice() decimal.Decimal {
	return money.OfferOr(f.OfferPrice, f.Price)
}

// EffectivePrice is the offer price when present, otherwise the list price.
func (a Additional) EffectivePrice() decimal.Decimal {
	return money.OfferOr(a.OfferPrice, a.Price)
}

// HasAdditionals reports whether selecting the feature opens a configuration step.
func (f Feature) HasAdditionals() bool {
	return len(f.Additionals) > 0
}

// DeliveryCharge returns the feature's delivery-charge additional, if any.
func (f Feature) DeliveryCharge() (Additional, bool) {
	for _, add := range f.Additionals {
		if add.IsDeliveryCharge {
			return add, true
		}
	}
	return Additional{}, false
}

func (f Feature) additional(id string) (Additional, bool) {
	for _, add := range f.Additionals {
		if add.ID == id {
			return add, true
		}
	}
	return Additional{}, false
}

func (f Feature) clone() Feature {
	out := f
	out.Additionals = append([]Additional(nil), f.Additionals...)
	return out
}

func validateCatalog(catalog []Feature) error {
	seen := map[string]bool{}
	primaries := 0
	for _, feature := range catalog {
		if feature.ID == "" {
			return fmt.Errorf("feature %q has no id", feature.Name)
		}
		if seen[feature.ID] {
			return fmt.Errorf("duplicate feature id %s", feature.ID)
		}
		seen[feature.ID] = true
		if feature.IsPrimary {
			primaries++
		}
		deliveries := 0
		for _, add := range feature.Additionals {
			if add.ID == "" || seen[add.ID] {
				return fmt.Errorf("feature %s has a missing or duplicate additional id %q", feature.ID, add.ID)
			}
			seen[add.ID] = true
			if add.IsDeliveryCharge {
				deliveries++
			}
		}
		if deliveries > 1 {
			return fmt.Errorf("feature %s has more than one delivery charge", feature.ID)
		}
	}
	if primaries > 1 {
		return fmt.Errorf("catalog has %d primary features, at most one allowed", primaries)
	}
	return nil
}
