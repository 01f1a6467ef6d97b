package features

import (
	"strings"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

const (
	FieldDeliveryAddress = "delivery_address"
	FieldMobileNumber    = "mobile_number"
)

// Selection is one selected feature with its selected additionals.
type Selection struct {
	Feature     Feature            `json:"feature"`
	State       enums.FeatureState `json:"state"`
	Additionals []Additional       `json:"additionals,omitempty"`
}

// Snapshot is an immutable copy of the engine state.
type Snapshot struct {
	HasPrimary      bool        `json:"has_primary"`
	Selections      []Selection `json:"selections,omitempty"`
	DeliveryAddress string      `json:"delivery_address,omitempty"`
	MobileNumber    string      `json:"mobile_number,omitempty"`
}

// PrimarySelected reports whether the primary feature is selected.
func (s Snapshot) PrimarySelected() bool {
	for _, sel := range s.Selections {
		if sel.Feature.IsPrimary {
			return true
		}
	}
	return false
}

// BaseApplies reports whether the base unit price is charged. Catalogs with
// no primary feature always charge it.
func (s Snapshot) BaseApplies() bool {
	return !s.HasPrimary || s.PrimarySelected()
}

// SelectedIDs lists selected feature ids followed by their selected additional ids.
func (s Snapshot) SelectedIDs() []string {
	var ids []string
	for _, sel := range s.Selections {
		ids = append(ids, sel.Feature.ID)
		for _, add := range sel.Additionals {
			ids = append(ids, add.ID)
		}
	}
	return ids
}

// RequiresDeliveryInfo reports whether any selected feature carries selected additionals.
func (s Snapshot) RequiresDeliveryInfo() bool {
	for _, sel := range s.Selections {
		if len(sel.Additionals) > 0 {
			return true
		}
	}
	return false
}

// MissingDeliveryField names the first missing delivery field, or "" when
// nothing is missing or nothing is required.
func (s Snapshot) MissingDeliveryField() string {
	if !s.RequiresDeliveryInfo() {
		return ""
	}
	return missingField(s.DeliveryAddress, s.MobileNumber)
}

// DeliveryError returns the validation error for the first missing delivery field.
func (s Snapshot) DeliveryError() error {
	return deliveryError(s.MissingDeliveryField())
}

func missingField(address, phone string) string {
	if strings.TrimSpace(address) == "" {
		return FieldDeliveryAddress
	}
	if strings.TrimSpace(phone) == "" {
		return FieldMobileNumber
	}
	return ""
}

func deliveryError(field string) error {
	switch field {
	case FieldDeliveryAddress:
		return pkgerrors.ValidationField(FieldDeliveryAddress, "delivery address required")
	case FieldMobileNumber:
		return pkgerrors.ValidationField(FieldMobileNumber, "mobile number required")
	default:
		return nil
	}
}

// Restore rebuilds a snapshot from submitted ids against the catalog. Unknown
// ids, orphan additionals and a missing delivery charge are rejected.
func Restore(catalog []Feature, ids []string, address, phone string) (Snapshot, error) {
	if err := validateCatalog(catalog); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid feature catalog")
	}

	wanted := map[string]bool{}
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			wanted[trimmed] = true
		}
	}

	snap := Snapshot{
		DeliveryAddress: strings.TrimSpace(address),
		MobileNumber:    strings.TrimSpace(phone),
	}
	for _, feature := range catalog {
		if feature.IsPrimary {
			snap.HasPrimary = true
		}
		featureWanted := wanted[feature.ID]
		delete(wanted, feature.ID)

		var picked []Additional
		hasOther := false
		for _, add := range feature.Additionals {
			if !wanted[add.ID] {
				continue
			}
			delete(wanted, add.ID)
			picked = append(picked, add)
			if !add.IsDeliveryCharge {
				hasOther = true
			}
		}
		if !featureWanted {
			if len(picked) > 0 {
				return Snapshot{}, pkgerrors.ValidationField("extra_feature_ids", "additional selected without its feature "+feature.ID)
			}
			continue
		}
		if delivery, ok := feature.DeliveryCharge(); ok && hasOther && !containsAdditional(picked, delivery.ID) {
			return Snapshot{}, pkgerrors.ValidationField("extra_feature_ids", "delivery charge required for feature "+feature.ID)
		}

		state := enums.FeatureStateSelected
		if len(picked) > 0 {
			state = enums.FeatureStatePendingInfo
			if missingField(snap.DeliveryAddress, snap.MobileNumber) == "" {
				state = enums.FeatureStateConfirmed
			}
		}
		snap.Selections = append(snap.Selections, Selection{Feature: feature.clone(), State: state, Additionals: picked})
	}

	for id := range wanted {
		return Snapshot{}, pkgerrors.ValidationField("extra_feature_ids", "unknown extra feature "+id)
	}
	return snap, nil
}

func containsAdditional(list []Additional, id string) bool {
	for _, add := range list {
		if add.ID == id {
			return true
		}
	}
	return false
}
