package features

import (
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

var (
	ErrUnknownFeature       = pkgerrors.New(pkgerrors.CodeNotFound, "extra feature not found")
	ErrUnknownAdditional    = pkgerrors.New(pkgerrors.CodeNotFound, "additional not found")
	ErrPrimaryLocked        = pkgerrors.New(pkgerrors.CodeStateConflict, "primary feature cannot be toggled")
	ErrFeatureNotSelected   = pkgerrors.New(pkgerrors.CodeStateConflict, "feature is not selected")
	ErrDeliveryChargeLocked = pkgerrors.New(pkgerrors.CodeStateConflict, "delivery charge is required while other additionals are selected")
)

type selection struct {
	state       enums.FeatureState
	additionals map[string]bool
	// deliveryImplied marks a delivery charge that was switched on only
	// because another additional was selected.
	deliveryImplied bool
}

// Engine tracks extra-feature selection for one checkout.
type Engine struct {
	mu       sync.Mutex
	catalog  []Feature
	index    map[string]int
	states   map[string]*selection
	address  string
	phone    string
	openStep string
}

// NewEngine builds an engine over catalog. The primary feature starts selected.
func NewEngine(catalog []Feature) (*Engine, error) {
	if err := validateCatalog(catalog); err != nil {
		return nil, err
	}
	e := &Engine{
		index:  make(map[string]int, len(catalog)),
		states: make(map[string]*selection, len(catalog)),
	}
	for i, feature := range catalog {
		e.catalog = append(e.catalog, feature.clone())
		e.index[feature.ID] = i
		state := enums.FeatureStateUnselected
		if feature.IsPrimary {
			state = enums.FeatureStateSelected
		}
		e.states[feature.ID] = &selection{state: state, additionals: map[string]bool{}}
	}
	return e, nil
}

// Catalog returns a copy of the features the engine was built with.
func (e *Engine) Catalog() []Feature {
	out := make([]Feature, 0, len(e.catalog))
	for _, feature := range e.catalog {
		out = append(out, feature.clone())
	}
	return out
}

// State returns the current state of a feature.
func (e *Engine) State(featureID string) (enums.FeatureState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sel, ok := e.states[featureID]
	if !ok {
		return "", ErrUnknownFeature
	}
	return sel.state, nil
}

// OpenStep returns the feature whose additional-configuration step is open.
func (e *Engine) OpenStep() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openStep
}

// Toggle selects or deselects a non-primary feature. Selecting a feature with
// additionals opens its configuration step and switches on its delivery charge.
func (e *Engine) Toggle(featureID string) (enums.FeatureState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	feature, sel, err := e.lookup(featureID)
	if err != nil {
		return "", err
	}
	if feature.IsPrimary {
		return sel.state, ErrPrimaryLocked
	}

	if sel.state != enums.FeatureStateUnselected {
		e.reset(featureID, sel)
		return sel.state, nil
	}

	sel.state = enums.FeatureStateSelected
	if feature.HasAdditionals() {
		e.openStep = featureID
		if delivery, ok := feature.DeliveryCharge(); ok {
			sel.additionals[delivery.ID] = true
		}
		e.refresh(sel)
	}
	return sel.state, nil
}

// SetPrimarySelected changes the primary feature from the global feature list.
func (e *Engine) SetPrimarySelected(selected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, feature := range e.catalog {
		if !feature.IsPrimary {
			continue
		}
		sel := e.states[feature.ID]
		if selected {
			if sel.state == enums.FeatureStateUnselected {
				sel.state = enums.FeatureStateSelected
			}
			return nil
		}
		e.reset(feature.ID, sel)
		return nil
	}
	return ErrUnknownFeature
}

// ToggleAdditional flips one additional of a selected feature.
func (e *Engine) ToggleAdditional(featureID, additionalID string) (enums.FeatureState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	feature, sel, err := e.lookup(featureID)
	if err != nil {
		return "", err
	}
	if sel.state == enums.FeatureStateUnselected {
		return sel.state, ErrFeatureNotSelected
	}
	add, ok := feature.additional(additionalID)
	if !ok {
		return sel.state, ErrUnknownAdditional
	}

	delivery, hasDelivery := feature.DeliveryCharge()
	switch {
	case add.IsDeliveryCharge:
		if sel.additionals[add.ID] && e.othersSelected(feature, sel) {
			return sel.state, ErrDeliveryChargeLocked
		}
		sel.additionals[add.ID] = !sel.additionals[add.ID]
		sel.deliveryImplied = false
	case sel.additionals[add.ID]:
		delete(sel.additionals, add.ID)
		if hasDelivery && sel.deliveryImplied && !e.othersSelected(feature, sel) {
			delete(sel.additionals, delivery.ID)
			sel.deliveryImplied = false
		}
	default:
		sel.additionals[add.ID] = true
		if hasDelivery && !sel.additionals[delivery.ID] {
			sel.additionals[delivery.ID] = true
			sel.deliveryImplied = true
		}
	}

	for id, on := range sel.additionals {
		if !on {
			delete(sel.additionals, id)
		}
	}
	e.openStep = featureID
	sel.state = enums.FeatureStateSelected
	e.refresh(sel)
	return sel.state, nil
}

// SetDeliveryInfo stores the delivery address and phone shared by every feature.
func (e *Engine) SetDeliveryInfo(address, phone string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.address = strings.TrimSpace(address)
	e.phone = strings.TrimSpace(phone)
}

// Confirm closes the configuration step. It fails with a field-specific
// validation error while delivery info is missing for selected additionals.
func (e *Engine) Confirm(featureID string) (enums.FeatureState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, sel, err := e.lookup(featureID)
	if err != nil {
		return "", err
	}
	if sel.state == enums.FeatureStateUnselected {
		return sel.state, ErrFeatureNotSelected
	}
	if len(sel.additionals) > 0 {
		if err := deliveryError(missingField(e.address, e.phone)); err != nil {
			return sel.state, err
		}
		sel.state = enums.FeatureStateConfirmed
	}
	e.closeStep(featureID)
	return sel.state, nil
}

// Close cancels the configuration step. A feature still waiting for delivery
// info is rolled back to unselected; otherwise its selection is kept.
func (e *Engine) Close(featureID string) (enums.FeatureState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, sel, err := e.lookup(featureID)
	if err != nil {
		return "", err
	}
	if sel.state == enums.FeatureStatePendingInfo {
		if missingField(e.address, e.phone) != "" {
			e.reset(featureID, sel)
			return sel.state, nil
		}
		sel.state = enums.FeatureStateConfirmed
	}
	e.closeStep(featureID)
	return sel.state, nil
}

// Snapshot copies the current selection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{DeliveryAddress: e.address, MobileNumber: e.phone}
	for _, feature := range e.catalog {
		if feature.IsPrimary {
			snap.HasPrimary = true
		}
		sel := e.states[feature.ID]
		if sel.state == enums.FeatureStateUnselected {
			continue
		}
		entry := Selection{Feature: feature.clone(), State: sel.state}
		for _, add := range feature.Additionals {
			if sel.additionals[add.ID] {
				entry.Additionals = append(entry.Additionals, add)
			}
		}
		snap.Selections = append(snap.Selections, entry)
	}
	return snap
}

func (e *Engine) lookup(featureID string) (Feature, *selection, error) {
	idx, ok := e.index[featureID]
	if !ok {
		return Feature{}, nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrUnknownFeature, fmt.Sprintf("extra feature %s not found", featureID))
	}
	return e.catalog[idx], e.states[featureID], nil
}

func (e *Engine) othersSelected(feature Feature, sel *selection) bool {
	for _, add := range feature.Additionals {
		if !add.IsDeliveryCharge && sel.additionals[add.ID] {
			return true
		}
	}
	return false
}

// refresh derives the state from the selected additionals. Any change to the
// additionals of a confirmed feature requires a new confirmation.
func (e *Engine) refresh(sel *selection) {
	if len(sel.additionals) == 0 {
		sel.state = enums.FeatureStateSelected
		return
	}
	sel.state = enums.FeatureStatePendingInfo
}

func (e *Engine) reset(featureID string, sel *selection) {
	sel.state = enums.FeatureStateUnselected
	sel.additionals = map[string]bool{}
	sel.deliveryImplied = false
	e.closeStep(featureID)
}

func (e *Engine) closeStep(featureID string) {
	if e.openStep == featureID {
		e.openStep = ""
	}
}
