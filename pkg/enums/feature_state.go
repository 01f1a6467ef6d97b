package enums

import "fmt"

// FeatureState is the selection state of an extra feature.
type FeatureState string

const (
	FeatureStateUnselected  FeatureState = "unselected"
	FeatureStateSelected    FeatureState = "selected"
	FeatureStatePendingInfo FeatureState = "pending_info"
	FeatureStateConfirmed   FeatureState = "confirmed"
)

var validFeatureStates = []FeatureState{
	FeatureStateUnselected,
	FeatureStateSelected,
	FeatureStatePendingInfo,
	FeatureStateConfirmed,
}

// String implements fmt.Stringer.
func (f FeatureState) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FeatureState.
func (f FeatureState) IsValid() bool {
	for _, candidate := range validFeatureStates {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeatureState converts raw input into a FeatureState.
func ParseFeatureState(value string) (FeatureState, error) {
	for _, candidate := range validFeatureStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid feature state %q", value)
}
