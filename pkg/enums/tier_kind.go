package enums

import "fmt"

// TierKind identifies which package tier list applies to a buyer.
type TierKind string

const (
	TierKindRegular TierKind = "regular"
	TierKindPro     TierKind = "pro"
)

var validTierKinds = []TierKind{
	TierKindRegular,
	TierKindPro,
}

// String implements fmt.Stringer.
func (t TierKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TierKind.
func (t TierKind) IsValid() bool {
	for _, candidate := range validTierKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTierKind converts raw input into a TierKind.
func ParseTierKind(value string) (TierKind, error) {
	for _, candidate := range validTierKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier kind %q", value)
}
