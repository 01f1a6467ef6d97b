package enums

import "fmt"

// OrderKind distinguishes file-based selections from search-derived unit counts.
type OrderKind string

const (
	OrderKindFile   OrderKind = "file"
	OrderKindSearch OrderKind = "search"
)

var validOrderKinds = []OrderKind{
	OrderKindFile,
	OrderKindSearch,
}

// String implements fmt.Stringer.
func (o OrderKind) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderKind.
func (o OrderKind) IsValid() bool {
	for _, candidate := range validOrderKinds {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderKind converts raw input into an OrderKind.
func ParseOrderKind(value string) (OrderKind, error) {
	for _, candidate := range validOrderKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order kind %q", value)
}
