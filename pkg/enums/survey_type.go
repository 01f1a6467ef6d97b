package enums

import (
	"fmt"
	"strings"
)

// SurveyType is a khatian/survey classification with its own price table.
// Composite values join two survey types with an underscore.
type SurveyType string

const (
	SurveyTypeCS    SurveyType = "CS"
	SurveyTypeSA    SurveyType = "SA"
	SurveyTypeRS    SurveyType = "RS"
	SurveyTypeBS    SurveyType = "BS"
	SurveyTypeBRS   SurveyType = "BRS"
	SurveyTypeDiara SurveyType = "DIARA"
	SurveyTypePety  SurveyType = "PETY"
	SurveyTypeCity  SurveyType = "CITY"

	SurveyTypeSARS SurveyType = "SA_RS"
	SurveyTypeCSSA SurveyType = "CS_SA"
	SurveyTypeRSBS SurveyType = "RS_BS"
)

var singleSurveyTypes = []SurveyType{
	SurveyTypeCS,
	SurveyTypeSA,
	SurveyTypeRS,
	SurveyTypeBS,
	SurveyTypeBRS,
	SurveyTypeDiara,
	SurveyTypePety,
	SurveyTypeCity,
}

var compositeSurveyTypes = []SurveyType{
	SurveyTypeSARS,
	SurveyTypeCSSA,
	SurveyTypeRSBS,
}

// SingleSurveyTypes returns the non-composite codes.
func SingleSurveyTypes() []SurveyType {
	return append([]SurveyType(nil), singleSurveyTypes...)
}

// CompositeSurveyTypes returns the composite codes.
func CompositeSurveyTypes() []SurveyType {
	return append([]SurveyType(nil), compositeSurveyTypes...)
}

// String implements fmt.Stringer.
func (s SurveyType) String() string {
	return string(s)
}

// IsComposite reports whether the code joins two survey types.
func (s SurveyType) IsComposite() bool {
	return strings.Contains(string(s), "_")
}

// Components splits a composite code into its survey types.
func (s SurveyType) Components() []SurveyType {
	if !s.IsComposite() {
		return []SurveyType{s}
	}
	parts := strings.Split(string(s), "_")
	out := make([]SurveyType, 0, len(parts))
	for _, part := range parts {
		out = append(out, SurveyType(part))
	}
	return out
}

// IsValid reports whether the value is a known SurveyType.
func (s SurveyType) IsValid() bool {
	for _, candidate := range singleSurveyTypes {
		if candidate == s {
			return true
		}
	}
	for _, candidate := range compositeSurveyTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSurveyType converts an exact code into a SurveyType.
func ParseSurveyType(value string) (SurveyType, error) {
	candidate := SurveyType(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid survey type %q", value)
}
