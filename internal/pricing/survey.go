package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	"github.com/angelmondragon/mapfinderz-backend/pkg/money"
)

// SurveyPrice is the per-unit price published for one survey type.
type SurveyPrice struct {
	SurveyType   enums.SurveyType `json:"survey_type"`
	PricePerUnit decimal.Decimal  `json:"price_per_unit"`
	TotalPrice   decimal.Decimal  `json:"total_price"`
	DisplayName  string           `json:"display_name,omitempty"`
}

// Usable reports whether the survey price can replace tier pricing.
func (p *SurveyPrice) Usable() bool {
	return p != nil && p.PricePerUnit.IsPositive()
}

// SurveyTotal returns ceil(count × unit price).
func SurveyTotal(count int, price SurveyPrice) decimal.Decimal {
	return money.CeilTotal(count, price.PricePerUnit)
}

var separatorReplacer = strings.NewReplacer("/", "_", "-", "_", " ", "_", ",", "_", "\t", "_")

// NormalizeSurveyType maps a free-form survey/khatian string onto a known
// code. Exact matches win, then composites whose two parts both appear as
// tokens, then single whole tokens, then composites whose two parts both
// appear as substrings, then the longest code found as a substring.
// Anything else resolves to fallback.
func NormalizeSurveyType(raw string, fallback enums.SurveyType) enums.SurveyType {
	if !fallback.IsValid() {
		fallback = enums.SurveyTypeRS
	}

	canonical := canonicalSurveyString(raw)
	if canonical == "" {
		return fallback
	}

	if code := enums.SurveyType(canonical); code.IsValid() {
		return code
	}

	tokens := surveyTokens(canonical)
	for _, composite := range enums.CompositeSurveyTypes() {
		parts := composite.Components()
		if len(parts) == 2 && tokens[string(parts[0])] && tokens[string(parts[1])] {
			return composite
		}
	}

	for _, single := range enums.SingleSurveyTypes() {
		if tokens[string(single)] {
			return single
		}
	}

	masked := maskNonComponentCodes(canonical)
	for _, composite := range enums.CompositeSurveyTypes() {
		parts := composite.Components()
		if len(parts) == 2 && strings.Contains(masked, string(parts[0])) && strings.Contains(masked, string(parts[1])) {
			return composite
		}
	}

	var best enums.SurveyType
	for _, single := range enums.SingleSurveyTypes() {
		if strings.Contains(canonical, string(single)) && len(single) > len(best) {
			best = single
		}
	}
	if best != "" {
		return best
	}
	return fallback
}

func canonicalSurveyString(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	replaced := separatorReplacer.Replace(upper)
	parts := strings.Split(replaced, "_")
	kept := parts[:0]
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "_")
}

func surveyTokens(canonical string) map[string]bool {
	tokens := map[string]bool{}
	for _, token := range strings.Split(canonical, "_") {
		tokens[token] = true
	}
	return tokens
}

// maskNonComponentCodes blanks codes that are not part of any composite, so
// that BRS does not count as RS when looking for composite substrings.
func maskNonComponentCodes(canonical string) string {
	components := map[enums.SurveyType]bool{}
	for _, composite := range enums.CompositeSurveyTypes() {
		for _, part := range composite.Components() {
			components[part] = true
		}
	}
	masked := canonical
	for _, single := range enums.SingleSurveyTypes() {
		if !components[single] {
			masked = strings.ReplaceAll(masked, string(single), "_")
		}
	}
	return masked
}
