package checkout

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
)

// Unit is one selected file, or the single search result of a search order.
type Unit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Identity is the buyer as known to the checkout.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Password      string `json:"-"`
}

// State is the full, serializable input of one checkout attempt.
type State struct {
	AttemptID        string            `json:"attempt_id"`
	Kind             enums.OrderKind   `json:"kind"`
	Units            []Unit            `json:"units,omitempty"`
	SearchUnitCount  int               `json:"search_unit_count,omitempty"`
	SurveyType       string            `json:"survey_type,omitempty"`
	TierKind         enums.TierKind    `json:"tier_kind,omitempty"`
	Note             string            `json:"note,omitempty"`
	Identity         Identity          `json:"identity"`
	Quote            pricing.Quote     `json:"quote"`
	QuoteFingerprint string            `json:"quote_fingerprint,omitempty"`
	Quota            quota.Decision    `json:"quota"`
	QuotaFingerprint string            `json:"quota_fingerprint,omitempty"`
	Features         features.Snapshot `json:"features"`
}

// UnitCount is the number of priced units. Search orders carry their own
// count; file orders count the selected files.
func (s State) UnitCount() int {
	if s.Kind == enums.OrderKindSearch {
		return s.SearchUnitCount
	}
	return len(s.Units)
}

// UnitNames lists the selected unit names in selection order.
func (s State) UnitNames() []string {
	names := make([]string, 0, len(s.Units))
	for _, unit := range s.Units {
		names = append(names, unit.Name)
	}
	return names
}

// Fingerprint identifies the unit selection. A quota decision computed for
// another fingerprint is stale.
func (s State) Fingerprint() string {
	h := xxhash.New()
	_, _ = h.WriteString(string(s.Kind))
	_, _ = h.WriteString("|" + strconv.Itoa(s.UnitCount()))
	for _, unit := range s.Units {
		_, _ = h.WriteString("|" + unit.ID)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// PricingKey extends the fingerprint with the inputs that change the base price.
func (s State) PricingKey() string {
	return s.Fingerprint() + ":" + s.SurveyType + ":" + string(s.TierKind)
}

// IsFreeOrder reports whether a free decision was captured for the current selection.
func (s State) IsFreeOrder() bool {
	return s.QuotaFingerprint != "" && s.QuotaFingerprint == s.Fingerprint() && s.Quota.IsFree()
}

// AggregateInput derives the aggregator input from the state.
func (s State) AggregateInput() AggregateInput {
	base := s.Quote.Total
	if s.QuoteFingerprint != s.PricingKey() {
		base = decimal.Zero
	}
	return AggregateInput{
		BaseTotal:   base,
		Count:       s.UnitCount(),
		Features:    s.Features,
		IsFreeOrder: s.IsFreeOrder(),
	}
}

func (s State) clone() State {
	out := s
	out.Units = append([]Unit(nil), s.Units...)
	return out
}
