package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
)

// TierSource returns the package price lists.
type TierSource interface {
	PackageTiers(ctx context.Context) (TierSet, error)
}

// SurveySource looks up the price for a survey code. A nil price means the
// code has no published price.
type SurveySource interface {
	SurveyPrice(ctx context.Context, surveyType enums.SurveyType, count int) (*SurveyPrice, error)
}

// Request describes what is being priced.
type Request struct {
	Count      int
	SurveyType string
	TierKind   enums.TierKind
}

// Quote is the base price for a unit selection.
type Quote struct {
	Model       enums.PricingModel `json:"model"`
	Total       decimal.Decimal    `json:"total"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	PackageID   string             `json:"package_id,omitempty"`
	DisplayName string             `json:"display_name,omitempty"`
	SurveyType  enums.SurveyType   `json:"survey_type,omitempty"`
	Tier        *Tier              `json:"tier,omitempty"`
}

// Available reports whether a pricing model produced the quote.
func (q Quote) Available() bool {
	return q.Model == enums.PricingModelTier || q.Model == enums.PricingModelSurvey
}

// Resolver prices a selection with survey pricing when it resolves to a
// positive unit price and with the tier list otherwise.
type Resolver struct {
	tiers    TierSource
	surveys  SurveySource
	fallback enums.SurveyType
	kind     enums.TierKind
	logg     *logger.Logger
	metrics  *metrics.CheckoutMetrics
}

// NewResolver wires the pricing collaborators. surveys may be nil when survey
// pricing is not offered.
func NewResolver(tiers TierSource, surveys SurveySource, cfg config.PricingConfig, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Resolver, error) {
	if tiers == nil {
		return nil, fmt.Errorf("tier source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	fallback, err := enums.ParseSurveyType(cfg.FallbackSurveyType)
	if err != nil {
		fallback = enums.SurveyTypeRS
	}
	kind, err := enums.ParseTierKind(cfg.DefaultTierKind)
	if err != nil {
		kind = enums.TierKindRegular
	}
	return &Resolver{
		tiers:    tiers,
		surveys:  surveys,
		fallback: fallback,
		kind:     kind,
		logg:     logg,
		metrics:  m,
	}, nil
}

// Quote resolves the base price. When neither model yields a price the
// returned quote has model none and the error carries PRICING_UNAVAILABLE.
func (r *Resolver) Quote(ctx context.Context, req Request) (Quote, error) {
	none := Quote{Model: enums.PricingModelNone, Total: decimal.Zero}
	if req.Count <= 0 {
		return none, pkgerrors.ValidationField("unit_count", "unit count must be positive")
	}

	if quote, ok := r.surveyQuote(ctx, req); ok {
		r.metrics.IncQuote(string(quote.Model))
		return quote, nil
	}

	set, err := r.tiers.PackageTiers(ctx)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return none, err
		}
		return none, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load package tiers")
	}

	kind := req.TierKind
	if !kind.IsValid() {
		kind = r.kind
	}
	tq := ResolveTier(TiersFor(kind, set.Regular, set.Pro), req.Count)
	if !tq.Available() {
		r.metrics.IncQuote(string(enums.PricingModelNone))
		r.logg.Warn(r.logg.WithField(ctx, "tier_kind", kind), "no package tiers available")
		return none, pkgerrors.New(pkgerrors.CodePricing, "no package tiers available")
	}

	r.metrics.IncQuote(string(enums.PricingModelTier))
	return Quote{
		Model:       enums.PricingModelTier,
		Total:       tq.Total,
		UnitPrice:   tq.UnitPrice,
		PackageID:   tq.Tier.ID,
		DisplayName: tq.Tier.Name,
		Tier:        tq.Tier,
	}, nil
}

func (r *Resolver) surveyQuote(ctx context.Context, req Request) (Quote, bool) {
	if r.surveys == nil || strings.TrimSpace(req.SurveyType) == "" {
		return Quote{}, false
	}

	code := NormalizeSurveyType(req.SurveyType, r.fallback)
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"survey_type": code.String(),
		"survey_raw":  req.SurveyType,
	})

	price, err := r.surveys.SurveyPrice(ctx, code, req.Count)
	if err != nil {
		r.metrics.IncSurveyFallback("error")
		r.logg.Error(logCtx, "survey price lookup failed, using package tiers", err)
		return Quote{}, false
	}
	if !price.Usable() {
		r.metrics.IncSurveyFallback("zero_price")
		r.logg.Info(logCtx, "survey price unavailable, using package tiers")
		return Quote{}, false
	}

	displayName := price.DisplayName
	if displayName == "" {
		displayName = code.String()
	}
	return Quote{
		Model:       enums.PricingModelSurvey,
		Total:       SurveyTotal(req.Count, *price),
		UnitPrice:   price.PricePerUnit,
		PackageID:   SurveyPackageID(code),
		DisplayName: displayName,
		SurveyType:  code,
	}, true
}

// SurveyPackageID is the package identifier carried by survey-priced orders.
func SurveyPackageID(code enums.SurveyType) string {
	return "survey:" + code.String()
}
