package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/api/middleware"
	"github.com/angelmondragon/mapfinderz-backend/api/responses"
	"github.com/angelmondragon/mapfinderz-backend/api/validators"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

const maxQueryUnits = 10000

// Quoter prices a selection.
type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Quote, error)
}

// TierKindSource tells which tier list applies to a buyer.
type TierKindSource interface {
	TierKind(ctx context.Context, userID uuid.UUID) (enums.TierKind, error)
}

type quoteRequest struct {
	UnitCount  int    `json:"unit_count" validate:"gt=0,lte=10000"`
	SurveyType string `json:"survey_type" validate:"omitempty,max=64"`
}

// PackageTiers returns the regular and pro tier lists.
func PackageTiers(src pricing.TierSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing catalog unavailable"))
			return
		}
		set, err := src.PackageTiers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if set.Regular == nil {
			set.Regular = []pricing.Tier{}
		}
		if set.Pro == nil {
			set.Pro = []pricing.Tier{}
		}
		responses.WriteSuccess(w, set)
	}
}

// SurveyPrice returns the configured price for a survey code, or null when
// the code has none.
func SurveyPrice(src pricing.SurveySource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing catalog unavailable"))
			return
		}
		raw, err := validators.RequireQuery(r, "survey_type")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count, err := validators.ParseQueryInt(r, "count", 1, 1, maxQueryUnits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := src.SurveyPrice(r.Context(), enums.SurveyType(strings.ToUpper(raw)), count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

// Quote prices a selection server side. Authenticated buyers get the tier
// list their entitlement grants.
func Quote(q Quoter, kinds TierKindSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if q == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing unavailable"))
			return
		}
		var body quoteRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := pricing.Request{Count: body.UnitCount, SurveyType: body.SurveyType}
		if userID, ok := buyerID(r.Context()); ok && kinds != nil {
			kind, err := kinds.TierKind(r.Context(), userID)
			if err != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "pricing.tier_kind_unavailable")
			}
			req.TierKind = kind
		}

		quote, err := q.Quote(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func buyerID(ctx context.Context) (uuid.UUID, bool) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
