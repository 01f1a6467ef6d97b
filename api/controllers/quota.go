package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/api/responses"
	"github.com/angelmondragon/mapfinderz-backend/api/validators"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

// QuotaChecker reads a buyer's daily allowance without consuming it.
type QuotaChecker interface {
	Check(ctx context.Context, userID uuid.UUID, count int) (quota.Decision, error)
}

type quotaRequest struct {
	UnitCount int `json:"unit_count" validate:"gt=0"`
}

// ValidateQuota reports whether unit_count more units would be free today.
func ValidateQuota(checker QuotaChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quota authority unavailable"))
			return
		}
		userID, ok := buyerID(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var body quotaRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := checker.Check(r.Context(), userID, body.UnitCount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}
