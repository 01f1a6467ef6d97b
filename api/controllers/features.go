package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/mapfinderz-backend/api/responses"
	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

// FeatureSource lists the extra-feature catalog.
type FeatureSource interface {
	ExtraFeatures(ctx context.Context) ([]features.Feature, error)
}

func ExtraFeatures(src FeatureSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "feature catalog unavailable"))
			return
		}
		catalog, err := src.ExtraFeatures(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if catalog == nil {
			catalog = []features.Feature{}
		}
		responses.WriteSuccess(w, catalog)
	}
}
