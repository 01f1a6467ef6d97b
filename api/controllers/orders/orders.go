package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/api/middleware"
	"github.com/angelmondragon/mapfinderz-backend/api/responses"
	"github.com/angelmondragon/mapfinderz-backend/api/validators"
	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	internalorders "github.com/angelmondragon/mapfinderz-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/pagination"
)

// Free records a quota-covered order for the authenticated buyer or a guest
// registering through the payload's email and password.
func Free(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return submit(svc, logg, func(r *http.Request, in internalorders.Submission) (checkout.Submission, error) {
		return svc.ProcessFreeOrder(r.Context(), in)
	})
}

// Paid records a priced order awaiting payment.
func Paid(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return submit(svc, logg, func(r *http.Request, in internalorders.Submission) (checkout.Submission, error) {
		return svc.SubmitPaidOrder(r.Context(), in)
	})
}

type submitFunc func(r *http.Request, in internalorders.Submission) (checkout.Submission, error)

func submit(svc internalorders.Service, logg *logger.Logger, fn submitFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload checkout.Payload
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := optionalUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := fn(r, internalorders.Submission{UserID: userID, Payload: payload})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

// List returns the authenticated buyer's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := optionalUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, err := svc.ListBuyerOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func optionalUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user id")
	}
	return id, nil
}
