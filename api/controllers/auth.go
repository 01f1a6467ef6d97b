package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/api/middleware"
	"github.com/angelmondragon/mapfinderz-backend/api/responses"
	"github.com/angelmondragon/mapfinderz-backend/api/validators"
	"github.com/angelmondragon/mapfinderz-backend/internal/auth"
	"github.com/angelmondragon/mapfinderz-backend/internal/users"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

// TokenHeader mirrors the access token of a successful login so clients
// that ignore the body can still pick it up.
const TokenHeader = "X-MF-Token"

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// AuthLogin exchanges buyer credentials for an access token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errAuthUnavailable)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Login(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		w.Header().Set(TokenHeader, result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

// AuthMe returns the signed-in buyer's profile. It runs behind
// middleware.Auth.
func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errAuthUnavailable)
			return
		}

		id, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing buyer"))
			return
		}
		user, err := svc.FindBuyer(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}
