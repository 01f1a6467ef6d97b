package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// BuyerAudience is stamped on every buyer token and required when parsing.
const BuyerAudience = "mapfinderz-buyer"

var errSubjectMismatch = errors.New("token subject does not match user id")

// AccessTokenPayload is what the login and checkout flows know about a buyer
// when a token is minted.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	JTI    string
}

// AccessTokenClaims is the buyer JWT body.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checks and ties the subject to
// the user id claim.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil || c.Subject != c.UserID.String() {
		return errSubjectMismatch
	}
	return nil
}
