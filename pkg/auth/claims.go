package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/successplus/membership-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the caller as seen by the entitlement core: a stable id and email.
type Identity struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
}

// Identity projects the claims onto the caller identity.
func (c *AccessTokenClaims) Identity() *Identity {
	if c == nil || c.UserID == uuid.Nil {
		return nil
	}
	return &Identity{UserID: c.UserID, Email: c.Email}
}
