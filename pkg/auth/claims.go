package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// AccessTokenPayload is what MintAccessToken needs to know about the caller.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	UserType enums.UserType
	JTI      string
}

// AccessTokenClaims is the JWT body. Sessions are not stored server side, so the
// token alone identifies the caller until it expires.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	UserType enums.UserType `json:"user_type"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks in jwt.ParseWithClaims.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token carries no user id")
	}
	if !c.UserType.IsValid() {
		return fmt.Errorf("invalid user type %q", c.UserType)
	}
	return nil
}
