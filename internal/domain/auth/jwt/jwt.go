package jwt

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType is carried in the "typ" claim. Without it a refresh token would
// be accepted wherever an access token is.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UID      string     `json:"uid"`
	Username string     `json:"username,omitempty"`
	Email    string     `json:"email,omitempty"`
	Role     model.Role `json:"role"`
	Type     TokenType  `json:"typ"`
}

type JWTUtil interface {
	GenerateAccessToken(user model.User) (token string, exp time.Time, err error)
	GenerateRefreshToken(user model.User) (token string, exp time.Time, err error)
	// GenerateAccessTokenFromClaims mints an access token for the subject of
	// an already validated refresh token.
	GenerateAccessTokenFromClaims(refresh Claims) (token string, exp time.Time, err error)
	Validate(token string, expected TokenType) (Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
