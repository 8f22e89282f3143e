package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

func (r Role) IsAdmin() bool {
	return strings.EqualFold(string(r), string(RoleAdmin))
}

type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	UUID             uuid.UUID `gorm:"column:uuid;type:uuid;uniqueIndex;not null"`
	Username         string    `gorm:"uniqueIndex;not null"`
	Email            string    `gorm:"uniqueIndex;not null"`
	PasswordHash     string    `gorm:"not null"`
	Role             Role      `gorm:"not null;default:user"`
	TwoFactorEnabled bool      `gorm:"not null;default:false"`
	EmailVerifiedAt  *time.Time
	LastLoginAt      *time.Time
	LastLoginIP      *string `gorm:"column:last_login_ip"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PublicUser is the only user shape that leaves the service.
type PublicUser struct {
	ID               int64      `json:"id"`
	UUID             uuid.UUID  `json:"uuid"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Role             Role       `json:"role"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at"`
	LastLoginAt      *time.Time `json:"last_login_at"`
	LastLoginIP      *string    `json:"last_login_ip"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		UUID:             u.UUID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		TwoFactorEnabled: u.TwoFactorEnabled,
		EmailVerifiedAt:  u.EmailVerifiedAt,
		LastLoginAt:      u.LastLoginAt,
		LastLoginIP:      u.LastLoginIP,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// AccessToken is a token index row. Only the digest of the token is kept.
type AccessToken struct {
	TokenHash string    `gorm:"primaryKey;column:token_hash"`
	UserID    int64     `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
}

type AuthResult struct {
	User         PublicUser
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// Principal is what the guard hands to protected operations.
type Principal struct {
	UserID int64
	UUID   uuid.UUID
	Role   Role
}
