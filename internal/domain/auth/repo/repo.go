package repo

import (
	"context"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/google/uuid"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u *model.User) error

	GetUserByID(ctx context.Context, id int64) (model.User, error)

	GetUserByUUID(ctx context.Context, id uuid.UUID) (model.User, error)

	// GetUserByIdentifier matches the username exactly or the email
	// case-insensitively.
	GetUserByIdentifier(ctx context.Context, identifier string) (model.User, error)

	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)

	UpdateUser(ctx context.Context, id int64, fields map[string]any) error

	TouchLogin(ctx context.Context, id int64, at time.Time, ip string) error

	SetRole(ctx context.Context, username string, role model.Role) error

	DeleteUser(ctx context.Context, id int64) error
}

// TokenIndex is the registry of issued access tokens, keyed by token digest.
type TokenIndex interface {
	Record(ctx context.Context, userID int64, token string, expiresAt time.Time) error

	// LookupRole returns ErrNotFound for unknown or expired tokens.
	LookupRole(ctx context.Context, token string) (model.Role, error)

	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// AttemptLimiter throttles failed logins per identifier.
type AttemptLimiter interface {
	Allowed(ctx context.Context, key string) (bool, error)

	Fail(ctx context.Context, key string) error

	Reset(ctx context.Context, key string) error
}
