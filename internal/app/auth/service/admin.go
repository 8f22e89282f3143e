package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func (a *authService) GetUserByUUID(ctx context.Context, id string) (model.PublicUser, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument("invalid uuid")
	}
	user, err := a.users.GetUserByUUID(ctx, uid)
	if err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return model.PublicUser{}, customErrors.ErrNotFound
		}
		return model.PublicUser{}, customErrors.WrapInternal(err, "GetUserByUUID")
	}
	return user.Public(), nil
}

func (a *authService) ListUsers(ctx context.Context, limit, offset int) ([]model.PublicUser, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	if offset < 0 {
		return nil, customErrors.NewInvalidArgument("offset must not be negative")
	}

	users, err := a.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "ListUsers")
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// UpdateUser applies only the fields present in the patch and returns the id
// of the updated user.
func (a *authService) UpdateUser(ctx context.Context, id int64, in dto.UpdateUserDTO) (int64, error) {
	if id <= 0 {
		return 0, customErrors.NewInvalidArgument("invalid id")
	}

	fields := make(map[string]any)
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name == "" || utf8.RuneCountInString(name) > 64 {
			return 0, customErrors.NewInvalidArgument("invalid username")
		}
		fields["username"] = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(email) {
			return 0, customErrors.NewInvalidArgument("invalid email")
		}
		fields["email"] = email
	}
	if in.Password != nil {
		if utf8.RuneCountInString(password.Normalize(*in.Password)) < password.MinLength {
			return 0, customErrors.NewInvalidArgument("password must be at least 8 characters")
		}
		h, err := a.hash(ctx, *in.Password)
		if err != nil {
			return 0, customErrors.WrapInternal(err, "UpdateUser")
		}
		fields["password_hash"] = h
	}
	if in.Role != nil {
		role, ok := model.ParseRole(*in.Role)
		if !ok {
			return 0, customErrors.NewInvalidArgument("invalid role")
		}
		fields["role"] = role
	}
	if in.TwoFactorEnabled != nil {
		fields["two_factor_enabled"] = *in.TwoFactorEnabled
	}
	if in.EmailVerifiedAt.Set {
		fields["email_verified_at"] = in.EmailVerifiedAt.Value
	}
	if in.LastLoginAt.Set {
		fields["last_login_at"] = in.LastLoginAt.Value
	}
	if in.LastLoginIP.Set {
		fields["last_login_ip"] = in.LastLoginIP.Value
	}
	if len(fields) == 0 {
		return 0, customErrors.NewInvalidArgument("no fields to update")
	}

	if err := a.users.UpdateUser(ctx, id, fields); err != nil {
		switch {
		case errors.Is(err, customErrors.ErrNotFound):
			return 0, customErrors.ErrNotFound
		case errors.Is(err, customErrors.ErrAlreadyExists):
			metrics.RecordAuth("update_user", metrics.OutcomeConflict)
			return 0, customErrors.ErrAlreadyExists
		}
		return 0, customErrors.WrapInternal(err, "UpdateUser")
	}
	metrics.RecordAuth("update_user", metrics.OutcomeSuccess)
	return id, nil
}

func (a *authService) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return customErrors.NewInvalidArgument("invalid id")
	}
	if err := a.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			return customErrors.ErrNotFound
		}
		return customErrors.WrapInternal(err, "DeleteUser")
	}
	metrics.RecordAuth("delete_user", metrics.OutcomeSuccess)
	return nil
}
