package service

import (
	"context"
	"errors"
	"strings"

	jwtimpl "github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/jwt"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const bearerPrefix = "bearer "

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively and must be followed by a token.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", customErrors.ErrMissingToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", customErrors.ErrMissingToken
	}
	return token, nil
}

// Authorize admits a request only if it carries a valid, live, indexed access
// token. The role is read from the index joined with the user row, never from
// the token claims, so a demotion takes effect immediately.
func (a *authService) Authorize(ctx context.Context, authorization string, requireAdmin bool) (model.Principal, error) {
	token, err := BearerToken(authorization)
	if err != nil {
		a.debug.Debug("no bearer token")
		metrics.RecordAuth("authorize", metrics.OutcomeMissingToken)
		return model.Principal{}, err
	}

	claims, err := a.jwtUtil.Validate(token, jwt.TypeAccess)
	if err != nil {
		metrics.RecordAuth("authorize", metrics.OutcomeInvalidToken)
		return model.Principal{}, customErrors.ErrInvalidToken
	}
	userID, err := jwtimpl.SubjectID(claims)
	if err != nil {
		metrics.RecordAuth("authorize", metrics.OutcomeInvalidToken)
		return model.Principal{}, customErrors.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.UID)
	if err != nil {
		a.debug.Debug("token uid malformed", zap.Int64("user_id", userID))
		metrics.RecordAuth("authorize", metrics.OutcomeInvalidToken)
		return model.Principal{}, customErrors.ErrInvalidToken
	}

	role, err := a.tokens.LookupRole(ctx, token)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		a.debug.Debug("token not indexed or expired", zap.Int64("user_id", userID))
		metrics.RecordAuth("authorize", metrics.OutcomeInvalidToken)
		return model.Principal{}, customErrors.ErrTokenNotIndexed
	case err != nil:
		metrics.RecordAuth("authorize", metrics.OutcomeError)
		return model.Principal{}, customErrors.WrapInternal(err, "LookupRole")
	}

	if requireAdmin && !role.IsAdmin() {
		a.debug.Debug("admin required", zap.Int64("user_id", userID), zap.String("role", string(role)))
		metrics.RecordAuth("authorize", metrics.OutcomeForbidden)
		return model.Principal{}, customErrors.ErrForbidden
	}

	metrics.RecordAuth("authorize", metrics.OutcomeSuccess)
	return model.Principal{UserID: userID, UUID: uid, Role: role}, nil
}
