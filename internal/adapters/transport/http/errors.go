package http

import (
	"net/http"

	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/gin-gonic/gin"
)

// handleError writes the public form of err. Internal causes are attached to
// the gin context for the request logger and never reach the client. refresh
// selects the wording used by the refresh-token endpoints.
func handleError(c *gin.Context, err error, refresh bool) {
	status, msg := errorResponse(err, refresh)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func errorResponse(err error, refresh bool) (int, string) {
	switch {
	case authErrors.IsInvalidArgument(err):
		return http.StatusBadRequest, authErrors.ArgumentMessage(err)
	case authErrors.IsInvalidCredentials(err):
		return http.StatusUnauthorized, "invalid credentials"
	case authErrors.IsMissingToken(err):
		return http.StatusUnauthorized, authErrors.ErrMissingToken.Error()
	case authErrors.IsTokenNotIndexed(err):
		return http.StatusUnauthorized, "invalid or expired token"
	case authErrors.IsInvalidToken(err):
		if refresh {
			return http.StatusUnauthorized, "invalid refresh token"
		}
		return http.StatusUnauthorized, "invalid token"
	case authErrors.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case authErrors.IsAlreadyExists(err):
		return http.StatusConflict, authErrors.ErrAlreadyExists.Error()
	case authErrors.IsNotFound(err):
		return http.StatusNotFound, "not found"
	case authErrors.IsTooManyAttempts(err):
		return http.StatusTooManyRequests, "too many attempts"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

var (
	errInvalidID       = authErrors.NewInvalidArgument("invalid id")
	errRefreshRequired = authErrors.NewInvalidArgument("refresh_token is required")
)

func invalidQuery(field string) error {
	return authErrors.NewInvalidArgument("invalid " + field)
}
