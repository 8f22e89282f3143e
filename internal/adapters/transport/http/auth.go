package http

import (
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// RequireAuth runs the guard on every request of the group. Admin groups pass
// requireAdmin=true.
func (h *Handler) RequireAuth(requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.svc.Authorize(c.Request.Context(), c.GetHeader("Authorization"), requireAdmin)
		if err != nil {
			handleError(c, err, false)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by RequireAuth.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
