package http

import (
	"net/http"
	"strconv"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc appsvc.Service
	log *zap.Logger
}

func NewHandler(svc appsvc.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

func authResponse(res model.AuthResult) gin.H {
	return gin.H{
		"user":          res.User,
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(res.AccessTTL.Seconds()),
	}
}

func badBody(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func (h *Handler) Register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}

	res, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		handleError(c, err, false)
		return
	}
	h.log.Info("user registered", zap.Int64("user_id", res.User.ID))
	c.JSON(http.StatusCreated, authResponse(res))
}

func (h *Handler) Login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}
	body.ClientIP = c.ClientIP()

	res, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		handleError(c, err, body.RefreshToken != "")
		return
	}
	c.JSON(http.StatusOK, authResponse(res))
}

func (h *Handler) Token(c *gin.Context) {
	var body dto.TokenDTO
	if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken == "" {
		handleError(c, errRefreshRequired, true)
		return
	}

	access, err := h.svc.ExchangeAccessToken(c.Request.Context(), body.RefreshToken)
	if err != nil {
		handleError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "token_type": "Bearer"})
}

func (h *Handler) Me(c *gin.Context) {
	p, ok := PrincipalFrom(c)
	if !ok {
		handleError(c, authErrors.ErrMissingToken, false)
		return
	}
	u, err := h.svc.GetUserByUUID(c.Request.Context(), p.UUID.String())
	if err != nil {
		handleError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		handleError(c, err, false)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		handleError(c, err, false)
		return
	}

	users, err := h.svc.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.svc.GetUserByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		handleError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		handleError(c, err, false)
		return
	}
	var body dto.UpdateUserDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c)
		return
	}

	updated, err := h.svc.UpdateUser(c.Request.Context(), id, body)
	if err != nil {
		handleError(c, err, false)
		return
	}
	if p, ok := PrincipalFrom(c); ok {
		h.log.Info("user updated", zap.Int64("user_id", updated), zap.Int64("by", p.UserID))
	}
	c.JSON(http.StatusOK, gin.H{"id": updated})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		handleError(c, err, false)
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		handleError(c, err, false)
		return
	}
	if p, ok := PrincipalFrom(c); ok {
		h.log.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", p.UserID))
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidQuery(key)
	}
	return n, nil
}
