package jwt

import (
	"errors"
	"strconv"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// DebugLog receives the concrete reason a token was rejected. Callers
	// only ever see ErrInvalidToken.
	DebugLog *zap.Logger
	Now      func() time.Time
}

type JwtUtilImpl struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	debug      *zap.Logger
	now        func() time.Time
}

var errEmptySecret = errors.New("jwt secret is empty")

func NewJWTUtil(opts Options) (*JwtUtilImpl, error) {
	if opts.Secret == "" {
		return nil, customErrors.WrapInternal(errEmptySecret, "NewJWTUtil")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.DebugLog == nil {
		opts.DebugLog = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &JwtUtilImpl{
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		debug:      opts.DebugLog,
		now:        opts.Now,
	}, nil
}

func (j *JwtUtilImpl) AccessTTL() time.Duration  { return j.accessTTL }
func (j *JwtUtilImpl) RefreshTTL() time.Duration { return j.refreshTTL }

func (j *JwtUtilImpl) GenerateAccessToken(user model.User) (string, time.Time, error) {
	return j.sign(jwt2.Claims{
		RegisteredClaims: j.registered(strconv.FormatInt(user.ID, 10), j.accessTTL),
		UID:              user.UUID.String(),
		Username:         user.Username,
		Email:            user.Email,
		Role:             user.Role,
		Type:             jwt2.TypeAccess,
	})
}

// GenerateRefreshToken keeps the claim set minimal: no username or email, so
// a leaked or logged refresh token exposes as little as possible.
func (j *JwtUtilImpl) GenerateRefreshToken(user model.User) (string, time.Time, error) {
	return j.sign(jwt2.Claims{
		RegisteredClaims: j.registered(strconv.FormatInt(user.ID, 10), j.refreshTTL),
		UID:              user.UUID.String(),
		Role:             user.Role,
		Type:             jwt2.TypeRefresh,
	})
}

func (j *JwtUtilImpl) GenerateAccessTokenFromClaims(refresh jwt2.Claims) (string, time.Time, error) {
	return j.sign(jwt2.Claims{
		RegisteredClaims: j.registered(refresh.Subject, j.accessTTL),
		UID:              refresh.UID,
		Role:             refresh.Role,
		Type:             jwt2.TypeAccess,
	})
}

func (j *JwtUtilImpl) Validate(raw string, expected jwt2.TokenType) (jwt2.Claims, error) {
	var claims jwt2.Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		j.debug.Debug("token rejected", zap.String("expected", string(expected)), zap.Error(err))
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	if claims.Type != expected {
		j.debug.Debug("token type mismatch",
			zap.String("expected", string(expected)),
			zap.String("got", string(claims.Type)))
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	if claims.Subject == "" {
		j.debug.Debug("token without subject", zap.String("expected", string(expected)))
		return jwt2.Claims{}, customErrors.ErrInvalidToken
	}

	return claims, nil
}

func (j *JwtUtilImpl) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := j.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (j *JwtUtilImpl) sign(claims jwt2.Claims) (string, time.Time, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign "+string(claims.Type)+" token")
	}
	return signed, claims.ExpiresAt.Time, nil
}

// SubjectID parses the numeric user id out of validated claims.
func SubjectID(claims jwt2.Claims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, customErrors.ErrInvalidToken
	}
	return id, nil
}
