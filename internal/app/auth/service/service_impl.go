package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	jwtimpl "github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/password"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.AuthResult, error)
	Login(context.Context, dto.LoginDTO) (model.AuthResult, error)
	LoginWithRefreshToken(ctx context.Context, refreshToken string) (model.AuthResult, error)
	ExchangeAccessToken(ctx context.Context, refreshToken string) (string, error)

	Authorize(ctx context.Context, authorization string, requireAdmin bool) (model.Principal, error)

	GetUserByUUID(ctx context.Context, id string) (model.PublicUser, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.PublicUser, error)
	UpdateUser(ctx context.Context, id int64, in dto.UpdateUserDTO) (int64, error)
	DeleteUser(ctx context.Context, id int64) error
}

type Deps struct {
	Users  repo.UserRepo
	Tokens repo.TokenIndex
	// Attempts may be nil, which disables login throttling.
	Attempts repo.AttemptLimiter
	JWT      jwt.JWTUtil
	Hasher   *password.Hasher
	Validate *validator.Validate
	Log      *zap.Logger
	// Debug receives per-cause auth diagnostics. Leave nil unless the debug
	// switch is on; it never changes what callers see.
	Debug *zap.Logger
	Now   func() time.Time
}

type authService struct {
	users    repo.UserRepo
	tokens   repo.TokenIndex
	attempts repo.AttemptLimiter
	jwtUtil  jwt.JWTUtil
	hasher   *password.Hasher
	v        *validator.Validate
	log      *zap.Logger
	debug    *zap.Logger
	now      func() time.Time

	// decoy is a well-formed hash of a random password, verified when the
	// identifier is unknown so the miss costs one derivation like a mismatch.
	decoy string
}

func New(d Deps) Service {
	if d.Validate == nil {
		d.Validate = NewValidator()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Debug == nil {
		d.Debug = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	a := &authService{
		users:    d.Users,
		tokens:   d.Tokens,
		attempts: d.Attempts,
		jwtUtil:  d.JWT,
		hasher:   d.Hasher,
		v:        d.Validate,
		log:      d.Log,
		debug:    d.Debug,
		now:      d.Now,
	}
	decoy, err := d.Hasher.Hash(context.Background(), uuid.NewString())
	if err != nil {
		d.Log.Error("build decoy hash", zap.Error(err))
	}
	a.decoy = decoy
	return a
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	check := in
	check.Password = password.Normalize(in.Password)
	if err := a.v.Struct(check); err != nil {
		metrics.RecordAuth("register", metrics.OutcomeInvalidArgument)
		return model.AuthResult{}, invalidArgument(err)
	}

	passwordHash, err := a.hash(ctx, in.Password)
	if err != nil {
		metrics.RecordAuth("register", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		UUID:         uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         model.RoleUser,
	}
	if err = a.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, customErrors.ErrAlreadyExists) {
			metrics.RecordAuth("register", metrics.OutcomeConflict)
			return model.AuthResult{}, customErrors.ErrAlreadyExists
		}
		metrics.RecordAuth("register", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "Register")
	}

	res, err := a.issueTokens(ctx, user)
	if err != nil {
		metrics.RecordAuth("register", metrics.OutcomeError)
		return model.AuthResult{}, err
	}
	metrics.RecordAuth("register", metrics.OutcomeSuccess)
	return res, nil
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.AuthResult, error) {
	if strings.TrimSpace(in.RefreshToken) != "" {
		return a.LoginWithRefreshToken(ctx, strings.TrimSpace(in.RefreshToken))
	}

	in.Identifier = normalizeIdentifier(in.Identifier)
	if err := a.v.Struct(in); err != nil {
		metrics.RecordAuth("login", metrics.OutcomeInvalidArgument)
		return model.AuthResult{}, invalidArgument(err)
	}

	attemptKey := throttleKey(in.Identifier)
	if a.attempts != nil {
		allowed, err := a.attempts.Allowed(ctx, attemptKey)
		if err != nil {
			a.log.Warn("login throttle unavailable", zap.Error(err))
		}
		if !allowed {
			metrics.RecordAuth("login", metrics.OutcomeThrottled)
			return model.AuthResult{}, customErrors.ErrTooManyAttempts
		}
	}

	user, err := a.users.GetUserByIdentifier(ctx, in.Identifier)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		a.debug.Debug("user not found", zap.String("identifier", in.Identifier))
		// Spend the same KDF time as a real mismatch.
		_, _ = a.verify(ctx, in.Password, a.decoy)
		return model.AuthResult{}, a.loginFailed(ctx, attemptKey)
	case err != nil:
		metrics.RecordAuth("login", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "Login")
	}

	a.debug.Debug("verifying password", zap.Int64("user_id", user.ID))
	ok, err := a.verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		metrics.RecordAuth("login", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		a.debug.Debug("password mismatch", zap.Int64("user_id", user.ID))
		return model.AuthResult{}, a.loginFailed(ctx, attemptKey)
	}
	a.debug.Debug("password ok", zap.Int64("user_id", user.ID))

	if a.attempts != nil {
		if err := a.attempts.Reset(ctx, attemptKey); err != nil {
			a.log.Warn("reset login attempts", zap.Error(err))
		}
	}

	res, err := a.issueTokens(ctx, user)
	if err != nil {
		metrics.RecordAuth("login", metrics.OutcomeError)
		return model.AuthResult{}, err
	}

	at := a.now().UTC()
	if err := a.users.TouchLogin(ctx, user.ID, at, in.ClientIP); err != nil {
		a.log.Warn("record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		res.User.LastLoginAt = &at
		if in.ClientIP != "" {
			ip := in.ClientIP
			res.User.LastLoginIP = &ip
		}
	}

	metrics.RecordAuth("login", metrics.OutcomeSuccess)
	return res, nil
}

// LoginWithRefreshToken re-establishes identity from a refresh token alone.
// No password is checked; the returned refresh token is the one presented.
func (a *authService) LoginWithRefreshToken(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	claims, err := a.jwtUtil.Validate(refreshToken, jwt.TypeRefresh)
	if err != nil {
		metrics.RecordAuth("login_refresh", metrics.OutcomeInvalidToken)
		return model.AuthResult{}, customErrors.ErrInvalidToken
	}
	userID, err := jwtimpl.SubjectID(claims)
	if err != nil {
		metrics.RecordAuth("login_refresh", metrics.OutcomeInvalidToken)
		return model.AuthResult{}, customErrors.ErrInvalidToken
	}

	user, err := a.users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		a.debug.Debug("refresh subject no longer exists", zap.Int64("user_id", userID))
		metrics.RecordAuth("login_refresh", metrics.OutcomeInvalidToken)
		return model.AuthResult{}, customErrors.ErrInvalidToken
	case err != nil:
		metrics.RecordAuth("login_refresh", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "LoginWithRefreshToken")
	}

	at, atExp, err := a.jwtUtil.GenerateAccessToken(user)
	if err != nil {
		metrics.RecordAuth("login_refresh", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	if err := a.tokens.Record(ctx, user.ID, at, atExp); err != nil {
		metrics.RecordAuth("login_refresh", metrics.OutcomeError)
		return model.AuthResult{}, customErrors.WrapInternal(err, "RecordAccessToken")
	}

	now := a.now()
	metrics.RecordAuth("login_refresh", metrics.OutcomeSuccess)
	return model.AuthResult{
		User:         user.Public(),
		AccessToken:  at,
		RefreshToken: refreshToken,
		AccessTTL:    atExp.Sub(now),
		RefreshTTL:   claims.ExpiresAt.Time.Sub(now),
	}, nil
}

func (a *authService) ExchangeAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := a.jwtUtil.Validate(refreshToken, jwt.TypeRefresh)
	if err != nil {
		metrics.RecordAuth("exchange", metrics.OutcomeInvalidToken)
		return "", customErrors.ErrInvalidToken
	}
	userID, err := jwtimpl.SubjectID(claims)
	if err != nil {
		metrics.RecordAuth("exchange", metrics.OutcomeInvalidToken)
		return "", customErrors.ErrInvalidToken
	}

	// Index rows reference the user, so a deleted subject cannot be recorded.
	if _, err := a.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, customErrors.ErrNotFound) {
			a.debug.Debug("refresh subject no longer exists", zap.Int64("user_id", userID))
			metrics.RecordAuth("exchange", metrics.OutcomeInvalidToken)
			return "", customErrors.ErrInvalidToken
		}
		metrics.RecordAuth("exchange", metrics.OutcomeError)
		return "", customErrors.WrapInternal(err, "ExchangeAccessToken")
	}

	at, atExp, err := a.jwtUtil.GenerateAccessTokenFromClaims(claims)
	if err != nil {
		metrics.RecordAuth("exchange", metrics.OutcomeError)
		return "", customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	if err := a.tokens.Record(ctx, userID, at, atExp); err != nil {
		metrics.RecordAuth("exchange", metrics.OutcomeError)
		return "", customErrors.WrapInternal(err, "RecordAccessToken")
	}

	metrics.RecordAuth("exchange", metrics.OutcomeSuccess)
	return at, nil
}

func (a *authService) issueTokens(ctx context.Context, user model.User) (model.AuthResult, error) {
	at, atExp, err := a.jwtUtil.GenerateAccessToken(user)
	if err != nil {
		return model.AuthResult{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, err := a.jwtUtil.GenerateRefreshToken(user)
	if err != nil {
		return model.AuthResult{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}
	if err = a.tokens.Record(ctx, user.ID, at, atExp); err != nil {
		return model.AuthResult{}, customErrors.WrapInternal(err, "RecordAccessToken")
	}

	now := a.now()
	return model.AuthResult{
		User:         user.Public(),
		AccessToken:  at,
		RefreshToken: rt,
		AccessTTL:    atExp.Sub(now),
		RefreshTTL:   rtExp.Sub(now),
	}, nil
}

func (a *authService) loginFailed(ctx context.Context, attemptKey string) error {
	if a.attempts != nil {
		if err := a.attempts.Fail(ctx, attemptKey); err != nil {
			a.log.Warn("count failed login", zap.Error(err))
		}
	}
	metrics.RecordAuth("login", metrics.OutcomeInvalidCredentials)
	return customErrors.ErrInvalidCredentials
}

func (a *authService) hash(ctx context.Context, pwd string) (string, error) {
	start := time.Now()
	defer func() { metrics.ObserveKDF(time.Since(start)) }()
	return a.hasher.Hash(ctx, pwd)
}

func (a *authService) verify(ctx context.Context, pwd, encoded string) (bool, error) {
	start := time.Now()
	defer func() { metrics.ObserveKDF(time.Since(start)) }()
	return a.hasher.Verify(ctx, pwd, encoded)
}

// normalizeIdentifier lower-cases identifiers that look like an email so the
// lookup matches regardless of the case it was registered with.
func normalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "@") {
		return strings.ToLower(s)
	}
	return s
}

// throttleKey expects an identifier already passed through normalizeIdentifier.
// Usernames stay case-sensitive, matching the lookup.
func throttleKey(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}
