package jwt

import (
	"strconv"
	"testing"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testUser() model.User {
	return model.User{
		ID:       42,
		UUID:     uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
		Role:     model.RoleUser,
	}
}

func newUtil(t *testing.T) *JwtUtilImpl {
	t.Helper()
	util, err := NewJWTUtil(Options{Secret: "test-secret"})
	require.NoError(t, err)
	return util
}

func TestJWTUtil_EmptySecret(t *testing.T) {
	_, err := NewJWTUtil(Options{})
	require.Error(t, err)
}

func TestJWTUtil_AccessRoundTrip(t *testing.T) {
	util := newUtil(t)
	u := testUser()

	token, exp, err := util.GenerateAccessToken(u)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := util.Validate(token, jwt2.TypeAccess)
	require.NoError(t, err)
	require.Equal(t, strconv.FormatInt(u.ID, 10), claims.Subject)
	require.Equal(t, u.UUID.String(), claims.UID)
	require.Equal(t, u.Role, claims.Role)
	require.Equal(t, u.Username, claims.Username)
	require.Equal(t, u.Email, claims.Email)
	require.NotEmpty(t, claims.ID)

	_, err = util.Validate(token, jwt2.TypeRefresh)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_RefreshClaimsAreMinimal(t *testing.T) {
	util := newUtil(t)
	u := testUser()

	token, exp, err := util.GenerateRefreshToken(u)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*24*time.Hour), exp, 2*time.Second)

	claims, err := util.Validate(token, jwt2.TypeRefresh)
	require.NoError(t, err)
	require.Empty(t, claims.Username)
	require.Empty(t, claims.Email)
	require.Equal(t, u.Role, claims.Role)

	_, err = util.Validate(token, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_TokensAreDistinct(t *testing.T) {
	util := newUtil(t)
	u := testUser()

	a, _, err := util.GenerateAccessToken(u)
	require.NoError(t, err)
	b, _, err := util.GenerateAccessToken(u)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestJWTUtil_AccessFromRefreshClaims(t *testing.T) {
	util := newUtil(t)
	u := testUser()

	rt, _, err := util.GenerateRefreshToken(u)
	require.NoError(t, err)
	rc, err := util.Validate(rt, jwt2.TypeRefresh)
	require.NoError(t, err)

	at, _, err := util.GenerateAccessTokenFromClaims(rc)
	require.NoError(t, err)
	ac, err := util.Validate(at, jwt2.TypeAccess)
	require.NoError(t, err)
	require.Equal(t, rc.Subject, ac.Subject)
	require.Equal(t, rc.UID, ac.UID)
	require.Equal(t, rc.Role, ac.Role)
}

func TestJWTUtil_Expired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-time.Hour) }
	issuer, err := NewJWTUtil(Options{Secret: "test-secret", Now: past})
	require.NoError(t, err)

	token, _, err := issuer.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = newUtil(t).Validate(token, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_WrongSecret(t *testing.T) {
	other, err := NewJWTUtil(Options{Secret: "other-secret"})
	require.NoError(t, err)
	token, _, err := other.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = newUtil(t).Validate(token, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_InvalidAlg(t *testing.T) {
	util := newUtil(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "1", "typ": "access", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = util.Validate(token, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_MissingExpiry(t *testing.T) {
	util := newUtil(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1", "typ": "access",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = util.Validate(token, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_Garbage(t *testing.T) {
	_, err := newUtil(t).Validate("bad", jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
}

func TestJWTUtil_FailureCausesLookIdentical(t *testing.T) {
	util := newUtil(t)
	u := testUser()

	refresh, _, _ := util.GenerateRefreshToken(u)
	other, _ := NewJWTUtil(Options{Secret: "other"})
	forged, _, _ := other.GenerateAccessToken(u)
	old, _ := NewJWTUtil(Options{Secret: "test-secret", Now: func() time.Time { return time.Now().Add(-time.Hour) }})
	expired, _, _ := old.GenerateAccessToken(u)

	var messages []string
	for _, tok := range []string{refresh, forged, expired, "garbage"} {
		_, err := util.Validate(tok, jwt2.TypeAccess)
		require.Error(t, err)
		messages = append(messages, err.Error())
	}
	for _, m := range messages[1:] {
		require.Equal(t, messages[0], m)
	}
}

func TestJWTUtil_DebugLogOnlyWhenEnabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	util, err := NewJWTUtil(Options{Secret: "test-secret", DebugLog: zap.New(core)})
	require.NoError(t, err)

	refresh, _, err := util.GenerateRefreshToken(testUser())
	require.NoError(t, err)
	_, err = util.Validate(refresh, jwt2.TypeAccess)
	require.ErrorIs(t, err, customErrors.ErrInvalidToken)
	require.Equal(t, 1, logs.FilterMessage("token type mismatch").Len())
}

func TestSubjectID(t *testing.T) {
	id, err := SubjectID(jwt2.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}})
	require.NoError(t, err)
	require.EqualValues(t, 7, id)

	for _, sub := range []string{"", "0", "-3", "abc"} {
		_, err := SubjectID(jwt2.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}})
		require.ErrorIs(t, err, customErrors.ErrInvalidToken)
	}
}
