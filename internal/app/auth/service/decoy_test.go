package service

import (
	"testing"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/auth/password"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsDecoyBeforeFirstLogin(t *testing.T) {
	svc := New(Deps{Hasher: password.NewHasher(1, nil)}).(*authService)

	require.NotEmpty(t, svc.decoy)
	_, _, ok := password.Parse(svc.decoy)
	require.True(t, ok, "decoy must be a well-formed hash")
}

func TestThrottleKey_UsernamesStayCaseSensitive(t *testing.T) {
	require.NotEqual(t, throttleKey("alice"), throttleKey("ALICE"))
	require.Equal(t,
		throttleKey(normalizeIdentifier("Alice@Example.com")),
		throttleKey(normalizeIdentifier("alice@example.com")))
}
