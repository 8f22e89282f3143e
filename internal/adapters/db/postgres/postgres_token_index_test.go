package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/dbtest"
	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	require.Len(t, a, 64)
	require.Equal(t, a, HashToken("token-a"))
	require.NotEqual(t, a, HashToken("token-b"))
}

func TestTokenIndex_RecordAndLookup(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	u := newUser("alice")
	require.NoError(t, users.CreateUser(ctx, u))

	require.NoError(t, index.Record(ctx, u.ID, "tok", time.Now().Add(15*time.Minute)))

	role, err := index.LookupRole(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, role)

	_, err = index.LookupRole(ctx, "unknown")
	require.ErrorIs(t, err, customErrors.ErrNotFound)
}

func TestTokenIndex_RoleFollowsUserRow(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	u := newUser("boss")
	u.Role = model.RoleAdmin
	require.NoError(t, users.CreateUser(ctx, u))
	require.NoError(t, index.Record(ctx, u.ID, "tok", time.Now().Add(time.Minute)))

	role, err := index.LookupRole(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, role)

	require.NoError(t, users.UpdateUser(ctx, u.ID, map[string]any{"role": model.RoleUser}))
	role, err = index.LookupRole(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, role)
}

func TestTokenIndex_Expired(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	u := newUser("old")
	require.NoError(t, users.CreateUser(ctx, u))
	require.NoError(t, index.Record(ctx, u.ID, "stale", time.Now().Add(-time.Hour)))

	_, err := index.LookupRole(ctx, "stale")
	require.ErrorIs(t, err, customErrors.ErrNotFound)

	later := NewPostgresTokenIndex(db).WithClock(func() time.Time { return time.Now().Add(time.Hour) })
	require.NoError(t, index.Record(ctx, u.ID, "fresh", time.Now().Add(30*time.Minute)))
	_, err = later.LookupRole(ctx, "fresh")
	require.ErrorIs(t, err, customErrors.ErrNotFound)
}

func TestTokenIndex_UpsertOverwrites(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	a := newUser("a")
	b := newUser("b")
	b.Role = model.RoleAdmin
	require.NoError(t, users.CreateUser(ctx, a))
	require.NoError(t, users.CreateUser(ctx, b))

	require.NoError(t, index.Record(ctx, a.ID, "same", time.Now().Add(-time.Minute)))
	require.NoError(t, index.Record(ctx, b.ID, "same", time.Now().Add(time.Minute)))

	var count int64
	require.NoError(t, db.Model(&model.AccessToken{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	role, err := index.LookupRole(ctx, "same")
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, role)
}

func TestTokenIndex_ConcurrentRecords(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	u := newUser("busy")
	require.NoError(t, users.CreateUser(ctx, u))

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- index.Record(ctx, u.ID, fmt.Sprintf("token-%d", i), time.Now().Add(time.Minute))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&model.AccessToken{}).Where("user_id = ?", u.ID).Count(&count).Error)
	require.EqualValues(t, n, count)
}

func TestTokenIndex_PurgeExpired(t *testing.T) {
	db := dbtest.Open(t)
	users := NewPostgresUserRepo(db)
	index := NewPostgresTokenIndex(db)
	ctx := context.Background()

	u := newUser("p")
	require.NoError(t, users.CreateUser(ctx, u))
	require.NoError(t, index.Record(ctx, u.ID, "gone", time.Now().Add(-time.Hour)))
	require.NoError(t, index.Record(ctx, u.ID, "live", time.Now().Add(time.Hour)))

	n, err := index.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = index.LookupRole(ctx, "live")
	require.NoError(t, err)
}
