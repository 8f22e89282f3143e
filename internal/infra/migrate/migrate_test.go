package migrate

import (
	"io/fs"
	"strings"
	"testing"

	migrationsFS "github.com/Miraines/MoonyAndStarry/account-service/scripts/db/migrations"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
)

func TestMigrations_PairedUpAndDown(t *testing.T) {
	names, err := fs.Glob(migrationsFS.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", n)
		}
	}
	require.Equal(t, ups, downs)
}

func TestMigrations_SourceReadsVersions(t *testing.T) {
	src, err := iofs.New(migrationsFS.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	require.EqualValues(t, 1, first)

	next, err := src.Next(first)
	require.NoError(t, err)
	require.EqualValues(t, 2, next)
}

func TestMigrations_TokenIndexCascades(t *testing.T) {
	body, err := fs.ReadFile(migrationsFS.FS, "000002_create_access_tokens.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(body), "ON DELETE CASCADE")
}
