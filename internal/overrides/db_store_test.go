package overrides

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(nil, logger.LogLevelError)
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	set, warnings, err := s.Load(ctx, testOutputID)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Zero(t, set.Len())

	require.NoError(t, s.Append(ctx, testOutputID, KindReject, []int{42, 7}))
	require.NoError(t, s.Append(ctx, testOutputID, KindAccept, []int{605}))
	require.NoError(t, s.Append(ctx, "other", KindAccept, []int{42}))

	set, _, err = s.Load(ctx, testOutputID)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 42}, set.IDs(KindReject))
	assert.Equal(t, []int{605}, set.IDs(KindAccept))

	// a later entry for the same id supersedes the earlier one
	require.NoError(t, s.Append(ctx, testOutputID, KindAccept, []int{42}))
	set, _, err = s.Load(ctx, testOutputID)
	require.NoError(t, err)
	assert.Equal(t, []int{42, 605}, set.IDs(KindAccept))
	assert.Equal(t, []int{7}, set.IDs(KindReject))
	assert.Empty(t, set.Conflicts())
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "overrides.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestSQLiteStoreSkipsUnknownKinds(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "overrides.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.db.Create(&Entry{OutputID: testOutputID, Kind: "maybe", SourceID: 3}).Error)
	require.NoError(t, s.Append(context.Background(), testOutputID, KindReject, []int{4}))

	set, warnings, err := s.Load(context.Background(), testOutputID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], errors.ErrMalformedOverride)
	assert.Equal(t, []int{4}, set.IDs(KindReject))
}

func TestMySQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("sourcefilter"),
		tcmysql.WithUsername("sf"),
		tcmysql.WithPassword("sf"),
	)
	if err != nil {
		t.Skipf("mysql container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	s, err := OpenMySQL(dsn, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}
