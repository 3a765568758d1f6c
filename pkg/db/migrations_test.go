package db

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/dupdetect/pkg/errors"
)

func testMigrationsFS() fstest.MapFS {
	return fstest.MapFS{
		"002_second.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
		"001_first.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
		"003_third.SQL":    {Data: []byte("CREATE TABLE c (id INT);")},
		"README.md":        {Data: []byte("not a migration")},
		"nested/004_x.sql": {Data: []byte("ignored")},
	}
}

func TestFindMigrations(t *testing.T) {
	migrations, err := findMigrations(testMigrationsFS())
	require.NoError(t, err)

	require.Len(t, migrations, 3)
	assert.Equal(t, "001_first", migrations[0].Version)
	assert.Equal(t, "001_first.sql", migrations[0].Name)
	assert.Equal(t, "002_second", migrations[1].Version)
	assert.Equal(t, "003_third", migrations[2].Version)
	assert.Equal(t, "003_third.SQL", migrations[2].Name)
}

func TestFindMigrations_Empty(t *testing.T) {
	migrations, err := findMigrations(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestMigrationsUpTo(t *testing.T) {
	migrations, err := findMigrations(testMigrationsFS())
	require.NoError(t, err)

	all, err := migrationsUpTo(migrations, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := migrationsUpTo(migrations, "002_second")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "002_second", some[1].Version)

	withSuffix, err := migrationsUpTo(migrations, "002_second.sql")
	require.NoError(t, err)
	assert.Len(t, withSuffix, 2)

	_, err = migrationsUpTo(migrations, "999_missing")
	require.Error(t, err)
	assert.True(t, pferrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "999_missing")
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"001_init.sql", "001_init"},
		{"001_init.SQL", "001_init"},
		{"001_init", "001_init"},
		{".sql", ".sql"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeVersion(tt.in), tt.in)
	}
}

func TestBuildStatus(t *testing.T) {
	migrations, err := findMigrations(testMigrationsFS())
	require.NoError(t, err)

	appliedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	applied := map[string]time.Time{
		"001_first":   appliedAt,
		"000_removed": appliedAt,
	}

	status := buildStatus(migrations, applied)

	require.Len(t, status.Applied, 1)
	assert.Equal(t, "001_first", status.Applied[0].Version)
	require.NotNil(t, status.Applied[0].AppliedAt)
	assert.True(t, status.Applied[0].AppliedAt.Equal(appliedAt))

	require.Len(t, status.Pending, 2)
	assert.Nil(t, status.Pending[0].AppliedAt)

	require.Len(t, status.Drift, 1)
	assert.Equal(t, "000_removed", status.Drift[0].Version)
	assert.Equal(t, "000_removed.sql", status.Drift[0].Name)
}

func TestEmbeddedMigrations(t *testing.T) {
	fsys := Migrations()

	migrations, err := findMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_detected_duplicates", migrations[0].Version)
	assert.Equal(t, "002_detection_runs", migrations[1].Version)

	schema, err := fs.ReadFile(fsys, migrations[0].Name)
	require.NoError(t, err)
	assert.Contains(t, string(schema), "UNIQUE (entity_type, id_1, id_2)")
	assert.Contains(t, string(schema), "match_details")

	runs, err := fs.ReadFile(fsys, migrations[1].Name)
	require.NoError(t, err)
	assert.Contains(t, string(runs), "entity_types")
}

func TestRunMigrations_NilPool(t *testing.T) {
	_, err := RunMigrations(context.Background(), nil, testMigrationsFS())
	assert.Error(t, err)

	_, err = RunMigrationsToTarget(context.Background(), nil, testMigrationsFS(), "001_first")
	assert.Error(t, err)

	_, err = GetMigrationStatus(context.Background(), nil, testMigrationsFS())
	assert.Error(t, err)
}
