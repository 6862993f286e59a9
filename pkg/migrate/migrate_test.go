package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSourceMatchesDisk(t *testing.T) {
	embeddedFS, err := Source("")
	require.NoError(t, err)
	diskFS, err := Source("migrations")
	require.NoError(t, err)

	embeddedFiles, err := fs.Glob(embeddedFS, "*.sql")
	require.NoError(t, err)
	diskFiles, err := fs.Glob(diskFS, "*.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, embeddedFiles)
	assert.Equal(t, diskFiles, embeddedFiles)
	require.NoError(t, ValidateFS(embeddedFS))
}

func TestValidateFSCollectsProblems(t *testing.T) {
	good := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	fsys := fstest.MapFS{
		"20260301090000_ok.sql":       {Data: []byte(good)},
		"20260301090000_dupe.sql":     {Data: []byte(good)},
		"20260301090100_no_down.sql":  {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260301090200_reversed.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"Bad-Name.sql":                {Data: []byte(good)},
		"README.md":                   {Data: []byte("ignored")},
	}

	err := ValidateFS(fsys)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "already used by")
	assert.Contains(t, msg, `missing "-- +goose Down"`)
	assert.Contains(t, msg, "down section appears before up section")
	assert.Contains(t, msg, "Bad-Name.sql")
	assert.NotContains(t, msg, "README.md")
}

func TestCreateSQLMigrationSlugsName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	full, err := createAt(dir, "Add Low-Stock Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260302083000_add_low_stock_index.sql"), full)

	body, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), upMarker))
	require.NoError(t, ValidateDir(dir))

	_, err = createAt(dir, "add low stock index", now)
	require.Error(t, err, "same version and slug must not overwrite")

	_, err = createAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301090500")
	require.NoError(t, err)
	assert.Equal(t, int64(20260301090500), v)

	_, err = ParseVersion("2026")
	require.Error(t, err)
}
