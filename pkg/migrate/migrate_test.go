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

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)

	count, err := ValidateFS(fsys)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 4)

	onDisk, err := ValidateDir("migrations")
	require.NoError(t, err)
	assert.Equal(t, count, onDisk)
}

func TestEmbeddedMigrationsDeclareSchema(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)
	files, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)

	var all strings.Builder
	for _, name := range files {
		b, err := fs.ReadFile(fsys, name)
		require.NoError(t, err)
		all.Write(b)
	}
	content := all.String()

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS stores",
		"CHECK (commission_rate >= 0 AND commission_rate <= 100)",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CREATE TABLE IF NOT EXISTS checkout_sessions",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TYPE order_status AS ENUM ('pending', 'paid')",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewRunnerRequiresDB(t *testing.T) {
	_, err := NewRunner(nil, "")
	assert.Error(t, err)
}

func TestCreateSQLMigrationWritesValidTemplate(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

	path, err := createAt(dir, "Add Store Banner!", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260504030201_add_store_banner.sql"), path)

	count, err := ValidateDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = createAt(dir, "add store banner", at)
	assert.Error(t, err, "same version and slug must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestMigrationSlug(t *testing.T) {
	assert.Equal(t, "add_store_banner", migrationSlug("  Add--Store Banner "))
	assert.Equal(t, "v2_orders", migrationSlug("V2 orders"))
	assert.Empty(t, migrationSlug("***"))
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	const okBody = "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{name: "bad filename", files: fstest.MapFS{"1_init.sql": {Data: []byte(okBody)}}},
		{name: "duplicate version", files: fstest.MapFS{
			"20260101000000_a.sql": {Data: []byte(okBody)},
			"20260101000000_b.sql": {Data: []byte(okBody)},
		}},
		{name: "missing down", files: fstest.MapFS{"20260101000000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}}},
		{name: "down before up", files: fstest.MapFS{"20260101000000_init.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}}},
		{name: "unterminated block", files: fstest.MapFS{"20260101000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}}},
		{name: "stray end", files: fstest.MapFS{"20260101000000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFS(tt.files)
			assert.Error(t, err)
		})
	}
}

func TestValidateFSIgnoresNonSQL(t *testing.T) {
	count, err := ValidateFS(fstest.MapFS{
		"README.md":            {Data: []byte("notes")},
		"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidateDirRequiresExistingDir(t *testing.T) {
	_, err := ValidateDir("")
	assert.Error(t, err)
	_, err = ValidateDir(filepath.Join(os.TempDir(), "marketplace-missing-migrations"))
	assert.Error(t, err)
}
