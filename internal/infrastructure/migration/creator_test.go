package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add accounts table", "add_accounts_table"},
		{"Add-Journal-Lines", "add_journal_lines"},
		{"ADD_FISCAL_YEARS", "add_fiscal_years"},
		{"add__receivable__index", "add_receivable_index"},
		{"Partition Lines 2027", "partition_lines_2027"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

	info, err := createMigrationAt(dir, "add tax columns", "Tax payable per invoice line", now)
	require.NoError(t, err)

	assert.Equal(t, uint64(20261001093000), info.Version)
	assert.Equal(t, "add_tax_columns", info.Name)
	assert.Equal(t, filepath.Join(dir, "20261001093000_add_tax_columns.up.sql"), info.UpPath)
	assert.Equal(t, filepath.Join(dir, "20261001093000_add_tax_columns.down.sql"), info.DownPath)

	up, err := os.ReadFile(info.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add tax columns")
	assert.Contains(t, string(up), "-- Description: Tax payable per invoice line")
	assert.Contains(t, string(up), "tenant_id")

	down, err := os.ReadFile(info.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")
}

func TestCreateMigration_VersionAfterExisting(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "20991231000000_future.up.sql", "20991231000000_future.down.sql")

	info, err := createMigrationAt(dir, "next", "", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, uint64(20991231000001), info.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	st, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000003_add_payments.up.sql",
		"000001_init_schema.up.sql",
		"000001_init_schema.down.sql",
		"000002_add_invoices.up.sql",
		"000002_add_invoices.down.sql",
		"README.md",
		"notes_without_version.up.sql",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "4_subdir.up.sql"), 0o755))

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, uint64(1), list[0].Version)
	assert.Equal(t, "init_schema", list[0].Name)
	assert.NotEmpty(t, list[0].DownPath)
	assert.Equal(t, uint64(2), list[1].Version)
	assert.Equal(t, "add_payments", list[2].Name)
	assert.Empty(t, list[2].DownPath)
}

func TestListMigrations_DownWithoutUp(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "000001_orphan.down.sql")

	_, err := ListMigrations(dir)
	assert.Error(t, err)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	list, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestShippedMigrationsArePaired(t *testing.T) {
	list, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for _, m := range list {
		assert.NotEmpty(t, m.DownPath, "migration %s has no down file", m.BaseName())
	}
}

func TestNewStatus(t *testing.T) {
	files := []MigrationInfo{
		{Version: 1, Name: "a"},
		{Version: 2, Name: "b"},
		{Version: 3, Name: "c"},
	}

	s := newStatus(2, false, files)
	assert.Len(t, s.Applied, 2)
	require.Len(t, s.Pending, 1)
	assert.Equal(t, "c", s.Pending[0].Name)

	fresh := newStatus(0, false, files)
	assert.Empty(t, fresh.Applied)
	assert.Len(t, fresh.Pending, 3)
}

func TestZapMigrateLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &zapMigrateLogger{logger: zap.New(core)}

	l.Printf("1/u init_schema (%s)\n", "12ms")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "1/u init_schema (12ms)", logs.All()[0].Message)
	assert.False(t, l.Verbose())
}
