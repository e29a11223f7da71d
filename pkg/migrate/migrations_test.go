package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))

	embedded, err := Source("", true)
	require.NoError(t, err)
	require.NoError(t, ValidateFS(embedded))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(Embedded, "migrations/*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	assert.Len(t, embedded, len(onDisk))
	assert.NotEmpty(t, embedded)
}

func TestSourcePicksEmbeddedOrDisk(t *testing.T) {
	embedded, err := Source("", true)
	require.NoError(t, err)
	fromEmbed, err := fs.Glob(embedded, "*.sql")
	require.NoError(t, err)

	disk, err := Source("migrations", false)
	require.NoError(t, err)
	fromDisk, err := fs.Glob(disk, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, fromDisk, fromEmbed)

	_, err = Source("", false)
	assert.Error(t, err)
}

func TestTipIntentsMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_tip_intents_table")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS tip_intents",
		"amount numeric(12,3) NOT NULL CHECK (amount > 0)",
		"CONSTRAINT tip_intents_idempotency_key_key UNIQUE (idempotency_key)",
		"table_qr_id uuid REFERENCES table_qrs(id) ON DELETE SET NULL",
		"employee_id uuid REFERENCES employees(id) ON DELETE SET NULL",
		"merchant_id uuid NOT NULL REFERENCES merchants(id) ON DELETE CASCADE",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestLedgerEntriesMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_ledger_entries_table")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"amount numeric(12,3) NOT NULL",
		"CONSTRAINT ledger_entries_tip_intent_type_key UNIQUE (tip_intent_id, type)",
		"BEFORE UPDATE OR DELETE ON ledger_entries",
		"RAISE EXCEPTION 'ledger_entries is append-only'",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestMerchantsMigrationTableCodeUniquePerMerchant(t *testing.T) {
	content := readMigration(t, "create_merchants_table")
	assert.Contains(t, content, "UNIQUE (merchant_id, table_code)")
	assert.Contains(t, content, "table_code varchar(50) NOT NULL")
}

func TestProcessedEventsMigrationUniqueEventID(t *testing.T) {
	content := readMigration(t, "create_processed_events_table")
	assert.Contains(t, content, "CONSTRAINT processed_events_event_id_key UNIQUE (event_id)")

	index := readMigration(t, "index_processed_events_processed_at")
	assert.Contains(t, index, "ON processed_events (processed_at)")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Tip Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_tip_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFilenames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.Error(t, ValidateDir(dir))
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644))
	assert.Error(t, ValidateDir(dir))
}
