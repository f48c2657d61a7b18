package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider_message_id TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	message_type TEXT NOT NULL,
	content TEXT,
	agent_reply TEXT,
	processing_status TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_provider_id ON messages(provider_message_id);

CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	phone_number TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	last_message TEXT,
	last_message_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_phone ON conversations(phone_number);

CREATE TRIGGER IF NOT EXISTS messages_updated_at
AFTER UPDATE ON messages
BEGIN
	UPDATE messages SET updated_at = CURRENT_TIMESTAMP
	WHERE id = NEW.id;
END;`

func writeTestSchema(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	migrationsPath := filepath.Join(tmpDir, "migrations")
	require.NoError(t, os.MkdirAll(migrationsPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(migrationsPath, "001_initial_schema.sql"), []byte(testSchema), 0o644))
	return tmpDir
}

func TestGetInitialSchema(t *testing.T) {
	tmpDir := writeTestSchema(t)

	originalDir := MigrationsDir
	MigrationsDir = filepath.Join(tmpDir, "migrations")
	defer func() { MigrationsDir = originalDir }()

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS messages")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS conversations")
	assert.Contains(t, schema, "idx_messages_provider_id")
	assert.Contains(t, schema, "CREATE TRIGGER IF NOT EXISTS messages_updated_at")
}

func TestGetInitialSchemaMissing(t *testing.T) {
	originalDir := MigrationsDir
	MigrationsDir = filepath.Join(t.TempDir(), "nonexistent")
	defer func() { MigrationsDir = originalDir }()

	_, err := GetInitialSchema()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find schema file")
}

func TestGetInitialSchemaRelativeToWorkingDirectory(t *testing.T) {
	tmpDir := writeTestSchema(t)
	t.Chdir(tmpDir)

	originalDir := MigrationsDir
	MigrationsDir = "migrations"
	defer func() { MigrationsDir = originalDir }()

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS messages")
}

func TestGetInitialSchemaParentDirectorySearch(t *testing.T) {
	tmpDir := writeTestSchema(t)

	// Two levels down, the ../../ fallback should find the schema.
	deepDir := filepath.Join(tmpDir, "cmd", "salesbridge")
	require.NoError(t, os.MkdirAll(deepDir, 0o755))
	t.Chdir(deepDir)

	originalDir := MigrationsDir
	MigrationsDir = "migrations"
	defer func() { MigrationsDir = originalDir }()

	schema, err := GetInitialSchema()
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS conversations")
}
