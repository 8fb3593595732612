package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasDown(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	require.NotEmpty(t, names)
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], "missing down for %s", name)
		}
	}
}

func TestSchemaCoversRepositoryTables(t *testing.T) {
	data, err := fs.ReadFile(FS, "000001_init.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"symptoms", "patients", "patient_symptoms", "chat_history", "appointments"} {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
