package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

func executeSeed(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useMemoryStore(t *testing.T) *patients.MemoryRepository {
	t.Helper()
	repo := patients.NewMemoryRepository()
	prev := openStore
	openStore = func(context.Context, *appconfig.Config, *logging.Logger) (catalogStore, func(), error) {
		return repo, func() {}, nil
	}
	t.Cleanup(func() { openStore = prev })
	return repo
}

func TestSeedBundledCatalogDryRun(t *testing.T) {
	out, err := executeSeed(t, "symptoms", "--dry-run", "--file", filepath.Join("..", "..", "data", "symptoms.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Chest Pain / Discomfort (6 questions)")
	assert.Contains(t, out, "7 symptoms")
}

func TestSeedWritesAndLists(t *testing.T) {
	repo := useMemoryStore(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"symptom":"Palpitations","follow_up_questions":{"history":["Before?"]}}]`), 0o600))

	out, err := executeSeed(t, "symptoms", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 1 symptoms")

	stored, err := repo.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "history", stored[0].FollowUps[0].Category)

	out, err = executeSeed(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Palpitations (1 questions)")
}

func TestSeedMissingFile(t *testing.T) {
	useMemoryStore(t)
	_, err := executeSeed(t, "symptoms", "-f", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
