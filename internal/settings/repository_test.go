package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) (*Repository, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	return NewRepository(path), path
}

func TestSetCreatesFileAndGetReadsItBack(t *testing.T) {
	repo, path := newRepository(t)

	require.NoError(t, repo.Set("audio.sample_rate", "22050"))
	require.FileExists(t, path)

	got, err := repo.Get("audio.sample_rate")
	require.NoError(t, err)
	assert.Equal(t, "22050", got)
}

func TestSetPreservesUnknownKeys(t *testing.T) {
	repo, path := newRepository(t)
	require.NoError(t, os.WriteFile(path, []byte("[custom]\nnote = \"keep me\"\n"), 0o600))

	require.NoError(t, repo.Set("log.level", "debug"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep me")

	got, err := repo.Get("log.level")
	require.NoError(t, err)
	assert.Equal(t, "debug", got)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	repo, _ := newRepository(t)

	err := repo.Set("audio.gain", "11")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown setting")
}

func TestSetValidatesValueKinds(t *testing.T) {
	repo, _ := newRepository(t)

	testCases := []struct {
		key   string
		value string
	}{
		{"audio.sample_rate", "fast"},
		{"rules.spoken_commands", "definitely"},
		{"session.stop_grace", "soon"},
		{"session.revision_threshold", "lots"},
	}
	for _, tc := range testCases {
		err := repo.Set(tc.key, tc.value)
		require.Error(t, err, "value %q for %s should be rejected", tc.value, tc.key)
	}
}

func TestSetStoresDurationsAsStrings(t *testing.T) {
	repo, _ := newRepository(t)

	require.NoError(t, repo.Set("session.stop_grace", "250ms"))

	got, err := repo.Get("session.stop_grace")
	require.NoError(t, err)
	assert.Equal(t, "250ms", got)
}

func TestSetSplitsListValues(t *testing.T) {
	repo, _ := newRepository(t)

	require.NoError(t, repo.Set("target.candidates", "/tmp/a.txt, /tmp/b.txt"))

	got, err := repo.Get("target.candidates")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.txt,/tmp/b.txt", got)
}

func TestSetRollsBackRejectedValues(t *testing.T) {
	repo, path := newRepository(t)
	require.NoError(t, repo.Set("log.level", "debug"))

	err := repo.Set("log.level", "loud")
	require.Error(t, err)

	got, readErr := repo.Get("log.level")
	require.NoError(t, readErr)
	assert.Equal(t, "debug", got)
	require.FileExists(t, path)
}

func TestSetRollbackRemovesFreshFile(t *testing.T) {
	repo, path := newRepository(t)

	err := repo.Set("log.format", "xml")
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestGetReadsDefaultsForUnsetKeys(t *testing.T) {
	repo, _ := newRepository(t)
	require.NoError(t, repo.Set("audio.channels", "2"))

	got, err := repo.Get("log.level")
	require.NoError(t, err)
	assert.Equal(t, "info", got)
}

func TestShowListsEveryKey(t *testing.T) {
	repo, _ := newRepository(t)
	require.NoError(t, repo.Set("generative.model", "gemini-2.5-pro"))

	entries, err := repo.Show()
	require.NoError(t, err)
	require.Len(t, entries, len(Keys()))

	byKey := map[string]string{}
	for _, entry := range entries {
		byKey[entry.Key] = entry.Value
	}
	assert.Equal(t, "gemini-2.5-pro", byKey["generative.model"])
	assert.Equal(t, "https://api.elevenlabs.io", byKey["voice.api_base_url"])
	assert.Equal(t, "4096", byKey["session.chunk_size"])
}
