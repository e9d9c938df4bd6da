package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EimisPacheco/pixie/internal/ports"
)

type stubStore struct {
	value  string
	getErr error
	putErr error
	delErr error

	gets    int
	puts    int
	deletes int
}

func (s *stubStore) Get(ctx context.Context, key string) (string, error) {
	s.gets++
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.value, nil
}

func (s *stubStore) Put(ctx context.Context, key string, value string) error {
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.value = value
	return nil
}

func (s *stubStore) Delete(ctx context.Context, key string) error {
	s.deletes++
	return s.delErr
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewFileStore(root)

	require.NoError(t, store.Put(context.Background(), "elevenlabs_api_key", "xi-secret\n"))

	got, err := store.Get(context.Background(), "elevenlabs_api_key")
	require.NoError(t, err)
	assert.Equal(t, "xi-secret", got)

	info, err := os.Stat(filepath.Join(root, "elevenlabs_api_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMode), info.Mode().Perm())
}

func TestFileStoreMissingSecret(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())

	_, err := store.Get(context.Background(), "agent_id")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestFileStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	for _, key := range []string{"", "   ", "/absolute", "../escape", "."} {
		err := store.Put(context.Background(), key, "value")
		require.Error(t, err, "key %q should be rejected", key)
	}
}

func TestFileStoreDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), "gemini_api_key", "g-secret"))
	require.NoError(t, store.Delete(context.Background(), "gemini_api_key"))
	require.NoError(t, store.Delete(context.Background(), "gemini_api_key"))

	_, err := store.Get(context.Background(), "gemini_api_key")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestEnvStoreReadsPrefixedVariable(t *testing.T) {
	t.Setenv("PIXIE_ELEVENLABS_API_KEY", " xi-from-env ")

	got, err := NewEnvStore().Get(context.Background(), "elevenlabs_api_key")
	require.NoError(t, err)
	assert.Equal(t, "xi-from-env", got)
}

func TestEnvStoreMissingVariable(t *testing.T) {
	t.Setenv("PIXIE_AGENT_ID", "")

	_, err := NewEnvStore().Get(context.Background(), "agent_id")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestEnvStoreRejectsWrites(t *testing.T) {
	t.Parallel()

	store := NewEnvStore()
	require.Error(t, store.Put(context.Background(), "agent_id", "a1"))
	require.Error(t, store.Delete(context.Background(), "agent_id"))
}

func TestChainPrefersPrimary(t *testing.T) {
	t.Parallel()

	primary := &stubStore{value: "from-env"}
	fallback := &stubStore{value: "from-file"}
	chain := NewChain(primary, fallback)

	got, err := chain.Get(context.Background(), "agent_id")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
	assert.Zero(t, fallback.gets)
}

func TestChainFallsBackOnMiss(t *testing.T) {
	t.Parallel()

	primary := &stubStore{getErr: ports.ErrSecretNotFound}
	fallback := &stubStore{value: "from-file"}
	chain := NewChain(primary, fallback)

	got, err := chain.Get(context.Background(), "agent_id")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)
}

func TestChainDoubleMissIsNotFound(t *testing.T) {
	t.Parallel()

	chain := NewChain(
		&stubStore{getErr: ports.ErrSecretNotFound},
		&stubStore{getErr: ports.ErrSecretNotFound},
	)

	_, err := chain.Get(context.Background(), "agent_id")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestChainCombinesDistinctFailures(t *testing.T) {
	t.Parallel()

	chain := NewChain(
		&stubStore{getErr: errors.New("env exploded")},
		&stubStore{getErr: errors.New("disk exploded")},
	)

	_, err := chain.Get(context.Background(), "agent_id")
	require.Error(t, err)
	assert.ErrorContains(t, err, "env exploded")
	assert.ErrorContains(t, err, "disk exploded")
}

func TestChainPutFallsPastReadOnlyPrimary(t *testing.T) {
	t.Parallel()

	fallback := &stubStore{}
	chain := NewChain(NewEnvStore(), fallback)

	require.NoError(t, chain.Put(context.Background(), "agent_id", "a1"))
	assert.Equal(t, 1, fallback.puts)
	assert.Equal(t, "a1", fallback.value)
}

func TestChainSkipsFallbackOnCanceledContext(t *testing.T) {
	t.Parallel()

	fallback := &stubStore{value: "from-file"}
	chain := NewChain(&stubStore{getErr: context.Canceled}, fallback)

	_, err := chain.Get(context.Background(), "agent_id")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fallback.gets)
}
