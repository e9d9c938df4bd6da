package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/EimisPacheco/pixie/internal/ports"
)

const envPrefix = "PIXIE_"

var errEnvReadOnly = errors.New("environment secrets are read-only")

// EnvStore reads secrets from PIXIE_* environment variables, so a key
// like "elevenlabs_api_key" maps to PIXIE_ELEVENLABS_API_KEY. Writes
// are rejected.
type EnvStore struct{}

var _ ports.SecretStore = EnvStore{}

func NewEnvStore() EnvStore {
	return EnvStore{}
}

func (EnvStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value := strings.TrimSpace(os.Getenv(EnvName(key)))
	if value == "" {
		return "", fmt.Errorf("secret %q: %w", key, ports.ErrSecretNotFound)
	}
	return value, nil
}

func (EnvStore) Put(ctx context.Context, key string, value string) error {
	return errEnvReadOnly
}

func (EnvStore) Delete(ctx context.Context, key string) error {
	return errEnvReadOnly
}

// EnvName returns the environment variable that carries the given
// secret key.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.TrimSpace(key))
}
