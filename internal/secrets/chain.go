package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/EimisPacheco/pixie/internal/ports"
)

// Chain consults a primary store first and falls back to a second one.
// The daemon runs with the environment as primary so that exported
// variables override what "pixie settings secret set" stored on disk.
type Chain struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Chain)(nil)

func NewChain(primary, fallback ports.SecretStore) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	value, err := c.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := c.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}
	return "", combine(err, fallbackErr)
}

func (c *Chain) Put(ctx context.Context, key string, value string) error {
	err := c.primary.Put(ctx, key, value)
	if err == nil || shouldSkipFallback(err) {
		return err
	}

	if fallbackErr := c.fallback.Put(ctx, key, value); fallbackErr != nil {
		return combine(err, fallbackErr)
	}
	return nil
}

func (c *Chain) Delete(ctx context.Context, key string) error {
	err := c.primary.Delete(ctx, key)
	if err == nil || shouldSkipFallback(err) {
		return err
	}

	if fallbackErr := c.fallback.Delete(ctx, key); fallbackErr != nil {
		return combine(err, fallbackErr)
	}
	return nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// combine collapses a double miss into the plain not-found sentinel so
// callers can match it with errors.Is.
func combine(primaryErr, fallbackErr error) error {
	if errors.Is(primaryErr, ports.ErrSecretNotFound) && errors.Is(fallbackErr, ports.ErrSecretNotFound) {
		return fallbackErr
	}
	return fmt.Errorf("primary store failed: %w; fallback store failed: %w", primaryErr, fallbackErr)
}
