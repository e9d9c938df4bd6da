// Package settings edits the pixie configuration file from the CLI.
// It rewrites the TOML document in place, keeping keys it does not
// know about, and validates the result before committing it.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/EimisPacheco/pixie/internal/config"
)

const (
	settingsFileMode = 0o600
	settingsDirMode  = 0o700
)

// Entry is one effective setting for display.
type Entry struct {
	Key   string
	Value string
}

// Repository performs read-modify-write cycles on one config file. An
// empty path means the default location.
type Repository struct {
	path string
	mu   sync.Mutex
}

func NewRepository(path string) *Repository {
	return &Repository{path: strings.TrimSpace(path)}
}

// Path returns the file the repository edits.
func (r *Repository) Path() (string, error) {
	if r.path != "" {
		return r.path, nil
	}
	return config.DefaultFile()
}

// Set stores one value. The updated file is loaded back before the
// change is kept, so a value the daemon would refuse is rolled back.
func (r *Repository) Set(key string, rawValue string) error {
	spec, err := specFor(key)
	if err != nil {
		return err
	}
	value, err := coerce(spec, rawValue)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.Path()
	if err != nil {
		return err
	}

	original, hadFile, err := readRaw(path)
	if err != nil {
		return err
	}

	doc := map[string]any{}
	if hadFile {
		if err := toml.Unmarshal(original, &doc); err != nil {
			return fmt.Errorf("decode config file %q: %w", path, err)
		}
	}
	if err := setNested(doc, strings.Split(key, "."), value); err != nil {
		return err
	}
	if err := writeDoc(path, doc); err != nil {
		return err
	}

	if _, err := config.Load(path); err != nil {
		if restoreErr := restore(path, original, hadFile); restoreErr != nil {
			return fmt.Errorf("%w (and restoring the previous config failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("value rejected: %w", err)
	}
	return nil
}

// Get returns the effective value for one key, with defaults and
// environment overrides applied.
func (r *Repository) Get(key string) (string, error) {
	spec, err := specFor(key)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(r.path)
	if err != nil {
		return "", err
	}
	return spec.read(cfg), nil
}

// Show returns every effective setting in sorted key order.
func (r *Repository) Show() ([]Entry, error) {
	cfg, err := config.Load(r.path)
	if err != nil {
		return nil, err
	}

	keys := Keys()
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: key, Value: keySpecs[key].read(cfg)})
	}
	return entries, nil
}

func readRaw(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read config file %q: %w", path, err)
	}
	return data, true, nil
}

func setNested(doc map[string]any, segments []string, value any) error {
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		child, ok := current[segment]
		if !ok {
			next := map[string]any{}
			current[segment] = next
			current = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("setting %q conflicts with an existing value", strings.Join(segments, "."))
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return nil
}

func writeDoc(path string, doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}
	return writeRaw(path, data)
}

func writeRaw(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, settingsDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmp.Chmod(settingsFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	cleanup = false
	return nil
}

func restore(path string, original []byte, hadFile bool) error {
	if !hadFile {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeRaw(path, original)
}
