// Package textfield implements the text target as a plain file on
// disk. The agent's tools read and rewrite it the way the voice
// service expects a text field to behave.
package textfield

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EimisPacheco/pixie/internal/ports"
)

const (
	targetFileMode = 0o644
	targetDirMode  = 0o755
)

// FileTarget resolves the target file from a pinned path or an ordered
// candidate list. Reads take the first candidate that exists; writes
// fall back to creating the first candidate when none exist yet.
type FileTarget struct {
	path       string
	candidates []string
	mu         sync.Mutex
}

var _ ports.TextTarget = (*FileTarget)(nil)

func NewFileTarget(path string, candidates []string) *FileTarget {
	return &FileTarget{path: path, candidates: candidates}
}

// Read returns the target's content, or the empty string when no
// candidate file exists yet.
func (t *FileTarget) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readLocked()
}

// Write replaces the target's content, or appends to it when
// appendText is set. The file is replaced atomically so a reader never
// observes a half-written state.
func (t *FileTarget) Write(ctx context.Context, text string, appendText bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path, err := t.writePath()
	if err != nil {
		return err
	}

	content := text
	if appendText {
		existing, err := t.readLocked()
		if err != nil {
			return err
		}
		content = existing + text
	}

	return replaceFile(path, content)
}

func (t *FileTarget) readLocked() (string, error) {
	path, ok := t.readPath()
	if !ok {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read text target %q: %w", path, err)
	}
	return string(data), nil
}

func (t *FileTarget) readPath() (string, bool) {
	if t.path != "" {
		return t.path, true
	}
	for _, candidate := range t.candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (t *FileTarget) writePath() (string, error) {
	if path, ok := t.readPath(); ok {
		return path, nil
	}
	if len(t.candidates) > 0 {
		return t.candidates[0], nil
	}
	return "", errors.New("no text target configured")
}

func replaceFile(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, targetDirMode); err != nil {
		return fmt.Errorf("create text target directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pixie-target-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp text target: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp text target: %w", err)
	}
	if err := tmp.Chmod(targetFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp text target: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp text target: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace text target: %w", err)
	}

	cleanup = false
	return nil
}
