package bootstrap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	services, err := Build(Options{Output: io.Discard, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil {
		t.Fatal("expected a controller")
	}
	if services.Secrets == nil || services.Voice == nil || services.Generator == nil {
		t.Fatal("expected credential probes to be wired")
	}
	if services.Registry == nil || services.Metrics == nil {
		t.Fatal("expected metrics to be wired")
	}
}

func TestBuildFailsOnInvalidRules(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	rulesPath := filepath.Join(home, ".config", "pixie", "substitutions.rules")
	if err := os.MkdirAll(filepath.Dir(rulesPath), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(rulesPath, []byte("not a valid rule\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Build(Options{Output: io.Discard, LogOutput: io.Discard}); err == nil {
		t.Fatal("expected build error due to invalid rules")
	}
}

func TestBuildFailsOnInvalidConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, "config.toml")
	if err := os.WriteFile(configPath, []byte("[log]\nlevel = \"loud\"\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Build(Options{ConfigPath: configPath, Output: io.Discard, LogOutput: io.Discard}); err == nil {
		t.Fatal("expected build error due to invalid config")
	}
}

func TestBuildRespectsLogFormat(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, "config.toml")
	if err := os.WriteFile(configPath, []byte("[log]\nlevel = \"debug\"\nformat = \"json\"\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var logs bytes.Buffer
	services, err := Build(Options{ConfigPath: configPath, Output: io.Discard, LogOutput: &logs})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	services.Logger.Debug("wired")
	if !bytes.Contains(logs.Bytes(), []byte(`"msg":"wired"`)) {
		t.Fatalf("expected JSON debug logs, got %q", logs.String())
	}
}
