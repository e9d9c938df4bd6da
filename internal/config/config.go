package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PIXIE"

// Config stores the daemon's runtime configuration. Credentials are
// not part of it; they live in the secret store.
type Config struct {
	Voice      VoiceConfig      `mapstructure:"voice"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Playback   PlaybackConfig   `mapstructure:"playback"`
	Clipboard  ClipboardConfig  `mapstructure:"clipboard"`
	Target     TargetConfig     `mapstructure:"target"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Session    SessionConfig    `mapstructure:"session"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

type VoiceConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
}

type GenerativeConfig struct {
	APIBaseURL      string `mapstructure:"api_base_url"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
}

type PlaybackConfig struct {
	// PlayerCommand is the playback binary; "none" disables playback
	// entirely.
	PlayerCommand string `mapstructure:"player_command"`
	SampleRate    int    `mapstructure:"sample_rate"`
	Channels      int    `mapstructure:"channels"`
}

type ClipboardConfig struct {
	// Command pins the clipboard helper; empty means autodetect.
	Command string `mapstructure:"command"`
}

type TargetConfig struct {
	// Path pins the text target to one file. When empty, the first
	// existing candidate wins for reads and the first candidate is
	// created for writes.
	Path       string   `mapstructure:"path"`
	Candidates []string `mapstructure:"candidates"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
	SpokenCommands bool   `mapstructure:"spoken_commands"`
}

type SessionConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size"`
	StopGrace         time.Duration `mapstructure:"stop_grace"`
	DedupeLimit       int           `mapstructure:"dedupe_limit"`
	RevisionThreshold float64       `mapstructure:"revision_threshold"`
}

type MetricsConfig struct {
	// Addr is the Prometheus listen address; empty disables the
	// endpoint.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir returns the pixie configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "pixie"), nil
}

// DefaultFile returns the default config file path.
func DefaultFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SecretsDir returns where file-backed secrets are stored.
func SecretsDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "secrets"), nil
}

// Load resolves configuration from defaults, an optional TOML file,
// and PIXIE_* environment variables, in increasing precedence. An
// empty path means the default location; a missing default file is
// fine, a missing explicit one is not.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		if defaultPath, err := DefaultFile(); err == nil {
			path = defaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("voice.api_base_url", "https://api.elevenlabs.io")

	v.SetDefault("generative.api_base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("generative.model", "gemini-2.0-flash")
	v.SetDefault("generative.max_output_tokens", 0)

	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("playback.player_command", "ffplay")
	v.SetDefault("playback.sample_rate", 16000)
	v.SetDefault("playback.channels", 1)

	v.SetDefault("clipboard.command", "")

	v.SetDefault("target.path", "")
	v.SetDefault("target.candidates", []string{})

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.iteration_limit", 30)
	v.SetDefault("rules.spoken_commands", true)

	v.SetDefault("session.chunk_size", 4096)
	v.SetDefault("session.stop_grace", "1s")
	v.SetDefault("session.dedupe_limit", 128)
	v.SetDefault("session.revision_threshold", 0.3)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// applyFallbacks clamps out-of-range numerics and fills the paths that
// depend on the home directory.
func (c *Config) applyFallbacks() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Playback.SampleRate <= 0 {
		c.Playback.SampleRate = 16000
	}
	if c.Playback.Channels <= 0 {
		c.Playback.Channels = 1
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}
	if c.Session.ChunkSize < 256 {
		c.Session.ChunkSize = 4096
	}
	if c.Session.StopGrace < 0 {
		c.Session.StopGrace = time.Second
	}
	if c.Session.DedupeLimit <= 0 {
		c.Session.DedupeLimit = 128
	}
	if c.Session.RevisionThreshold <= 0 || c.Session.RevisionThreshold >= 1 {
		c.Session.RevisionThreshold = 0.3
	}

	dir, err := Dir()
	if err != nil {
		return
	}
	if strings.TrimSpace(c.Rules.Path) == "" {
		c.Rules.Path = filepath.Join(dir, "substitutions.rules")
	}
	if strings.TrimSpace(c.Target.Path) == "" && len(c.Target.Candidates) == 0 {
		c.Target.Candidates = []string{filepath.Join(dir, "target.txt")}
	}
}

// Validate rejects values the daemon cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Voice.APIBaseURL == "" {
		return errors.New("voice.api_base_url cannot be empty")
	}
	if c.Generative.APIBaseURL == "" {
		return errors.New("generative.api_base_url cannot be empty")
	}
	if c.Generative.Model == "" {
		return errors.New("generative.model cannot be empty")
	}
	if addr := strings.TrimSpace(c.Metrics.Addr); addr != "" && !strings.Contains(addr, ":") {
		return fmt.Errorf("metrics.addr %q is not a listen address", addr)
	}
	return nil
}
