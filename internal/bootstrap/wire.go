package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/EimisPacheco/pixie/internal/audio"
	"github.com/EimisPacheco/pixie/internal/clipboard"
	"github.com/EimisPacheco/pixie/internal/config"
	"github.com/EimisPacheco/pixie/internal/metrics"
	"github.com/EimisPacheco/pixie/internal/notify"
	"github.com/EimisPacheco/pixie/internal/ports"
	"github.com/EimisPacheco/pixie/internal/providers/elevenlabs"
	"github.com/EimisPacheco/pixie/internal/providers/gemini"
	"github.com/EimisPacheco/pixie/internal/rules"
	"github.com/EimisPacheco/pixie/internal/secrets"
	"github.com/EimisPacheco/pixie/internal/textfield"
	"github.com/EimisPacheco/pixie/internal/usecase"
)

// Options tunes how the runtime graph is assembled.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// TargetPath pins the text target to one file, overriding the
	// configured path and candidates.
	TargetPath string

	// Output receives operator-facing session messages; defaults to
	// stdout.
	Output io.Writer

	// LogOutput receives structured logs; defaults to stderr.
	LogOutput io.Writer

	// Registry receives the daemon's metrics; nil means a fresh
	// registry.
	Registry *prometheus.Registry
}

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Controller *usecase.SessionController

	// Secrets, Voice, and Generator are exposed for the settings
	// commands that probe credentials.
	Secrets   ports.SecretStore
	Voice     *elevenlabs.Provider
	Generator ports.TextGenerator
}

// Build wires all backend dependencies for the current runtime.
func Build(opts Options) (Services, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return Services{}, err
	}
	if opts.TargetPath != "" {
		cfg.Target.Path = opts.TargetPath
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	logOut := opts.LogOutput
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := newLogger(cfg.Log, logOut)

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := metrics.NewMetrics(registry)

	secretsDir, err := config.SecretsDir()
	if err != nil {
		return Services{}, err
	}
	store := secrets.NewChain(secrets.NewEnvStore(), secrets.NewFileStore(secretsDir))

	rulesEngine, err := rules.NewEngine(rules.Options{
		Path:           cfg.Rules.Path,
		LoopLimit:      cfg.Rules.IterationLimit,
		SpokenCommands: cfg.Rules.SpokenCommands,
	})
	if err != nil {
		return Services{}, err
	}

	voice := elevenlabs.NewProvider(elevenlabs.Config{APIBaseURL: cfg.Voice.APIBaseURL}, logger)

	// The generative key is optional; dictation works without it and
	// improve_prompt reports the missing key when invoked.
	generativeKey, err := store.Get(context.Background(), ports.SecretGenerativeAPIKey)
	if err != nil && !errors.Is(err, ports.ErrSecretNotFound) {
		return Services{}, err
	}
	generator := gemini.NewClient(gemini.Config{
		APIKey:          generativeKey,
		BaseURL:         cfg.Generative.APIBaseURL,
		Model:           cfg.Generative.Model,
		MaxOutputTokens: cfg.Generative.MaxOutputTokens,
	}, logger)

	var player ports.AudioPlayer = audio.NewFFPlayPlayer(cfg.Playback.PlayerCommand)
	if cfg.Playback.PlayerCommand == "none" {
		player = audio.NewDiscardPlayer()
	}

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Audio:     audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
			Player:    player,
			Provider:  voice,
			Secrets:   store,
			Target:    textfield.NewFileTarget(cfg.Target.Path, cfg.Target.Candidates),
			Generator: generator,
			Rules:     rulesEngine,
			Clipboard: clipboard.NewCommandClipboard(cfg.Clipboard.Command),
			Events:    notify.NewConsoleSink(out, logger),
			Metrics:   m,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Playback: ports.PlaybackConfig{
				SampleRate: cfg.Playback.SampleRate,
				Channels:   cfg.Playback.Channels,
			},
			ChunkSize:         cfg.Session.ChunkSize,
			StopGrace:         cfg.Session.StopGrace,
			RevisionThreshold: cfg.Session.RevisionThreshold,
			DedupeLimit:       cfg.Session.DedupeLimit,
		},
	)

	return Services{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Registry:   registry,
		Controller: controller,
		Secrets:    store,
		Voice:      voice,
		Generator:  generator,
	}, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
