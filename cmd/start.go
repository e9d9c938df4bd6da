package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/EimisPacheco/pixie/internal/bootstrap"
	"github.com/EimisPacheco/pixie/internal/domain"
	"github.com/EimisPacheco/pixie/internal/usecase"
)

// statusPollInterval is how often the running session is checked for a
// remote close.
const statusPollInterval = 200 * time.Millisecond

func newStartCmd(opts *options) *cobra.Command {
	var (
		modeFlag    string
		targetFlag  string
		metricsFlag string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a voice session",
		Long:  "Starts a voice session and runs it until Ctrl-C or until the voice service ends the conversation. Dictation mode types what you say into the text target; agent mode lets the assistant talk back and edit the target through tools.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := parseMode(modeFlag)
			if err != nil {
				return err
			}

			services, err := bootstrap.Build(bootstrap.Options{
				ConfigPath: opts.configPath,
				TargetPath: targetFlag,
				Output:     cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			metricsAddr := metricsFlag
			if metricsAddr == "" {
				metricsAddr = services.Config.Metrics.Addr
			}
			if metricsAddr != "" {
				shutdown, err := serveMetrics(services, metricsAddr)
				if err != nil {
					return err
				}
				defer shutdown()
			}

			return runSession(cmd.Context(), services, mode)
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "dictation", `session mode: "dictation" or "agent"`)
	cmd.Flags().StringVar(&targetFlag, "target", "", "text target file (overrides config)")
	cmd.Flags().StringVar(&metricsFlag, "metrics-addr", "", "Prometheus listen address (overrides config)")

	return cmd
}

func runSession(ctx context.Context, services bootstrap.Services, mode domain.SessionMode) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.Controller.Start(sigCtx, mode); err != nil {
		return err
	}

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCtx.Done():
			// Restore default handling so a second Ctrl-C is not
			// swallowed while teardown runs.
			stop()
			_, err := services.Controller.Stop(context.Background())
			if err != nil && !isQuietStop(err) {
				return err
			}
			return nil
		case <-ticker.C:
			if !services.Controller.Status().Active {
				return nil
			}
		}
	}
}

// isQuietStop filters stop errors that the event sink already narrated
// and that do not merit a failing exit code.
func isQuietStop(err error) bool {
	return errors.Is(err, usecase.ErrNoActiveSession) ||
		errors.Is(err, usecase.ErrSessionEnded) ||
		errors.Is(err, usecase.ErrNoTranscript)
}

func serveMetrics(services bootstrap.Services, addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %q: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			services.Logger.Error("metrics server stopped", "error", err)
		}
	}()
	services.Logger.Info("metrics endpoint listening", "addr", listener.Addr().String())

	return func() { _ = server.Close() }, nil
}

func parseMode(raw string) (domain.SessionMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dictation":
		return domain.ModeDictation, nil
	case "agent":
		return domain.ModeAgent, nil
	default:
		return "", fmt.Errorf("invalid mode %q: use dictation or agent", raw)
	}
}
