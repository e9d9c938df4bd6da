package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EimisPacheco/pixie/internal/bootstrap"
	"github.com/EimisPacheco/pixie/internal/config"
	"github.com/EimisPacheco/pixie/internal/ports"
	"github.com/EimisPacheco/pixie/internal/secrets"
	"github.com/EimisPacheco/pixie/internal/settings"
)

var secretNames = []string{
	ports.SecretVoiceAPIKey,
	ports.SecretAgentID,
	ports.SecretGenerativeAPIKey,
}

func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit configuration and credentials",
	}

	cmd.AddCommand(
		newSettingsSetCmd(opts),
		newSettingsGetCmd(opts),
		newSettingsShowCmd(opts),
		newSettingsSecretCmd(),
		newSettingsTestCmd(opts),
	)

	return cmd
}

func newSettingsSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store one configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo := settings.NewRepository(opts.configPath)
			if err := repo.Set(args[0], args[1]); err != nil {
				return err
			}
			path, err := repo.Path()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", args[0], args[1], path)
			return err
		},
	}
}

func newSettingsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one effective configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := settings.NewRepository(opts.configPath).Get(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
}

func newSettingsShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every effective configuration value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := settings.NewRepository(opts.configPath).Show()
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", entry.Key, entry.Value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSettingsSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored credentials",
		Long:  "Stores credentials under ~/.config/pixie/secrets with owner-only permissions. Valid names: " + strings.Join(secretNames, ", ") + ". Environment variables such as PIXIE_ELEVENLABS_API_KEY take precedence over stored values.",
	}

	cmd.AddCommand(newSecretSetCmd(), newSecretRmCmd())
	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store one credential (reads stdin when VALUE is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := validateSecretName(name); err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read secret value: %w", err)
				}
				value = strings.TrimSpace(string(raw))
			}
			if value == "" {
				return errors.New("secret value is empty")
			}

			store, err := secretFileStore()
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), name, value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", name)
			return err
		},
	}
}

func newSecretRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove one stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := validateSecretName(name); err != nil {
				return err
			}

			store, err := secretFileStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), name); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			return err
		},
	}
}

func newSettingsTestCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Probe the configured credentials against the live services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := bootstrap.Build(bootstrap.Options{
				ConfigPath: opts.configPath,
				Output:     io.Discard,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			failed := false

			voiceKey, err := services.Secrets.Get(ctx, ports.SecretVoiceAPIKey)
			switch {
			case errors.Is(err, ports.ErrSecretNotFound):
				failed = true
				fmt.Fprintf(out, "%s: not set\n", ports.SecretVoiceAPIKey)
			case err != nil:
				failed = true
				fmt.Fprintf(out, "%s: %v\n", ports.SecretVoiceAPIKey, err)
			default:
				if verifyErr := services.Voice.VerifyKey(ctx, voiceKey); verifyErr != nil {
					failed = true
					fmt.Fprintf(out, "%s: %v\n", ports.SecretVoiceAPIKey, verifyErr)
				} else {
					fmt.Fprintf(out, "%s: ok\n", ports.SecretVoiceAPIKey)
				}
			}

			if _, err := services.Secrets.Get(ctx, ports.SecretAgentID); errors.Is(err, ports.ErrSecretNotFound) {
				failed = true
				fmt.Fprintf(out, "%s: not set\n", ports.SecretAgentID)
			} else if err != nil {
				failed = true
				fmt.Fprintf(out, "%s: %v\n", ports.SecretAgentID, err)
			} else {
				fmt.Fprintf(out, "%s: set\n", ports.SecretAgentID)
			}

			if _, err := services.Secrets.Get(ctx, ports.SecretGenerativeAPIKey); errors.Is(err, ports.ErrSecretNotFound) {
				fmt.Fprintf(out, "%s: not set (improve_prompt needs it)\n", ports.SecretGenerativeAPIKey)
			} else if err != nil {
				failed = true
				fmt.Fprintf(out, "%s: %v\n", ports.SecretGenerativeAPIKey, err)
			} else if _, genErr := services.Generator.Generate(ctx, "", "Reply with the single word OK."); genErr != nil {
				failed = true
				fmt.Fprintf(out, "%s: %v\n", ports.SecretGenerativeAPIKey, genErr)
			} else {
				fmt.Fprintf(out, "%s: ok\n", ports.SecretGenerativeAPIKey)
			}

			if failed {
				return errors.New("one or more credential checks failed")
			}
			return nil
		},
	}
}

func validateSecretName(name string) error {
	for _, known := range secretNames {
		if name == known {
			return nil
		}
	}
	return fmt.Errorf("unknown secret %q: valid names are %s", name, strings.Join(secretNames, ", "))
}

func secretFileStore() (*secrets.FileStore, error) {
	dir, err := config.SecretsDir()
	if err != nil {
		return nil, err
	}
	return secrets.NewFileStore(dir), nil
}
