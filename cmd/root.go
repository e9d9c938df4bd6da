// Package cmd assembles the pixie command line interface.
package cmd

import "github.com/spf13/cobra"

type options struct {
	configPath string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "pixie",
		Short:         "pixie: a voice assistant for your text files",
		Long:          "pixie captures your microphone, streams it to a conversational voice agent, and either dictates into a text file or lets the agent read and rewrite it through tool calls.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pixie/config.toml)")

	rootCmd.AddCommand(
		newStartCmd(opts),
		newSettingsCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}
