// Package cli implements the command-line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/lcances/opencode-discord-bot/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"   ___                   ____          _      ____        _\n" +
		"  / _ \\ _ __   ___ _ __ / ___|___   __| | ___| __ )  ___ | |_\n" +
		" | | | | '_ \\ / _ \\ '_ \\ |   / _ \\ / _` |/ _ \\  _ \\ / _ \\| __|\n" +
		" | |_| | |_) |  __/ | | | |__| (_) | (_| |  __/ |_) | (_) | |_\n" +
		"  \\___/| .__/ \\___|_| |_|\\____\\___/ \\__,_|\\___|____/ \\___/ \\__|\n" +
		"       |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "opencode-discord-bot",
	Short: "Bridge Discord channels to OpenCode sessions",
	Long:  color.CyanString(logo) + "\nForwards Discord messages to a supervised opencode serve process and relays the replies back.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
