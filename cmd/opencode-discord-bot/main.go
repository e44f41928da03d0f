// Package main is the entry point for the opencode-discord-bot CLI.
package main

import (
	"os"

	"github.com/lcances/opencode-discord-bot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
