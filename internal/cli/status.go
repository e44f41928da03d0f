package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/lcances/opencode-discord-bot/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ OpenCode Discord Bot Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show setup status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 OpenCode Discord Bot Status")
		fmt.Printf("Version: %s\n", version)

		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:   ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:   ✗ Not found (" + configPath + ")")
		}

		if cfg, err := config.Load(); err == nil {
			fmt.Println("Token:    ✓ Found")
			fmt.Printf("OpenCode: %s:%d (cwd %s)\n",
				cfg.OpenCode.Hostname, cfg.OpenCode.Port, cfg.OpenCode.WorkingDirectory)
			if cfg.API.Enabled {
				fmt.Printf("API:      ✓ Enabled on %s:%d\n", cfg.API.Host, cfg.API.Port)
			} else {
				fmt.Println("API:      ✗ Disabled")
			}
		} else {
			fmt.Printf("Token:    ✗ %v\n", err)
		}

		if path, err := exec.LookPath("opencode"); err == nil {
			fmt.Println("Binary:   ✓ opencode found (" + path + ")")
		} else {
			fmt.Println("Binary:   ✗ opencode not found in PATH")
		}
	},
}
