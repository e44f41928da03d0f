package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcances/opencode-discord-bot/internal/api"
	"github.com/lcances/opencode-discord-bot/internal/config"
	"github.com/lcances/opencode-discord-bot/internal/discord"
	"github.com/lcances/opencode-discord-bot/internal/opencode"
	"github.com/lcances/opencode-discord-bot/internal/registry"
	"github.com/lcances/opencode-discord-bot/internal/timeline"
)

var (
	serveConfigPath string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OpenCode server and the Discord bridge",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to config.json (default: ~/.opencode-discord-bot/config.json)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🤖 OpenCode Discord Bot")

	level := slog.LevelInfo
	if serveDebug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var cfg *config.Config
	var err error
	if serveConfigPath != "" {
		cfg, err = config.LoadFrom(serveConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	// Exchange log (optional).
	var timeSvc *timeline.Service
	if cfg.Timeline.Enabled {
		dbPath := cfg.Timeline.Path
		if dbPath == "" {
			home, err := config.HomeDir()
			if err != nil {
				fmt.Printf("Timeline error: %v\n", err)
				os.Exit(1)
			}
			if err := os.MkdirAll(home, 0o755); err != nil {
				fmt.Printf("Timeline error: %v\n", err)
				os.Exit(1)
			}
			dbPath = filepath.Join(home, "timeline.db")
		}
		timeSvc, err = timeline.NewService(dbPath)
		if err != nil {
			fmt.Printf("Timeline error: %v\n", err)
			os.Exit(1)
		}
	}

	backend := opencode.NewClient(opencode.ClientOptions{
		Hostname: cfg.OpenCode.Hostname,
		Port:     cfg.OpenCode.Port,
		Username: cfg.OpenCode.Username,
		Password: cfg.OpenCode.Password,
		Timeout:  cfg.OpenCode.RequestTimeout,
	})
	server := opencode.NewServer(opencode.ServerOptions{
		Hostname:         cfg.OpenCode.Hostname,
		Port:             cfg.OpenCode.Port,
		WorkingDirectory: cfg.OpenCode.WorkingDirectory,
		StartupRetries:   cfg.OpenCode.StartupRetries,
		StartupInterval:  cfg.OpenCode.StartupInterval,
		StopTimeout:      cfg.OpenCode.StopTimeout,
	}, backend)

	slog.Info("Starting OpenCode server")
	if err := server.Start(context.Background()); err != nil {
		// The bot cannot operate without its backend.
		fmt.Printf("OpenCode startup failed: %v\n", err)
		timeSvc.Close()
		os.Exit(1)
	}

	sessions := registry.New()
	bot, err := discord.New(discord.Options{
		Config:   cfg.Discord,
		Backend:  backend,
		Sessions: sessions,
		Timeline: timeSvc,
		Send: opencode.SendOptions{
			Model: cfg.OpenCode.Model,
			Agent: cfg.OpenCode.Agent,
		},
	})
	if err != nil {
		fmt.Printf("Discord error: %v\n", err)
		_ = server.Stop()
		timeSvc.Close()
		os.Exit(1)
	}

	slog.Info("Starting Discord bot")
	if err := bot.Start(); err != nil {
		fmt.Printf("Discord error: %v\n", err)
		_ = server.Stop()
		timeSvc.Close()
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API, bot)
		apiServer.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	fmt.Println("Bridge running. Press Ctrl+C to stop.")
	<-sigChan

	fmt.Println("Shutting down...")
	// Ordered shutdown: stop external triggers, delete sessions while the
	// backend is still up, close the gateway, then stop the backend.
	// Cleanup failures are logged, never fatal.
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("API shutdown failed", "error", err)
		}
		cancel()
	}
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bot.CleanupSessions(cleanupCtx)
	cancel()
	if err := bot.Close(); err != nil {
		slog.Warn("Discord close failed", "error", err)
	}
	if err := server.Stop(); err != nil {
		slog.Warn("OpenCode stop failed", "error", err)
	}
	if err := timeSvc.Close(); err != nil {
		slog.Warn("Timeline close failed", "error", err)
	}
	slog.Info("Goodbye")
}
