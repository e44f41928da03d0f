// Package config provides configuration types and loading for the bot.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration struct.
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	OpenCode OpenCodeConfig `json:"opencode"`
	API      APIConfig      `json:"api"`
	Timeline TimelineConfig `json:"timeline"`
}

// DiscordConfig configures the Discord side of the bridge. Environment
// overrides are derived from the nesting, e.g. OPENCODE_BOT_DISCORD_TOKEN.
type DiscordConfig struct {
	Token string `json:"token"`
	// AllowedChannels restricts commands and relay to channels with these
	// names. Empty means every channel is allowed.
	AllowedChannels []string `json:"allowedChannels" split_words:"true"`
	// Prefix is the command prefix, e.g. "!".
	Prefix string `json:"prefix"`
}

// OpenCodeConfig configures the supervised opencode serve process.
type OpenCodeConfig struct {
	Hostname         string        `json:"hostname"`
	Port             int           `json:"port"`
	WorkingDirectory string        `json:"workingDirectory" split_words:"true"`
	Username         string        `json:"username,omitempty"`
	Password         string        `json:"password,omitempty"`
	Model            string        `json:"model,omitempty"`
	Agent            string        `json:"agent,omitempty"`
	RequestTimeout   time.Duration `json:"requestTimeout" split_words:"true"`
	StartupRetries   int           `json:"startupRetries" split_words:"true"`
	StartupInterval  time.Duration `json:"startupInterval" split_words:"true"`
	StopTimeout      time.Duration `json:"stopTimeout" split_words:"true"`
}

// APIConfig configures the administrative HTTP API.
type APIConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	SecretKey string `json:"secretKey" split_words:"true"`
}

// TimelineConfig configures the local exchange log.
type TimelineConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Prefix: "!",
		},
		OpenCode: OpenCodeConfig{
			Hostname:         "127.0.0.1",
			Port:             4096,
			WorkingDirectory: ".",
			RequestTimeout:   120 * time.Second,
			StartupRetries:   30,
			StartupInterval:  time.Second,
			StopTimeout:      10 * time.Second,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Timeline: TimelineConfig{
			Enabled: true,
		},
	}
}

// Validate checks for configuration the bot cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.OpenCode.Port <= 0 || c.OpenCode.Port > 65535 {
		return fmt.Errorf("opencode.port %d is out of range", c.OpenCode.Port)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port %d is out of range", c.API.Port)
	}
	return nil
}

// ChannelAllowed reports whether a channel name passes the allow-list.
// An empty list allows every channel.
func (d *DiscordConfig) ChannelAllowed(name string) bool {
	if len(d.AllowedChannels) == 0 {
		return true
	}
	for _, allowed := range d.AllowedChannels {
		if allowed == name {
			return true
		}
	}
	return false
}
