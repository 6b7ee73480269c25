// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "chatsync"
	DefaultPGSSLMode       = "disable"
	DefaultBackfillMax     = 50
	DefaultBackfillCron    = "*/15 * * * *"
	DefaultGatewayIntents  = 33281 // GUILDS | GUILD_MESSAGES | MESSAGE_CONTENT
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Discord  DiscordConfig  `toml:"discord"`
	Backfill BackfillConfig `toml:"backfill"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the health/readiness HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DiscordConfig holds the Discord bot credential and gateway toggles. The
// bot token is always sourced from DISCORD_BOT_TOKEN, never from TOML.
type DiscordConfig struct {
	BotToken        string `toml:"-"`
	GatewayEnabled  bool   `toml:"gateway_enabled"`
	GatewayIntents  int    `toml:"gateway_intents"`
}

// BackfillConfig holds the periodic backfill sweep schedule.
type BackfillConfig struct {
	MaxMessagesPerChannel int    `toml:"max_messages_per_channel"`
	CronSchedule          string `toml:"cron_schedule"`
}

// Load reads and parses the TOML config file at path, applies default
// values for missing fields, then layers the enumerated environment
// variable overrides from spec.md §6 on top (env wins over TOML for
// secrets, matching the teacher's other channel adapters).
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Discord: DiscordConfig{
			GatewayIntents: DefaultGatewayIntents,
		},
		Backfill: BackfillConfig{
			MaxMessagesPerChannel: DefaultBackfillMax,
			CronSchedule:          DefaultBackfillCron,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Discord.BotToken = os.Getenv("DISCORD_BOT_TOKEN")
	if raw, ok := os.LookupEnv("DISCORD_GATEWAY_ENABLED"); ok {
		cfg.Discord.GatewayEnabled = raw == "1" || raw == "true"
	}
	if raw, ok := os.LookupEnv("DISCORD_GATEWAY_INTENTS"); ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.Discord.GatewayIntents = parsed
		}
	}
}
