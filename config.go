package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rotateio-server/internal/bot"
)

// Config is the resolved server configuration
type Config struct {
	Addr          string
	ClientDir     string
	PublicURL     string
	Tick          time.Duration
	MatchDuration time.Duration
	Bots          int
	Difficulty    bot.Difficulty
	AuthSecret    string
	AllocatorKey  string
	DBPath        string
	Log           LogConfig
	Metrics       MetricsConfig
}

// LogConfig selects the log outputs
type LogConfig struct {
	Level string
	File  string // JSON lines, appended
	Gelf  string // host:port of a GELF UDP input
}

var defaults = map[string]any{
	"addr":               ":8080",
	"client":             "../client",
	"public_url":         "http://localhost:8080",
	"tick":               60 * time.Millisecond,
	"match.duration":     5 * time.Minute,
	"match.bots":         0,
	"match.difficulty":   string(bot.Medium),
	"auth.secret":        "",
	"auth.allocator_key": "",
	"db.path":            "rotateio.db",
	"log.level":          "info",
	"log.file":           "",
	"log.gelf":           "",
	"metrics.exporter":   "none",
	"metrics.interval":   30 * time.Second,
}

// LoadConfig resolves configuration from, lowest first: defaults, the
// optional rotateio.{json,yaml} file, .env and ROTATEIO_* environment
// variables, then command-line flags.
func LoadConfig(args []string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	fs := pflag.NewFlagSet("rotateio-server", pflag.ContinueOnError)
	configFile := fs.String("config", "", "config file (default ./rotateio.{json,yaml})")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("client", "../client", "static client directory")
	fs.String("public_url", "http://localhost:8080", "public base URL used in join links")
	fs.Duration("tick", 60*time.Millisecond, "simulation tick period")
	fs.Duration("match.duration", 5*time.Minute, "round length, 0 for endless")
	fs.Int("match.bots", 0, "bots added to every match")
	fs.String("match.difficulty", string(bot.Medium), "bot difficulty: easy, medium, hard")
	fs.String("auth.secret", "", "JWT signing secret (generated and stored in the db when empty)")
	fs.String("auth.allocator_key", "", "bearer key required by POST /match/start (disabled when empty)")
	fs.String("db.path", "rotateio.db", "sqlite database file")
	fs.String("log.level", "info", "log level")
	fs.String("log.file", "", "append JSON logs to this file")
	fs.String("log.gelf", "", "send logs to this GELF UDP address")
	fs.String("metrics.exporter", "none", "metrics exporter: none, stdout")
	fs.Duration("metrics.interval", 30*time.Second, "metrics export period")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix("ROTATEIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("binding flags: %w", err)
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("rotateio")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		Addr:          v.GetString("addr"),
		ClientDir:     v.GetString("client"),
		PublicURL:     strings.TrimRight(v.GetString("public_url"), "/"),
		Tick:          v.GetDuration("tick"),
		MatchDuration: v.GetDuration("match.duration"),
		Bots:          v.GetInt("match.bots"),
		Difficulty:    bot.ParseDifficulty(v.GetString("match.difficulty")),
		AuthSecret:    v.GetString("auth.secret"),
		AllocatorKey:  v.GetString("auth.allocator_key"),
		DBPath:        v.GetString("db.path"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
			Gelf:  v.GetString("log.gelf"),
		},
		Metrics: MetricsConfig{
			Exporter: v.GetString("metrics.exporter"),
			Interval: v.GetDuration("metrics.interval"),
		},
	}
	if cfg.Tick <= 0 {
		return Config{}, fmt.Errorf("tick must be positive, got %s", cfg.Tick)
	}
	if cfg.Bots < 0 {
		return Config{}, fmt.Errorf("match.bots must not be negative, got %d", cfg.Bots)
	}
	switch cfg.Metrics.Exporter {
	case "none", "stdout":
	default:
		return Config{}, fmt.Errorf("metrics.exporter must be none or stdout, got %q", cfg.Metrics.Exporter)
	}
	return cfg, nil
}
