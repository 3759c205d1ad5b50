package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/ykvlv/f1-schedule-bot/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	ChatIDDev int64  `envconfig:"CHAT_ID_DEV" required:"true"` // operator fallback chat

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath   string `envconfig:"DB_PATH" default:"./data/f1.db"`
	DBDSN    string `envconfig:"DB_DSN"`

	ICalURL     string        `envconfig:"ICAL_URL" default:"https://files-f1.motorsportcalendars.com/f1-calendar_p1_p2_p3_qualifying_sprint_gp.ics"`
	FeedTimeout time.Duration `envconfig:"FEED_TIMEOUT" default:"30s"`

	StandingsURL    string `envconfig:"STANDINGS_URL" default:"https://api.jolpi.ca/ergast/f1"`
	StandingsFormat string `envconfig:"STANDINGS_FORMAT" default:"image"` // image|text

	Timezone      string          `envconfig:"TIMEZONE" default:"Europe/Amsterdam"`
	CheckInterval time.Duration   `envconfig:"CHECK_INTERVAL" default:"60m"`
	NotifyOffsets []time.Duration `envconfig:"NOTIFY_OFFSETS" default:"60m,5m"`
	Lookahead     time.Duration   `envconfig:"LOOKAHEAD" default:"168h"`
	RaceWeekCron  string          `envconfig:"RACE_WEEK_CRON" default:"0 10 * * MON"`
	WeekendCron   string          `envconfig:"WEEKEND_CRON" default:"0 20 * * THU"`
	BroadcastRPS  int             `envconfig:"BROADCAST_RPS" default:"20"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json|console
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"` // healthz, empty disables
}

// Load reads an optional .env file and then environment variables into Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER: unknown driver %q", c.DBDriver)
	}

	if c.StandingsFormat != "image" && c.StandingsFormat != "text" {
		return fmt.Errorf("STANDINGS_FORMAT: want image or text, got %q", c.StandingsFormat)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT: want json or console, got %q", c.LogFormat)
	}
	if _, err := domain.ValidateTZ(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	if c.CheckInterval <= 0 {
		return errors.New("CHECK_INTERVAL must be positive")
	}
	if c.Lookahead <= 0 {
		return errors.New("LOOKAHEAD must be positive")
	}
	if c.FeedTimeout <= 0 {
		return errors.New("FEED_TIMEOUT must be positive")
	}
	if c.BroadcastRPS <= 0 {
		return errors.New("BROADCAST_RPS must be positive")
	}
	for _, o := range c.NotifyOffsets {
		if o < 0 {
			return fmt.Errorf("NOTIFY_OFFSETS: negative offset %s", o)
		}
	}

	for name, spec := range map[string]string{"RACE_WEEK_CRON": c.RaceWeekCron, "WEEKEND_CRON": c.WeekendCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Location returns the configured timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := domain.ValidateTZ(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
