package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Digest configuration
	ConfigFile string `long:"config" env:"CONFIG_FILE" default:"./linkdrive.yml" description:"Path to the digest configuration file"`

	// Storage configuration
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/linkdrive.db" description:"Path to the SQLite database file"`
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address (host:port); when set, delivery records are kept in Redis instead of SQLite"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SMTPSecret   string `long:"smtp-secret" env:"SMTP_SECRET" description:"SMTP password; overrides the one in the configuration file"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"linkdrive/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" description:"Timezone for the delivery schedule (e.g. UTC, America/New_York); defaults to the system timezone"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		ConfigFile:   raw.ConfigFile,
		DBPath:       raw.DBPath,
		RedisAddr:    raw.RedisAddr,
		Port:         raw.Port,
		APIAccessKey: raw.APIAccessKey,
		SMTPSecret:   raw.SMTPSecret,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	// A misconfigured timezone would silently shift every delivery, so it
	// is fatal rather than a warning.
	if err := applyTimezone(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("failed to apply timezone: %w", err)
	}

	return cfg, nil
}

// applyTimezone points time.Local at the configured zone so the delivery
// schedule and maintenance tasks fire in it. An empty value keeps the
// system zone.
func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc

	return nil
}
