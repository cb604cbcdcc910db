package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kanet1105/linkdrive/app/digest"
	"github.com/Kanet1105/linkdrive/app/schedule"
)

// Load reads, defaults, and validates the digest configuration.
// secretOverride, when non-empty, replaces the SMTP secret from the file.
func Load(path string, secretOverride string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if secretOverride != "" {
		config.SMTP.Secret = secretOverride
	}

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	slog.Debug("Configuration loaded",
		"recipient", config.Digest.Recipient,
		"schedule", config.Schedule.String(),
		"keywords", config.Keywords.Len(),
		"sources", len(config.Sources))

	return &config, nil
}

func setDefaults(config *Config) {
	if config.SMTP.Port == "" {
		config.SMTP.Port = "587"
	}
	if config.SMTP.From == "" {
		config.SMTP.From = config.SMTP.Account
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30 // seconds
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 25
	}
	if config.Settings.RateLimit == 0 {
		config.Settings.RateLimit = 2
	}
	if config.Settings.RetentionWeeks == 0 {
		config.Settings.RetentionWeeks = 52
	}
}

func validate(config *Config) error {
	if config.Digest.Recipient == "" {
		return fmt.Errorf("digest recipient is required")
	}
	if _, err := mail.ParseAddress(config.Digest.Recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	spec, err := schedule.Parse(config.Digest.Weekday, config.Digest.Time)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	config.Schedule = spec

	keywords, err := digest.ParseKeywords(config.Digest.Keywords)
	if err != nil {
		return fmt.Errorf("invalid keywords: %w", err)
	}
	config.Keywords = keywords

	requiredSMTPFields := map[string]string{
		"smtp host":    config.SMTP.Host,
		"smtp account": config.SMTP.Account,
		"smtp secret":  config.SMTP.Secret,
	}

	for fieldName, fieldValue := range requiredSMTPFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if len(config.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	for i, source := range config.Sources {
		if source.URL == "" {
			return fmt.Errorf("source #%d has no URL", i+1)
		}
		parsed, err := url.Parse(source.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("source #%d has an invalid URL: %s", i+1, source.URL)
		}
	}

	nonNegativeFields := map[string]int{
		"timeout":         config.Settings.Timeout,
		"max items":       config.Settings.MaxItems,
		"rate limit":      config.Settings.RateLimit,
		"retention weeks": config.Settings.RetentionWeeks,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}
