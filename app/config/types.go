package config

import (
	"github.com/Kanet1105/linkdrive/app/digest"
	"github.com/Kanet1105/linkdrive/app/schedule"
)

// Config is the digest configuration loaded from a single YAML file.
type Config struct {
	Digest   Digest   `yaml:"digest"`
	SMTP     SMTP     `yaml:"smtp"`
	Sources  []Source `yaml:"sources"`
	Settings Settings `yaml:"settings"`

	// Derived during validation.
	Schedule schedule.Spec     `yaml:"-"`
	Keywords digest.KeywordSet `yaml:"-"`
}

// Digest describes what to send, to whom, and when.
type Digest struct {
	Recipient string   `yaml:"recipient"`
	Weekday   string   `yaml:"weekday"`
	Time      string   `yaml:"time"`
	Keywords  []string `yaml:"keywords"`
}

// SMTP holds the delivery account. The secret may be supplied out of band
// so it can stay out of the file.
type SMTP struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	From    string `yaml:"from"`
	Account string `yaml:"account"`
	Secret  string `yaml:"secret"`
}

// Source is one content feed to query.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Settings tune fetching and storage.
type Settings struct {
	Timeout          int  `yaml:"timeout"`    // seconds per HTTP request
	MaxItems         int  `yaml:"max_items"`  // per-source cap on matched items
	RateLimit        int  `yaml:"rate_limit"` // outbound requests per second
	ExtractSummaries bool `yaml:"extract_summaries"`
	RetentionWeeks   int  `yaml:"retention_weeks"` // delivery record retention
}
