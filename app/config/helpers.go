package config

import (
	"time"
)

// GetTimeout returns the per-request timeout as time.Duration
func (s *Settings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second // default 30 seconds
	}
	return time.Duration(s.Timeout) * time.Second
}

// GetRetention returns the delivery record retention as time.Duration
func (s *Settings) GetRetention() time.Duration {
	if s.RetentionWeeks <= 0 {
		return 52 * 7 * 24 * time.Hour // default one year
	}
	return time.Duration(s.RetentionWeeks) * 7 * 24 * time.Hour
}
