// Package timeutil parses the duration strings used in the YAML config.
package timeutil

import (
	"strings"
	"time"
)

// ParseDuration parses value. An empty value yields zero.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}

// ParseDurationOrDefault parses duration and returns def on empty or invalid value.
func ParseDurationOrDefault(value string, def time.Duration) time.Duration {
	parsed, err := ParseDuration(value)
	if err != nil || strings.TrimSpace(value) == "" {
		return def
	}
	return parsed
}
