// Package config provides environment helpers for go-facewatch commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvPort      = "FACEWATCH_PORT"
	EnvModel     = "FACEWATCH_MODEL"
	EnvCascade   = "FACEWATCH_CASCADE"
	EnvVoice     = "FACEWATCH_VOICE"
	EnvNarrate   = "FACEWATCH_NARRATE"
	EnvInterval  = "FACEWATCH_DETECT_INTERVAL"
	EnvOpenAIKey = "OPENAI_API_KEY"
)

// String returns the env var value or the default if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Bool returns the env var parsed as a bool.
// Falls back to the default if unset or unparsable.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the env var parsed as a time.Duration (e.g. "67ms").
// Falls back to the default if unset or unparsable.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
