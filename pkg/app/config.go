// Package app wires capture, detection, overlay, narration and the
// dashboard into the facewatch application.
package app

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-facewatch/internal/config"
	"github.com/teslashibe/go-facewatch/pkg/detection"
	"github.com/teslashibe/go-facewatch/pkg/scheduler"
)

// Detector names accepted by Config.Detector.
const (
	DetectorYuNet   = "yunet"
	DetectorCascade = "cascade"
)

// SourceCamera selects the live camera. Any other Source value is an image path.
const SourceCamera = "camera"

// Config holds all configuration for the application.
// Flag parsing lives in cmd/facewatch; this struct is data only.
type Config struct {
	Debug       bool
	DebugFrames bool
	LogLevel    string

	// Port for the dashboard. Empty disables it.
	Port string

	// Source is "camera" or a path to a still image.
	Source string
	Device int

	Detector    string
	ModelPath   string // YuNet ONNX model
	CascadePath string // Haar cascade XML

	MinInterval time.Duration

	// ExportDir, when set, saves one annotated PNG of a still image after
	// its first detection.
	ExportDir string

	// Narration
	Narrate     bool
	Voice       string
	SpeechRate  float64
	Settle      time.Duration
	Headless    bool // Drop audio instead of playing it
	OpenAIKey   string
	EspeakVoice string
}

// DefaultConfig returns defaults for a local webcam session.
func DefaultConfig() Config {
	return Config{
		LogLevel:    "info",
		Port:        "8080",
		Source:      SourceCamera,
		Detector:    DetectorYuNet,
		ModelPath:   detection.DefaultConfig().ModelPath,
		CascadePath: detection.DefaultCascadeConfig().ModelPath,
		MinInterval: scheduler.DefaultConfig().MinInterval,
		Narrate:     true,
		SpeechRate:  1.0,
		Settle:      300 * time.Millisecond,
		EspeakVoice: "en-us",
	}
}

// LoadEnvConfig applies environment overrides. Call it before flag values
// are applied so flags win.
func (c *Config) LoadEnvConfig() {
	c.Port = config.String(config.EnvPort, c.Port)
	c.ModelPath = config.String(config.EnvModel, c.ModelPath)
	c.CascadePath = config.String(config.EnvCascade, c.CascadePath)
	c.Voice = config.String(config.EnvVoice, c.Voice)
	c.Narrate = config.Bool(config.EnvNarrate, c.Narrate)
	c.MinInterval = config.Duration(config.EnvInterval, c.MinInterval)
	c.OpenAIKey = config.String(config.EnvOpenAIKey, c.OpenAIKey)
}

// Validate checks option values.
func (c *Config) Validate() error {
	if c.Source == "" {
		return &ConfigError{Field: "Source", Message: "a source is required (camera or an image path)"}
	}
	if c.Detector != DetectorYuNet && c.Detector != DetectorCascade {
		return &ConfigError{Field: "Detector", Message: fmt.Sprintf("unknown detector %q (want yunet or cascade)", c.Detector)}
	}
	if c.MinInterval < 0 {
		return &ConfigError{Field: "MinInterval", Message: "detection interval must not be negative"}
	}
	if c.ExportDir != "" && c.Source == SourceCamera {
		return &ConfigError{Field: "ExportDir", Message: "export directory needs a still image source"}
	}
	if c.Device < 0 {
		return &ConfigError{Field: "Device", Message: "camera device index must not be negative"}
	}
	return nil
}

// ConfigError is a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
