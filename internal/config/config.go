/**
 * Configuration for the stream OCR worker
 *
 * Loads configuration from environment variables. Pipeline settings start from
 * processor.DefaultSettings and are overridden per variable.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/processor"
	"github.com/google/uuid"
)

// Config holds worker configuration
type Config struct {
	// Instance identity; keys every artifact in ConfigDir
	InstanceID string
	ConfigDir  string

	// Frame source (OpenCV device index, file or stream URL)
	CaptureSource   string
	CaptureInterval time.Duration

	// HTTP readout API
	HTTPAddr string

	// Redis configuration; empty disables the network sinks
	RedisURL     string
	RedisChannel string
	QueueEnabled bool
	QueueName    string

	// Logging
	LogLevel  string
	LogFormat string

	// Pipeline settings as read from the environment
	Pipeline processor.Settings

	// Raw enum names, checked by Validate
	binarizationName string
	imageModeName    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	defaults := processor.DefaultSettings()

	cfg := &Config{
		InstanceID:      getEnvOrDefault("INSTANCE_ID", uuid.New().String()),
		ConfigDir:       getEnvOrDefault("CONFIG_DIR", "/tmp/streamocr"),
		CaptureSource:   getEnvOrDefault("CAPTURE_SOURCE", ""),
		CaptureInterval: time.Duration(getEnvAsIntOrDefault("CAPTURE_INTERVAL_MS", 0)) * time.Millisecond,
		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":8097"),
		RedisURL:        getEnvOrDefault("REDIS_URL", ""),
		RedisChannel:    getEnvOrDefault("REDIS_CHANNEL", "streamocr:text"),
		QueueEnabled:    getEnvAsBoolOrDefault("QUEUE_ENABLED", false),
		QueueName:       getEnvOrDefault("QUEUE_NAME", "streamocr"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "text"),

		binarizationName: getEnvOrDefault("BINARIZATION_MODE", defaults.Binarization.String()),
		imageModeName:    getEnvOrDefault("IMAGE_SINK_MODE", defaults.ImageMode.String()),
	}

	cfg.Pipeline = processor.Settings{
		ModelPath:               getEnvOrDefault("OCR_MODEL_PATH", defaults.ModelPath),
		Language:                getEnvOrDefault("OCR_LANGUAGE", defaults.Language),
		UserPatterns:            getEnvOrDefault("OCR_USER_PATTERNS", defaults.UserPatterns),
		PageSegMode:             processor.PageSegMode(getEnvAsIntOrDefault("OCR_PAGE_SEG_MODE", int(defaults.PageSegMode))),
		CharWhitelist:           getEnvOrDefault("OCR_CHAR_WHITELIST", defaults.CharWhitelist),
		ConfThreshold:           getEnvAsIntOrDefault("OCR_CONF_THRESHOLD", defaults.ConfThreshold),
		BinarizationThreshold:   getEnvAsIntOrDefault("BINARIZATION_THRESHOLD", defaults.BinarizationThreshold),
		BinarizationBlockSize:   getEnvAsIntOrDefault("BINARIZATION_BLOCK_SIZE", defaults.BinarizationBlockSize),
		DilationIterations:      getEnvAsIntOrDefault("DILATION_ITERATIONS", defaults.DilationIterations),
		RescaleEnabled:          getEnvAsBoolOrDefault("RESCALE_ENABLED", defaults.RescaleEnabled),
		RescaleTargetHeight:     getEnvAsIntOrDefault("RESCALE_TARGET_HEIGHT", defaults.RescaleTargetHeight),
		PreviewBinarization:     getEnvAsBoolOrDefault("PREVIEW_BINARIZATION", defaults.PreviewBinarization),
		UpdateOnChange:          getEnvAsBoolOrDefault("UPDATE_ON_CHANGE", defaults.UpdateOnChange),
		UpdateOnChangeThreshold: getEnvAsIntOrDefault("UPDATE_ON_CHANGE_THRESHOLD", defaults.UpdateOnChangeThreshold),
		SmoothingEnabled:        getEnvAsBoolOrDefault("SMOOTHING_ENABLED", defaults.SmoothingEnabled),
		SmoothingWordLength:     getEnvAsIntOrDefault("SMOOTHING_WORD_LENGTH", defaults.SmoothingWordLength),
		SmoothingWindowSize:     getEnvAsIntOrDefault("SMOOTHING_WINDOW_SIZE", defaults.SmoothingWindowSize),
		TextSinkEnabled:         getEnvAsBoolOrDefault("TEXT_SINK_ENABLED", defaults.TextSinkEnabled),
		ImageSinkEnabled:        getEnvAsBoolOrDefault("IMAGE_SINK_ENABLED", defaults.ImageSinkEnabled),
		OutputTemplate:          getEnvOrDefault("OUTPUT_FORMAT_TEMPLATE", defaults.OutputTemplate),
		UpdateTimerMs:           getEnvAsIntOrDefault("UPDATE_TIMER_MS", defaults.UpdateTimerMs),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects values that cannot be interpreted and corrects the rest
func (c *Config) Validate() error {
	if c.InstanceID == "" {
		return fmt.Errorf("INSTANCE_ID must not be empty")
	}
	if strings.ContainsAny(c.InstanceID, `/\`) {
		return fmt.Errorf("INSTANCE_ID must not contain path separators, got %q", c.InstanceID)
	}

	if c.ConfigDir == "" {
		return fmt.Errorf("CONFIG_DIR is required")
	}

	if c.QueueEnabled && c.RedisURL == "" {
		return fmt.Errorf("QUEUE_ENABLED requires REDIS_URL")
	}

	if c.binarizationName != "" {
		mode, err := processor.ParseBinarizationMode(c.binarizationName)
		if err != nil {
			return fmt.Errorf("BINARIZATION_MODE: %w", err)
		}
		c.Pipeline.Binarization = mode
	}

	if c.imageModeName != "" {
		mode, err := processor.ParseImageMode(c.imageModeName)
		if err != nil {
			return fmt.Errorf("IMAGE_SINK_MODE: %w", err)
		}
		c.Pipeline.ImageMode = mode
	}

	if !c.Pipeline.PageSegMode.Valid() {
		return fmt.Errorf("OCR_PAGE_SEG_MODE must be between %d and %d, got %d",
			processor.PSMOSDOnly, processor.PSMRawLine, c.Pipeline.PageSegMode)
	}

	if _, err := processor.NewOutputFormatter(c.Pipeline.OutputTemplate); err != nil {
		return fmt.Errorf("OUTPUT_FORMAT_TEMPLATE: %w", err)
	}

	c.Pipeline.Normalize()
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
