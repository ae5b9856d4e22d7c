// Package config provides YAML-plus-environment configuration management.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure.
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Generation pipeline configuration
	Generation GenerationConfig `yaml:"generation"`

	// Advanced options
	Advanced AdvancedConfig `yaml:"advanced"`

	// Secrets come from the environment only, never from the file.
	OrderingAPIKey string `yaml:"-"`
	CaptionAPIKey  string `yaml:"-"`
	DatabaseURL    string `yaml:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// StorageConfig contains image storage settings. When S3Bucket is set,
// uploads go to S3 instead of the local uploads directory.
type StorageConfig struct {
	UploadsDirectory string `yaml:"uploadsDirectory"`
	S3Bucket         string `yaml:"s3Bucket"`
	S3Region         string `yaml:"s3Region"`
}

// GenerationConfig contains slideshow pipeline tuning.
type GenerationConfig struct {
	OrderingModel      string `yaml:"orderingModel"`
	OrderingBaseURL    string `yaml:"orderingBaseUrl"`
	CaptionModel       string `yaml:"captionModel"`
	FramesPerSlideshow int    `yaml:"framesPerSlideshow"`
	CaptionConcurrency int    `yaml:"captionConcurrency"`
	CaptionMaxRetries  int    `yaml:"captionMaxRetries"`
	SubmitDelayMs      int    `yaml:"submitDelayMs"`
	InlineImages       bool   `yaml:"inlineImages"`
}

// AdvancedConfig contains logging/tuning options.
type AdvancedConfig struct {
	LogLevel             string `yaml:"logLevel"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 300,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			UploadsDirectory: "./data/uploads",
			S3Region:         "us-east-1",
		},
		Generation: GenerationConfig{
			OrderingModel:      "gpt-4o",
			CaptionModel:       "doubao-1.5-vision-pro",
			FramesPerSlideshow: 4,
			CaptionConcurrency: 3,
			CaptionMaxRetries:  3,
			SubmitDelayMs:      200,
			InlineImages:       false,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment overrides. Required secrets are validated afterwards.
func LoadConfig(configPath string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	c.OrderingAPIKey = os.Getenv("ORDERING_API_KEY")
	c.CaptionAPIKey = os.Getenv("CAPTION_API_KEY")
	c.DatabaseURL = os.Getenv("DATABASE_URL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		c.Storage.UploadsDirectory = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.S3Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.S3Region = v
	}
	if v := os.Getenv("ORDERING_MODEL"); v != "" {
		c.Generation.OrderingModel = v
	}
	if v := os.Getenv("ORDERING_BASE_URL"); v != "" {
		c.Generation.OrderingBaseURL = v
	}
	if v := os.Getenv("CAPTION_MODEL"); v != "" {
		c.Generation.CaptionModel = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Advanced.LogLevel = v
	}
}

// Validate checks the required secrets and value ranges.
func (c *AppConfig) Validate() error {
	if c.OrderingAPIKey == "" {
		return fmt.Errorf("ORDERING_API_KEY is required")
	}
	if c.CaptionAPIKey == "" {
		return fmt.Errorf("CAPTION_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Generation.FramesPerSlideshow < 1 {
		return fmt.Errorf("framesPerSlideshow must be at least 1")
	}
	if c.Generation.CaptionConcurrency < 1 {
		return fmt.Errorf("captionConcurrency must be at least 1")
	}
	return nil
}

// EnsureDirectories creates all data directories referenced by the config.
func (c *AppConfig) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.UploadsDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return nil
}

// GetServerAddr returns the host:port the server listens on.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetUploadDir returns the uploads directory.
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// UseS3 reports whether uploads go to S3.
func (c *AppConfig) UseS3() bool {
	return c.Storage.S3Bucket != ""
}
