// Package config provides YAML configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/prospect-scanner/backend/internal/export"
)

// EnvPrefix namespaces environment overrides, e.g. PS_SERVER_PORT.
const EnvPrefix = "PS"

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Intake     IntakeConfig     `mapstructure:"intake" yaml:"intake"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Export     ExportConfig     `mapstructure:"export" yaml:"export"`
	Advanced   AdvancedConfig   `mapstructure:"advanced" yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                  int      `mapstructure:"port" yaml:"port"`
	BindAddress           string   `mapstructure:"bind_address" yaml:"bind_address"`
	EnableCORS            bool     `mapstructure:"enable_cors" yaml:"enable_cors"`
	AllowOrigins          []string `mapstructure:"allow_origins" yaml:"allow_origins"`
	ReadTimeoutSeconds    int      `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int      `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds    int      `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	ShutdownGraceSeconds  int      `mapstructure:"shutdown_grace_seconds" yaml:"shutdown_grace_seconds"`
	BodyLimit             string   `mapstructure:"body_limit" yaml:"body_limit"`
}

// StorageConfig selects where uploaded images are kept
type StorageConfig struct {
	Backend          string   `mapstructure:"backend" yaml:"backend"`
	DataDirectory    string   `mapstructure:"data_directory" yaml:"data_directory"`
	UploadsDirectory string   `mapstructure:"uploads_directory" yaml:"uploads_directory"`
	S3               S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config contains S3 or MinIO settings
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

// IntakeConfig bounds the workspace
type IntakeConfig struct {
	MaxFiles int `mapstructure:"max_files" yaml:"max_files"`
}

// ExtractionConfig selects and tunes the AI backend
type ExtractionConfig struct {
	Provider    string       `mapstructure:"provider" yaml:"provider"`
	ProfilePath string       `mapstructure:"profile_path" yaml:"profile_path"`
	Gemini      GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
	OpenAI      OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

// GeminiConfig contains Vertex AI settings
type GeminiConfig struct {
	ProjectID       string  `mapstructure:"project_id" yaml:"project_id"`
	Region          string  `mapstructure:"region" yaml:"region"`
	Model           string  `mapstructure:"model" yaml:"model"`
	Temperature     float32 `mapstructure:"temperature" yaml:"temperature"`
	CredentialsFile string  `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// OpenAIConfig contains settings for an OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	Model          string  `mapstructure:"model" yaml:"model"`
	Temperature    float32 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ExportConfig contains download defaults
type ExportConfig struct {
	Filename string `mapstructure:"filename" yaml:"filename"`
}

// AdvancedConfig contains logging and debugging options
type AdvancedConfig struct {
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat            string `mapstructure:"log_format" yaml:"log_format"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging" yaml:"enable_request_logging"`
	ExposeErrorDetails   bool   `mapstructure:"expose_error_details" yaml:"expose_error_details"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                  8089,
			BindAddress:           "0.0.0.0",
			EnableCORS:            true,
			AllowOrigins:          []string{"*"},
			ReadTimeoutSeconds:    30,
			WriteTimeoutSeconds:   300,
			IdleTimeoutSeconds:    120,
			RequestTimeoutSeconds: 0,
			ShutdownGraceSeconds:  15,
			BodyLimit:             "200M",
		},
		Storage: StorageConfig{
			Backend:          StorageLocal,
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			S3: S3Config{
				Region: "us-east-1",
				Bucket: "prospect-images",
				Prefix: "uploads/",
			},
		},
		Intake: IntakeConfig{
			MaxFiles: 20,
		},
		Extraction: ExtractionConfig{
			Provider: "gemini",
			Gemini: GeminiConfig{
				Region:      "us-central1",
				Model:       "gemini-2.5-flash",
				Temperature: 0.1,
			},
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				Model:          "gpt-4o-mini",
				Temperature:    0.1,
				TimeoutSeconds: 120,
			},
		},
		Export: ExportConfig{
			Filename: export.DefaultCSVFilename,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "json",
			EnableRequestLogging: true,
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.enable_cors", d.Server.EnableCORS)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)
	v.SetDefault("server.read_timeout_seconds", d.Server.ReadTimeoutSeconds)
	v.SetDefault("server.write_timeout_seconds", d.Server.WriteTimeoutSeconds)
	v.SetDefault("server.idle_timeout_seconds", d.Server.IdleTimeoutSeconds)
	v.SetDefault("server.request_timeout_seconds", d.Server.RequestTimeoutSeconds)
	v.SetDefault("server.shutdown_grace_seconds", d.Server.ShutdownGraceSeconds)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.data_directory", d.Storage.DataDirectory)
	v.SetDefault("storage.uploads_directory", d.Storage.UploadsDirectory)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.access_key_id", d.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", d.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.s3.prefix", d.Storage.S3.Prefix)

	v.SetDefault("intake.max_files", d.Intake.MaxFiles)

	v.SetDefault("extraction.provider", d.Extraction.Provider)
	v.SetDefault("extraction.profile_path", d.Extraction.ProfilePath)
	v.SetDefault("extraction.gemini.project_id", d.Extraction.Gemini.ProjectID)
	v.SetDefault("extraction.gemini.region", d.Extraction.Gemini.Region)
	v.SetDefault("extraction.gemini.model", d.Extraction.Gemini.Model)
	v.SetDefault("extraction.gemini.temperature", d.Extraction.Gemini.Temperature)
	v.SetDefault("extraction.gemini.credentials_file", d.Extraction.Gemini.CredentialsFile)
	v.SetDefault("extraction.openai.api_key", d.Extraction.OpenAI.APIKey)
	v.SetDefault("extraction.openai.base_url", d.Extraction.OpenAI.BaseURL)
	v.SetDefault("extraction.openai.model", d.Extraction.OpenAI.Model)
	v.SetDefault("extraction.openai.temperature", d.Extraction.OpenAI.Temperature)
	v.SetDefault("extraction.openai.timeout_seconds", d.Extraction.OpenAI.TimeoutSeconds)

	v.SetDefault("export.filename", d.Export.Filename)

	v.SetDefault("advanced.log_level", d.Advanced.LogLevel)
	v.SetDefault("advanced.log_format", d.Advanced.LogFormat)
	v.SetDefault("advanced.enable_request_logging", d.Advanced.EnableRequestLogging)
	v.SetDefault("advanced.expose_error_details", d.Advanced.ExposeErrorDetails)
}

// Load reads configuration from a YAML file, writing the defaults there first
// if the file does not exist. Environment variables override file values.
func Load(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := DefaultConfig().Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration as YAML
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# Prospect Scanner configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides honours the conventional variables when the
// prefixed ones are not set.
func (c *AppConfig) applyEnvironmentOverrides() {
	fallback := func(name, prefixed string, apply func(string)) {
		if os.Getenv(prefixed) != "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			apply(v)
		}
	}

	fallback("PORT", "PS_SERVER_PORT", func(v string) {
		var p int
		if _, err := fmt.Sscanf(v, "%d", &p); err == nil {
			c.Server.Port = p
		}
	})
	fallback("DATA_DIR", "PS_STORAGE_DATA_DIRECTORY", func(v string) {
		c.Storage.DataDirectory = v
		c.Storage.UploadsDirectory = filepath.Join(v, "uploads")
	})
	fallback("OPENAI_API_KEY", "PS_EXTRACTION_OPENAI_API_KEY", func(v string) {
		c.Extraction.OpenAI.APIKey = v
	})
	fallback("GOOGLE_CLOUD_PROJECT", "PS_EXTRACTION_GEMINI_PROJECT_ID", func(v string) {
		c.Extraction.Gemini.ProjectID = v
	})
	fallback("GOOGLE_APPLICATION_CREDENTIALS", "PS_EXTRACTION_GEMINI_CREDENTIALS_FILE", func(v string) {
		c.Extraction.Gemini.CredentialsFile = v
	})
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Extraction.ProfilePath)
}

// ServerAddr returns the server bind address
func (c *AppConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Seconds converts a seconds setting to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// EnsureDirectories creates the local storage directories
func (c *AppConfig) EnsureDirectories() error {
	if c.Storage.Backend != StorageLocal {
		return nil
	}
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.UploadsDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate reports the first setting that cannot work
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Intake.MaxFiles <= 0 {
		return fmt.Errorf("intake.max_files must be positive: %d", c.Intake.MaxFiles)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.UploadsDirectory == "" {
			return errors.New("storage.uploads_directory is required")
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Extraction.Provider {
	case "gemini":
		if c.Extraction.Gemini.ProjectID == "" {
			return errors.New("extraction.gemini.project_id is required (or GOOGLE_CLOUD_PROJECT)")
		}
	case "openai":
		if c.Extraction.OpenAI.APIKey == "" {
			return errors.New("extraction.openai.api_key is required (or OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown extraction.provider %q", c.Extraction.Provider)
	}

	if _, err := zapcore.ParseLevel(c.Advanced.LogLevel); err != nil {
		return fmt.Errorf("advanced.log_level: %w", err)
	}
	switch c.Advanced.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown advanced.log_format %q", c.Advanced.LogFormat)
	}
	return nil
}
