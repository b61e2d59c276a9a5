package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:"SERVER" yaml:"server"`

	// Storage configuration
	Storage StorageConfig `env:"STORAGE" yaml:"storage"`

	// Site configuration
	Site SiteConfig `env:"SITE" yaml:"site"`

	// Marshaling configuration
	Marshal MarshalConfig `env:"MARSHAL" yaml:"marshal"`

	// Logging configuration
	Logging LoggingConfig `env:"LOGGING" yaml:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `env:"METRICS" yaml:"metrics"`

	// Configuration file path
	ConfigFile string `env:"CONFIG_FILE" yaml:"-"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	// gRPC server address
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051" yaml:"grpc_addr"`

	// HTTP server address
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" yaml:"http_addr"`

	// Enable TLS
	TLSEnabled bool `env:"TLS_ENABLED" envDefault:"false" yaml:"tls_enabled"`

	// TLS certificate file
	TLSCertFile string `env:"TLS_CERT_FILE" yaml:"tls_cert_file"`

	// TLS key file
	TLSKeyFile string `env:"TLS_KEY_FILE" yaml:"tls_key_file"`

	// Require bearer tokens on the API
	AuthEnabled bool `env:"AUTH_ENABLED" envDefault:"true" yaml:"auth_enabled"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	// Data directory path
	DataDir string `env:"DATA_DIR" envDefault:"./data" yaml:"data_dir"`

	// Sync content writes to disk before acknowledging them
	SyncWrites bool `env:"SYNC_WRITES" envDefault:"true" yaml:"sync_writes"`
}

// SiteConfig holds content-site configuration
type SiteConfig struct {
	// Site identifier, used as the prefix of generated schema names
	ID string `env:"SITE_ID" envDefault:"site" yaml:"id"`

	// Model resource roots in "package=dir" form, consulted for package:path model files
	ModelRoots []string `env:"MODEL_ROOTS" envSeparator:"," yaml:"model_roots"`

	// Type created by WebDAV MKCOL requests
	FolderType string `env:"FOLDER_TYPE" envDefault:"folder" yaml:"folder_type"`
}

// MarshalConfig holds RFC822 marshaling configuration
type MarshalConfig struct {
	// Default charset for marshaled records
	DefaultCharset string `env:"DEFAULT_CHARSET" envDefault:"utf-8" yaml:"default_charset"`

	// Directory for spooled read streams (empty for the OS temp dir)
	SpoolDir string `env:"SPOOL_DIR" yaml:"spool_dir"`

	// Records larger than this are spooled to a temporary file
	SpoolThreshold int64 `env:"SPOOL_THRESHOLD" envDefault:"1048576" yaml:"spool_threshold"`

	// Chunk size used when streaming records to clients
	ChunkSize int `env:"CHUNK_SIZE" envDefault:"65536" yaml:"chunk_size"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info" yaml:"level"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json" yaml:"format"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:"" yaml:"output"`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true" yaml:"rotation"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100" yaml:"max_size"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7" yaml:"max_backups"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30" yaml:"max_age"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true" yaml:"enabled"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:":9090" yaml:"addr"`

	// Metrics path
	Path string `env:"METRICS_PATH" envDefault:"/metrics" yaml:"path"`

	// Enable OpenTelemetry tracing
	TracingEnabled bool `env:"TRACING_ENABLED" envDefault:"false" yaml:"tracing_enabled"`

	// OpenTelemetry endpoint
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"" yaml:"tracing_endpoint"`

	// OTLP exporter: "grpc" or "http"
	TracingExporter string `env:"TRACING_EXPORTER" envDefault:"grpc" yaml:"tracing_exporter"`
}

// Load loads configuration from multiple sources:
// 1. Default values
// 2. Environment variables
// 3. Configuration file (YAML)
// 4. Command line flags
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with an explicit argument list
func LoadArgs(args []string) (*Config, error) {
	cfg := &Config{}

	// Load from environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	fs := flag.NewFlagSet("dexterityd", flag.ContinueOnError)
	configFile := fs.String("config", cfg.ConfigFile, "Path to configuration file")
	grpcAddr := fs.String("grpc-addr", "", "gRPC server address")
	httpAddr := fs.String("http-addr", "", "HTTP server address")
	dataDir := fs.String("data-dir", "", "Data directory path")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, text)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// The file sits between the environment and flags
	cfg.ConfigFile = *configFile
	if cfg.ConfigFile != "" {
		if err := loadFromFile(cfg, cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	overrideString(&cfg.Server.GRPCAddr, *grpcAddr)
	overrideString(&cfg.Server.HTTPAddr, *httpAddr)
	overrideString(&cfg.Storage.DataDir, *dataDir)
	overrideString(&cfg.Logging.Level, *logLevel)
	overrideString(&cfg.Logging.Format, *logFormat)

	// Normalize paths
	cfg.Storage.DataDir = filepath.Clean(cfg.Storage.DataDir)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func overrideString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("grpc server address cannot be empty")
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("http server address cannot be empty")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Site.ID == "" {
		return fmt.Errorf("site id cannot be empty")
	}

	for _, root := range c.Site.ModelRoots {
		if _, _, err := ParseModelRoot(root); err != nil {
			return err
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Marshal.SpoolThreshold < 0 {
		return fmt.Errorf("spool threshold cannot be negative")
	}
	if c.Marshal.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}

	validExporters := map[string]bool{
		"grpc": true,
		"http": true,
	}
	if c.Metrics.TracingEnabled && !validExporters[strings.ToLower(c.Metrics.TracingExporter)] {
		return fmt.Errorf("invalid tracing exporter: %s", c.Metrics.TracingExporter)
	}

	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" {
			return fmt.Errorf("tls cert file is required when tls is enabled")
		}
		if c.Server.TLSKeyFile == "" {
			return fmt.Errorf("tls key file is required when tls is enabled")
		}
	}

	return nil
}

// ParseModelRoot splits a "package=dir" model root
func ParseModelRoot(root string) (pkg, dir string, err error) {
	pkg, dir, ok := strings.Cut(root, "=")
	if !ok || pkg == "" || dir == "" {
		return "", "", fmt.Errorf("invalid model root %q: expected package=dir", root)
	}
	return pkg, dir, nil
}

// loadFromFile overlays a YAML configuration file onto cfg
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Default returns a configuration populated from struct defaults only
func Default() *Config {
	cfg := &Config{}
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// ShutdownTimeout bounds graceful shutdown of the servers
const ShutdownTimeout = 10 * time.Second
