package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Surface constants
	SurfaceBrowser = "browser"
	SurfaceStatic  = "static"

	// Store backends
	StoreFile     = "file"
	StorePostgres = "postgres"
	ObjectsLocal  = "local"
	ObjectsS3     = "s3"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultPageLoadTimeout = 60 * time.Second
	DefaultLoadWait        = 3 * time.Second
	DefaultGeminiModel     = "gemini-2.5-flash"
	DefaultBatchSize       = 5
	DefaultBatchDelay      = 200 * time.Millisecond
	DefaultCacheSize       = 256

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "GRANT_FILL"
)

// ErrVersionRequested is returned by Load when --version is on the command line
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the grant filler
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Storage
	DataDir     string
	GrantStore  string // "file" or "postgres"
	DatabaseURL string
	CacheSize   int
	ObjectStore string // "local" or "s3"
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Matching
	FieldThreshold  float64
	OptionThreshold float64
	PDFThreshold    float64

	// Web filling
	Surface         string // "browser" or "static"
	MaxPages        int
	PageLoadTimeout time.Duration
	LoadWait        time.Duration
	SettleDelay     time.Duration
	FieldTimeout    time.Duration
	WritePause      time.Duration
	Headless        bool
	KeepBrowserOpen bool
	Highlight       bool

	// Language model
	GeminiAPIKey string
	GeminiModel  string
	BatchSize    int
	BatchDelay   time.Duration

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum source document size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio,
		Host:            DefaultHost,
		Port:            DefaultPort,
		DataDir:         filepath.Join(currentDir, "data"),
		GrantStore:      StoreFile,
		CacheSize:       DefaultCacheSize,
		ObjectStore:     ObjectsLocal,
		S3Region:        "us-east-1",
		FieldThreshold:  match.DefaultFieldThreshold,
		OptionThreshold: match.DefaultOptionThreshold,
		PDFThreshold:    match.DefaultPDFThreshold,
		Surface:         SurfaceBrowser,
		MaxPages:        webfill.DefaultMaxPages,
		PageLoadTimeout: DefaultPageLoadTimeout,
		LoadWait:        DefaultLoadWait,
		SettleDelay:     webfill.DefaultSettleDelay,
		FieldTimeout:    webfill.DefaultFieldTimeout,
		WritePause:      webfill.DefaultWritePause,
		Headless:        true,
		GeminiModel:     DefaultGeminiModel,
		BatchSize:       DefaultBatchSize,
		BatchDelay:      DefaultBatchDelay,
		Version:         "1.0.0",
		ServerName:      "mcp-grant-filler",
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		MaxFileSize:     DefaultMaxFileSize,
	}
}

// LoadFromFlags parses the process command line and environment
func LoadFromFlags() (*Config, error) {
	return Load(os.Args[0], os.Args[1:])
}

// Load builds a configuration from args, GRANT_FILL_* environment variables
// and defaults, in that order of precedence
func Load(program string, args []string) (*Config, error) {
	cfg := DefaultConfig()

	if checkVersionFlag(args) {
		return nil, ErrVersionRequested
	}

	v := viper.New()
	setupViperEnvironment(v, cfg)
	flags := pflag.NewFlagSet(program, pflag.ContinueOnError)
	defineCommandLineFlags(flags, cfg)
	flags.Usage = func() { printUsage(os.Stderr, program, flags) }
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	populateConfigFromViper(v, cfg)

	if cfg.DataDir != "" {
		if expandedPath, err := filepath.Abs(cfg.DataDir); err == nil {
			cfg.DataDir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures environment lookup and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("data-dir", cfg.DataDir)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("log-format", cfg.LogFormat)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(f *pflag.FlagSet, cfg *Config) {
	f.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	f.String("host", cfg.Host, "Server host address (server mode only)")
	f.Int("port", cfg.Port, "Server port (server mode only)")
	f.String("data-dir", cfg.DataDir, "Directory for grant records and local objects")
	f.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.String("log-format", cfg.LogFormat, "Log format (console, json)")
	f.Int64("max-file-size", cfg.MaxFileSize, "Maximum source document size in bytes")

	f.String("grant-store", cfg.GrantStore, "Grant record store: 'file' or 'postgres'")
	f.String("database-url", cfg.DatabaseURL, "Postgres connection string (postgres store only)")
	f.Int("cache-size", cfg.CacheSize, "Number of grant records kept in the read cache")
	f.String("object-store", cfg.ObjectStore, "Document store: 'local' or 's3'")
	f.String("s3-endpoint", cfg.S3Endpoint, "S3 endpoint host:port")
	f.String("s3-region", cfg.S3Region, "S3 region")
	f.String("s3-access-key", cfg.S3AccessKey, "S3 access key")
	f.String("s3-secret-key", cfg.S3SecretKey, "S3 secret key")
	f.String("s3-bucket", cfg.S3Bucket, "S3 bucket")
	f.Bool("s3-use-ssl", cfg.S3UseSSL, "Use TLS for S3")

	f.Float64("field-threshold", cfg.FieldThreshold, "Minimum score for a question to claim a web field")
	f.Float64("option-threshold", cfg.OptionThreshold, "Minimum score for an answer to pick an option")
	f.Float64("pdf-threshold", cfg.PDFThreshold, "Minimum score for a question to claim a PDF field")

	f.String("surface", cfg.Surface, "Web surface: 'browser' (playwright) or 'static' (HTML only)")
	f.Int("max-pages", cfg.MaxPages, "Maximum pages visited per web fill")
	f.Duration("page-load-timeout", cfg.PageLoadTimeout, "Timeout for loading a page")
	f.Duration("load-wait", cfg.LoadWait, "Fixed wait after a page loads")
	f.Duration("settle-delay", cfg.SettleDelay, "Wait after activating a next control")
	f.Duration("field-timeout", cfg.FieldTimeout, "Timeout for one field write")
	f.Duration("write-pause", cfg.WritePause, "Pause after every successful write")
	f.Bool("headless", cfg.Headless, "Run the browser headless")
	f.Bool("keep-browser-open", cfg.KeepBrowserOpen, "Leave the browser page open after a fill")
	f.Bool("highlight", cfg.Highlight, "Outline filled controls in the browser")

	f.String("gemini-api-key", cfg.GeminiAPIKey, "Gemini API key")
	f.String("gemini-model", cfg.GeminiModel, "Gemini model")
	f.Int("batch-size", cfg.BatchSize, "Language model requests per batch")
	f.Duration("batch-delay", cfg.BatchDelay, "Delay between language model batches")
}

func printUsage(w io.Writer, program string, f *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage of %s:\n", program)
	fmt.Fprintf(w, "\nMCP Grant Filler - A Model Context Protocol server that fills grant applications\n\n")
	fmt.Fprintf(w, "Options:\n")
	f.SetOutput(w)
	f.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  %s                                        # stdio mode, file store under ./data\n", program)
	fmt.Fprintf(w, "  %s --mode=server --port=8081              # SSE server with /metrics\n", program)
	fmt.Fprintf(w, "  %s --surface=static --data-dir=/var/grants\n", program)
	fmt.Fprintf(w, "\nEvery option can also be set as %s_<OPTION>, e.g. %s_GEMINI_API_KEY.\n", EnvPrefix, EnvPrefix)
}

// checkVersionFlag reports whether a version flag was requested
func checkVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.DataDir = v.GetString("data-dir")
	cfg.LogLevel = v.GetString("log-level")
	cfg.LogFormat = v.GetString("log-format")
	cfg.MaxFileSize = v.GetInt64("max-file-size")

	cfg.GrantStore = v.GetString("grant-store")
	cfg.DatabaseURL = v.GetString("database-url")
	cfg.CacheSize = v.GetInt("cache-size")
	cfg.ObjectStore = v.GetString("object-store")
	cfg.S3Endpoint = v.GetString("s3-endpoint")
	cfg.S3Region = v.GetString("s3-region")
	cfg.S3AccessKey = v.GetString("s3-access-key")
	cfg.S3SecretKey = v.GetString("s3-secret-key")
	cfg.S3Bucket = v.GetString("s3-bucket")
	cfg.S3UseSSL = v.GetBool("s3-use-ssl")

	cfg.FieldThreshold = v.GetFloat64("field-threshold")
	cfg.OptionThreshold = v.GetFloat64("option-threshold")
	cfg.PDFThreshold = v.GetFloat64("pdf-threshold")

	cfg.Surface = v.GetString("surface")
	cfg.MaxPages = v.GetInt("max-pages")
	cfg.PageLoadTimeout = v.GetDuration("page-load-timeout")
	cfg.LoadWait = v.GetDuration("load-wait")
	cfg.SettleDelay = v.GetDuration("settle-delay")
	cfg.FieldTimeout = v.GetDuration("field-timeout")
	cfg.WritePause = v.GetDuration("write-pause")
	cfg.Headless = v.GetBool("headless")
	cfg.KeepBrowserOpen = v.GetBool("keep-browser-open")
	cfg.Highlight = v.GetBool("highlight")

	cfg.GeminiAPIKey = v.GetString("gemini-api-key")
	cfg.GeminiModel = v.GetString("gemini-model")
	cfg.BatchSize = v.GetInt("batch-size")
	cfg.BatchDelay = v.GetDuration("batch-delay")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.DataDir == "" {
		return errors.New("data directory cannot be empty")
	}
	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DataDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create data directory %s: %w", c.DataDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access data directory %s: %w", c.DataDir, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.LogFormat)
	}

	switch c.GrantStore {
	case StoreFile:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("database url is required for the postgres grant store")
		}
	default:
		return fmt.Errorf("invalid grant store: %s (must be file or postgres)", c.GrantStore)
	}

	switch c.ObjectStore {
	case ObjectsLocal:
	case ObjectsS3:
		if c.S3Endpoint == "" || c.S3Bucket == "" {
			return errors.New("s3 endpoint and bucket are required for the s3 object store")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return errors.New("s3 access key and secret key are required for the s3 object store")
		}
	default:
		return fmt.Errorf("invalid object store: %s (must be local or s3)", c.ObjectStore)
	}

	for name, t := range map[string]float64{
		"field threshold":  c.FieldThreshold,
		"option threshold": c.OptionThreshold,
		"pdf threshold":    c.PDFThreshold,
	} {
		if t <= 0 || t > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, t)
		}
	}

	if c.Surface != SurfaceBrowser && c.Surface != SurfaceStatic {
		return fmt.Errorf("invalid surface: %s (must be browser or static)", c.Surface)
	}
	if c.MaxPages < 1 {
		return errors.New("max pages must be at least 1")
	}
	if c.PageLoadTimeout <= 0 || c.FieldTimeout <= 0 {
		return errors.New("page load and field timeouts must be positive")
	}
	if c.LoadWait < 0 || c.SettleDelay < 0 || c.WritePause < 0 {
		return errors.New("waits and pauses cannot be negative")
	}

	if c.BatchSize < 1 {
		return errors.New("batch size must be at least 1")
	}
	if c.BatchDelay < 0 {
		return errors.New("batch delay cannot be negative")
	}
	return nil
}

// Thresholds returns the matching thresholds
func (c *Config) Thresholds() match.Thresholds {
	return match.Thresholds{Field: c.FieldThreshold, Option: c.OptionThreshold, PDF: c.PDFThreshold}
}

// Engine returns the web fill engine configuration
func (c *Config) Engine() webfill.Config {
	return webfill.Config{
		MaxPages:     c.MaxPages,
		FieldTimeout: c.FieldTimeout,
		WritePause:   c.WritePause,
		SettleDelay:  c.SettleDelay,
		Thresholds:   c.Thresholds(),

		AdvanceWhenComplete: c.KeepBrowserOpen && c.Surface == SurfaceBrowser,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// HasModel reports whether a language model is configured
func (c *Config) HasModel() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// String returns a string representation of the configuration. Secrets are
// not printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DataDir: %s, GrantStore: %s, ObjectStore: %s, "+
		"Surface: %s, MaxPages: %d, Model: %s, LogLevel: %s}",
		c.Mode, c.Host, c.Port, c.DataDir, c.GrantStore, c.ObjectStore,
		c.Surface, c.MaxPages, c.GeminiModel, c.LogLevel)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
