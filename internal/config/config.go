package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/mosdac"
	"github.com/italolelis/mosdac_downloader/internal/organizer"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. MOSDAC_USERNAME.
const Prefix = "MOSDAC"

// DefaultFile is picked up from the working directory when no path is given.
const DefaultFile = "config.json"

// Config struct for environment variables and the optional config file.
type Config struct {
	Username string
	Password string

	Search struct {
		DatasetID   string `split_words:"true"`
		StartTime   string `split_words:"true"`
		EndTime     string `split_words:"true"`
		Count       string
		BoundingBox string `split_words:"true"`
		GID         string
		StartIndex  int    `split_words:"true" default:"1"`
	}

	Download struct {
		Path              string        `default:"./MOSDAC Data Download"`
		OrganizeByDate    bool          `split_words:"true"`
		SkipUserInput     bool          `split_words:"true"`
		GenerateErrorLogs bool          `split_words:"true"`
		ErrorLogsDir      string        `split_words:"true" default:"./error_logs"`
		StallTimeout      time.Duration `split_words:"true" default:"5s"`
	}

	API struct {
		BaseURL        string        `split_words:"true" default:"https://mosdac.gov.in/download_api"`
		SearchURL      string        `split_words:"true" default:"https://mosdac.gov.in/apios/datasets.json"`
		RequestTimeout time.Duration `split_words:"true" default:"60s"`
		LogoutTimeout  time.Duration `split_words:"true" default:"5s"`
	}

	LogLevel          string `split_words:"true" default:"INFO"`
	LogFormat         string `split_words:"true" default:"text"`
	ErrorLogLevel     string `split_words:"true" default:"ERROR"`
	DiscordWebhookURL string `split_words:"true"`
	DBPath            string `split_words:"true" default:"mosdac_downloads.db"`

	Web struct {
		// BindAddress enables the status server when set.
		BindAddress     string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled      bool
		OTLPEndpoint string `split_words:"true"`
		OTLPInsecure bool   `split_words:"true"`
	}
}

// FieldError describes one invalid or missing setting.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

// ConfigError collects every problem found while loading, so they can be
// fixed in one go.
type ConfigError struct {
	Fields []FieldError
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Fields))

	for _, f := range e.Fields {
		if f.Value != "" {
			parts = append(parts, fmt.Sprintf("%s has invalid value %s: %s", f.Field, f.Value, f.Reason))

			continue
		}

		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}

	return "configuration error: " + strings.Join(parts, "; ")
}

func (e *ConfigError) add(field, value, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Value: value, Reason: reason})
}

func (e *ConfigError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}

	return e
}

// LoadConfig loads the configuration and checks that everything a download
// run needs is present.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the config file at path, when there is one, and then the
// environment. Environment variables take precedence over file values. An
// empty path falls back to ./config.json if it exists. Required settings are
// not checked.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyFile(raw); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate reports the required settings that are missing.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	if c.Username == "" {
		cerr.add("username", "", "is required")
	}

	if c.Password == "" {
		cerr.add("password", "", "is required")
	}

	c.validateSearch(cerr)

	return cerr.orNil()
}

// ValidateSearch checks only what a catalog search needs.
func (c *Config) ValidateSearch() error {
	cerr := &ConfigError{}
	c.validateSearch(cerr)

	return cerr.orNil()
}

func (c *Config) validateSearch(cerr *ConfigError) {
	if c.Search.DatasetID == "" {
		cerr.add("datasetId", "", "is required")
	}

	if c.Search.StartIndex < 1 {
		cerr.add("startIndex", strconv.Itoa(c.Search.StartIndex), "must be at least 1")
	}
}

func (c *Config) Credentials() mosdac.Credentials {
	return mosdac.Credentials{Username: c.Username, Password: c.Password}
}

func (c *Config) Query() mosdac.SearchQuery {
	return mosdac.SearchQuery{
		DatasetID:   c.Search.DatasetID,
		StartTime:   c.Search.StartTime,
		EndTime:     c.Search.EndTime,
		Count:       c.Search.Count,
		BoundingBox: c.Search.BoundingBox,
		GID:         c.Search.GID,
		StartIndex:  c.Search.StartIndex,
	}
}

func (c *Config) Layout() organizer.Layout {
	return organizer.Layout{Root: c.Download.Path, ByDate: c.Download.OrganizeByDate}
}

func (c *Config) Endpoints() mosdac.Endpoints {
	return mosdac.Endpoints{BaseURL: c.API.BaseURL, SearchURL: c.API.SearchURL}
}

// ErrorLogDir is the error log directory, or "" when error logs are off.
func (c *Config) ErrorLogDir() string {
	if !c.Download.GenerateErrorLogs {
		return ""
	}

	return c.Download.ErrorLogsDir
}

func (c *Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel, slog.LevelInfo)
}

func (c *Config) ErrorSlogLevel() slog.Level {
	return parseLevel(c.ErrorLogLevel, slog.LevelError)
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return fallback
	}
}
