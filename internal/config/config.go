package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a csvload run.
type Config struct {
	DSN            string
	FilePath       string
	Destination    string
	LogFormat      string // "text" or "json"
	OptionsFile    string
	PushgatewayURL string
	Options        Options
}

// Options tunes an import. Every field is optional; nil or zero values
// fall back to DefaultOptions.
type Options struct {
	BatchSize            int    `yaml:"batch_size"`
	MaxConcurrentBatches int    `yaml:"max_concurrent_batches"`
	UseTransaction       *bool  `yaml:"use_transaction"`
	UseWorkers           *bool  `yaml:"use_workers"`
	ChunkSizeLines       int    `yaml:"chunk_size_lines"`
	UsePgCopyStream      *bool  `yaml:"use_pg_copy_stream"`
	PgDSN                string `yaml:"pg_dsn"`
	LogLevel             string `yaml:"log_level"`
	WorkerCount          int    `yaml:"worker_count"`
	PersistChunks        *bool  `yaml:"persist_chunks"`
}

// Bool returns a pointer to v, for filling optional fields.
func Bool(v bool) *bool { return &v }

// DefaultOptions derives defaults from the host's CPU count.
func DefaultOptions() Options {
	return defaultOptionsFor(runtime.NumCPU())
}

func defaultOptionsFor(cpus int) Options {
	return Options{
		BatchSize:            500,
		MaxConcurrentBatches: min(10, max(3, cpus/2)),
		UseTransaction:       Bool(true),
		UseWorkers:           Bool(cpus > 1),
		ChunkSizeLines:       50000,
		UsePgCopyStream:      Bool(true),
		LogLevel:             "info",
		WorkerCount:          max(1, cpus-1),
		PersistChunks:        Bool(true),
	}
}

// Merge returns o with every unset field taken from base.
func (o Options) Merge(base Options) Options {
	out := base
	if o.BatchSize > 0 {
		out.BatchSize = o.BatchSize
	}
	if o.MaxConcurrentBatches > 0 {
		out.MaxConcurrentBatches = o.MaxConcurrentBatches
	}
	if o.UseTransaction != nil {
		out.UseTransaction = o.UseTransaction
	}
	if o.UseWorkers != nil {
		out.UseWorkers = o.UseWorkers
	}
	if o.ChunkSizeLines > 0 {
		out.ChunkSizeLines = o.ChunkSizeLines
	}
	if o.UsePgCopyStream != nil {
		out.UsePgCopyStream = o.UsePgCopyStream
	}
	if o.PgDSN != "" {
		out.PgDSN = o.PgDSN
	}
	if o.LogLevel != "" {
		out.LogLevel = o.LogLevel
	}
	if o.WorkerCount > 0 {
		out.WorkerCount = o.WorkerCount
	}
	if o.PersistChunks != nil {
		out.PersistChunks = o.PersistChunks
	}
	return out
}

// Validate rejects option values that cannot be honored.
func (o Options) Validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive, got %d", o.BatchSize)
	}
	if o.MaxConcurrentBatches < 0 {
		return fmt.Errorf("max_concurrent_batches must be positive, got %d", o.MaxConcurrentBatches)
	}
	if o.WorkerCount < 0 {
		return fmt.Errorf("worker_count must be positive, got %d", o.WorkerCount)
	}
	if o.ChunkSizeLines < 0 {
		return fmt.Errorf("chunk_size_lines must be positive, got %d", o.ChunkSizeLines)
	}
	switch strings.ToLower(o.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q (want debug, info, warn or error)", o.LogLevel)
	}
	return nil
}

// LoadFromFile reads a YAML options file and layers its values over the
// options already set on c. Flags parsed later still win.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fileOpts Options
	if err := yaml.Unmarshal(data, &fileOpts); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := fileOpts.Validate(); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	c.Options = fileOpts.Merge(c.Options)
	return nil
}

// ResolveDSN fills DSN from the environment when no flag set it:
// DATABASE_URL first, then the DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME
// group.
func (c *Config) ResolveDSN() {
	if c.DSN != "" {
		return
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DSN = v
		return
	}
	c.DSN = dsnFromParts(os.Getenv)
}

func dsnFromParts(getenv func(string) string) string {
	host := getenv("DB_HOST")
	name := getenv("DB_NAME")
	if host == "" || name == "" {
		return ""
	}
	port := getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + name,
	}
	if user := getenv("DB_USER"); user != "" {
		if pw := getenv("DB_PASSWORD"); pw != "" {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if c.Destination == "" {
		return fmt.Errorf("--dest is required")
	}
	return c.Options.Validate()
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn, DATABASE_URL or DB_HOST/DB_NAME is required")
	}
	return nil
}
