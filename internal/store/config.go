package store

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	// Driver is one of sqlite, postgres, surrealdb, memory.
	Driver string `yaml:"driver"`
	// Dir holds the SQLite database file.
	Dir string `yaml:"dir,omitempty"`
	// DSN is the Postgres connection string.
	DSN     string        `yaml:"dsn,omitempty"`
	Surreal SurrealConfig `yaml:"surreal,omitempty"`
}

type SurrealConfig struct {
	URL       string `yaml:"url,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Database  string `yaml:"database,omitempty"`
	User      string `yaml:"user,omitempty"`
	Pass      string `yaml:"pass,omitempty"`
}

type EngineConfig struct {
	// NestThreshold is the lateral offset that nests (+) or un-nests (-) a dragged item.
	NestThreshold int `yaml:"nestThreshold"`
	// MaxDepth limits forest depth; 0 means unlimited.
	MaxDepth int `yaml:"maxDepth"`
}

type ExportConfig struct {
	// Driver is fs or s3.
	Driver string   `yaml:"driver"`
	Root   string   `yaml:"root,omitempty"`
	S3     S3Config `yaml:"s3,omitempty"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"pathStyle,omitempty"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console,omitempty"`
	// File appends JSON logs to a file instead of stderr.
	File string `yaml:"file,omitempty"`
}

func DefaultConfig() Config {
	dir, _ := ConfigDir()
	return defaultConfigAt(dir)
}

func defaultConfigAt(cfgDir string) Config {
	dataDir := ""
	if cfgDir != "" {
		dataDir = filepath.Join(cfgDir, "data")
	}
	return Config{
		Store:  StoreConfig{Driver: string(DriverSQLite), Dir: dataDir, Surreal: SurrealConfig{Namespace: "pagecraft", Database: "pagecraft"}},
		Engine: EngineConfig{NestThreshold: 40},
		Export: ExportConfig{Driver: "fs", Root: "exports"},
		Log:    LogConfig{Level: "warn"},
	}
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.pagecraft).
	if v := strings.TrimSpace(os.Getenv("PAGECRAFT_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pagecraft"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfig reads config.yaml over DefaultConfig and then applies environment
// overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadConfigAt(dir)
}

// LoadConfigAt is LoadConfig for an explicit config directory.
func LoadConfigAt(dir string) (*Config, error) {
	cfg := defaultConfigAt(dir)
	b, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

// ApplyEnv overrides fields from PAGECRAFT_* variables.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Store.Driver, "PAGECRAFT_STORE")
	set(&c.Store.Dir, "PAGECRAFT_DIR")
	set(&c.Store.DSN, "PAGECRAFT_DSN")
	set(&c.Store.Surreal.URL, "PAGECRAFT_SURREAL_URL")
	set(&c.Store.Surreal.User, "PAGECRAFT_SURREAL_USER")
	set(&c.Store.Surreal.Pass, "PAGECRAFT_SURREAL_PASS")
	set(&c.Export.Driver, "PAGECRAFT_EXPORT")
	set(&c.Export.S3.Bucket, "PAGECRAFT_S3_BUCKET")
	set(&c.Export.S3.Region, "PAGECRAFT_S3_REGION")
	set(&c.Export.S3.Endpoint, "PAGECRAFT_S3_ENDPOINT")
	set(&c.Log.Level, "PAGECRAFT_LOG_LEVEL")
	set(&c.Log.File, "PAGECRAFT_LOG_FILE")
	if v := strings.TrimSpace(os.Getenv("PAGECRAFT_NEST_THRESHOLD")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.NestThreshold = n
		}
	}
}

func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Use a unique temp file name to avoid cross-process clobbering when the CLI and
	// TUI write config concurrently.
	return AtomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}
