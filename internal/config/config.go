// Package config loads the lattice.yaml configuration file.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "lattice.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the runtime configuration of the lattice binary.
type Config struct {
	Store   string `yaml:"store" json:"store"`
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Redis  RedisConfig  `yaml:"redis" json:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite" json:"sqlite"`
	HTTP   HTTPConfig   `yaml:"http" json:"http"`

	RenderDelay time.Duration `yaml:"render_delay" json:"render_delay"`
	SaveDelay   time.Duration `yaml:"save_delay" json:"save_delay"`

	// PaletteDir holds user templates (a Loam vault). Empty means the
	// built-in palette only.
	PaletteDir string `yaml:"palette_dir" json:"palette_dir"`

	// EncryptionKey is a base64 AES-256 key. FallbackKeys are tried on
	// read, for rotation.
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys"`

	// RedactAttributes lists patterns of attribute and metadata names whose
	// values are masked before a write.
	RedactAttributes []string `yaml:"redact_attributes" json:"redact_attributes"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// RedisConfig configures the Redis store and locker.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// HTTPConfig configures the HTTP bridge.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Store:       StoreFile,
		DataDir:     ".lattice",
		Redis:       RedisConfig{Addr: "localhost:6379", Prefix: "lattice:"},
		SQLite:      SQLiteConfig{Path: "lattice.db"},
		HTTP:        HTTPConfig{Port: 8080},
		RenderDelay: 500 * time.Millisecond,
		SaveDelay:   time.Second,
		LogLevel:    "info",
	}
}

// Load reads a configuration file (YAML or JSON) on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML; one decoder serves both and keeps
		// durations like "500ms" readable in either form.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, cfg.Validate()
}

// Validate checks field combinations that would only fail later.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Store == StoreFile && c.DataDir == "" {
		errs = append(errs, errors.New("file store requires data_dir"))
	}
	if c.Store == StoreRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis store requires redis.addr"))
	}
	if c.Store == StoreSQLite && c.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite store requires sqlite.path"))
	}
	if c.RenderDelay < 0 || c.SaveDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if _, _, err := c.Keys(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Keys decodes the encryption keys. A nil active key means encryption is off.
func (c Config) Keys() (active []byte, fallback [][]byte, err error) {
	if c.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
