// Package config loads graphlens settings from a YAML, TOML or JSON file.
package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/projection"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Environment variables that override secrets in the file.
const (
	EnvEncryptionKey = "GRAPHLENS_ENCRYPTION_KEY"
	EnvRedisPassword = "GRAPHLENS_REDIS_PASSWORD"
)

// Candidates are the file names Find looks for, in order.
var Candidates = []string{"graphlens.yaml", "graphlens.yml", "graphlens.toml", "graphlens.json"}

// Config is the root configuration document.
type Config struct {
	LogLevel   string           `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFormat  string           `yaml:"log_format" toml:"log_format" json:"log_format"`
	Viewport   ViewportConfig   `yaml:"viewport" toml:"viewport" json:"viewport"`
	Projection ProjectionConfig `yaml:"projection" toml:"projection" json:"projection"`
	Store      StoreConfig      `yaml:"store" toml:"store" json:"store"`
	Nicknames  NicknameConfig   `yaml:"nicknames" toml:"nicknames" json:"nicknames"`
	Server     ServerConfig     `yaml:"server" toml:"server" json:"server"`
	Watch      WatchConfig      `yaml:"watch" toml:"watch" json:"watch"`
}

type ViewportConfig struct {
	Width  float64 `yaml:"width" toml:"width" json:"width"`
	Height float64 `yaml:"height" toml:"height" json:"height"`
}

type ProjectionConfig struct {
	Skin               string            `yaml:"skin" toml:"skin" json:"skin"`
	Palette            map[string]string `yaml:"palette" toml:"palette" json:"palette"`
	MultilineThreshold int               `yaml:"multiline_threshold" toml:"multiline_threshold" json:"multiline_threshold"`
}

type StoreConfig struct {
	Backend  string      `yaml:"backend" toml:"backend" json:"backend"`
	Path     string      `yaml:"path" toml:"path" json:"path"`
	Compress bool        `yaml:"compress" toml:"compress" json:"compress"`
	Redis    RedisConfig `yaml:"redis" toml:"redis" json:"redis"`
	// EncryptionKey is a base64 encoded 32-byte AES key. Empty disables
	// encryption.
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key" json:"encryption_key"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr" json:"addr"`
	Password string `yaml:"password" toml:"password" json:"password"`
	DB       int    `yaml:"db" toml:"db" json:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix" json:"prefix"`
	TTL      string `yaml:"ttl" toml:"ttl" json:"ttl"`
}

type NicknameConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Source  string `yaml:"source" toml:"source" json:"source"`
	Timeout string `yaml:"timeout" toml:"timeout" json:"timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr" json:"addr"`
}

type WatchConfig struct {
	Pattern  string `yaml:"pattern" toml:"pattern" json:"pattern"`
	Debounce string `yaml:"debounce" toml:"debounce" json:"debounce"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Viewport:  ViewportConfig{Width: 1280, Height: 800},
		Projection: ProjectionConfig{
			Skin:               "classic",
			MultilineThreshold: 50,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Path:    ".graphlens",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "graphlens:"},
		},
		Nicknames: NicknameConfig{
			Enabled: true,
			Timeout: "30s",
		},
		Server: ServerConfig{Addr: ":8080"},
		Watch:  WatchConfig{Pattern: "**/*.{png,json}", Debounce: "250ms"},
	}
}

// Find returns the first candidate file present in dir, or "".
func Find(dir string) string {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load reads path over the defaults. The format follows the extension;
// anything other than .toml or .json is read as YAML. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEncryptionKey); v != "" {
		c.Store.EncryptionKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Store.Redis.Password = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := projection.SkinByName(c.Projection.Skin); err != nil {
		return err
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %gx%g", c.Viewport.Width, c.Viewport.Height)
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"store.redis.ttl":   c.Store.Redis.TTL,
		"nicknames.timeout": c.Nicknames.Timeout,
		"watch.debounce":    c.Watch.Debounce,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ProjectionConfig builds the projector configuration.
func (c *Config) ProjectionConfig() (projection.Config, error) {
	pc := projection.DefaultConfig()
	skin, err := projection.SkinByName(c.Projection.Skin)
	if err != nil {
		return pc, err
	}
	pc.Skin = skin
	pc.Palette = pc.Palette.Merge(c.Projection.Palette)
	if c.Projection.MultilineThreshold > 0 {
		pc.MultilineThreshold = c.Projection.MultilineThreshold
	}
	return pc, nil
}

// ViewportValue returns the configured viewport.
func (c *Config) ViewportValue() domain.Viewport {
	return domain.Viewport{Width: c.Viewport.Width, Height: c.Viewport.Height}
}

// EncryptionKey decodes the store key. It returns nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// RedisTTL is the history expiry for the redis backend. Zero keeps
// entries forever.
func (c *Config) RedisTTL() time.Duration {
	d, _ := parseDuration(c.Store.Redis.TTL)
	return d
}

func (c *Config) NicknameTimeout() time.Duration {
	d, _ := parseDuration(c.Nicknames.Timeout)
	return d
}

func (c *Config) WatchDebounce() time.Duration {
	d, _ := parseDuration(c.Watch.Debounce)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
