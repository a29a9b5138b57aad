package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

const (
	FileName        = "hermes.yml"
	DefaultTimezone = "America/Sao_Paulo"
	DefaultAddr     = "127.0.0.1:8080"
	DefaultLevel    = "info"
)

var logLevels = []any{"debug", "info", "warn", "error"}

// Config models hermes.yml.
type Config struct {
	Diary  DiaryConfig  `yaml:"diary"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type DiaryConfig struct {
	// Timezone is an IANA zone name used to render diary timestamps.
	Timezone string `yaml:"timezone"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	BasePath    string   `yaml:"base_path"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Diary,
		validation.Field(&c.Diary.Timezone, validation.Required, validation.By(knownZone)),
	); err != nil {
		return fmt.Errorf("config.diary: %w", err)
	}
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Addr, validation.Required, is.DialString),
		validation.Field(&c.Server.BasePath, validation.By(basePath)),
		validation.Field(&c.Server.CORSOrigins, validation.Each(validation.Required, is.URL)),
	); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	if err := validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.Required, validation.In(logLevels...)),
	); err != nil {
		return fmt.Errorf("config.log: %w", err)
	}
	return nil
}

func knownZone(value any) error {
	name, _ := value.(string)
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown time zone %q", name)
	}
	return nil
}

func basePath(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if !strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return fmt.Errorf("must start with / and not end with /")
	}
	return nil
}

// Location returns the diary time zone. Validate has already checked the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Diary.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with hermes init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the default Config.
func Default() *Config {
	return &Config{
		Diary:  DiaryConfig{Timezone: DefaultTimezone},
		Server: ServerConfig{Addr: DefaultAddr},
		Log:    LogConfig{Level: DefaultLevel},
	}
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Missing fields
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders cfg back to YAML.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `diary:
  timezone: America/Sao_Paulo

server:
  addr: 127.0.0.1:8080
  base_path: ""
  # cors_origins: [http://localhost:5173]

log:
  level: info
  file: ""
`
