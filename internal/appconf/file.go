package appconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the on-disk configuration file. Keys are kebab-case in
// every supported format.
type FileConfig struct {
	Port      int    `json:"port" yaml:"port" toml:"port" validate:"min=0,max=65535"`
	Env       string `json:"env" yaml:"env" toml:"env" validate:"omitempty,oneof=development test production"`
	Verbose   bool   `json:"verbose" yaml:"verbose" toml:"verbose"`
	RateLimit int    `json:"rate-limit" yaml:"rate-limit" toml:"rate-limit" validate:"min=0"`
	DataPath  string `json:"data-path" yaml:"data-path" toml:"data-path"`
	AssetsDir string `json:"assets-dir" yaml:"assets-dir" toml:"assets-dir"`

	AdminKeys []string `json:"admin-keys" yaml:"admin-keys" toml:"admin-keys" validate:"dive,required"`

	FeedEndpoint         string `json:"feed-endpoint" yaml:"feed-endpoint" toml:"feed-endpoint" validate:"omitempty,http_url"`
	StopID               string `json:"stop-id" yaml:"stop-id" toml:"stop-id"`
	RefreshSeconds       int    `json:"refresh-seconds" yaml:"refresh-seconds" toml:"refresh-seconds" validate:"min=0"`
	MaxDisplayedArrivals int    `json:"max-displayed-arrivals" yaml:"max-displayed-arrivals" toml:"max-displayed-arrivals" validate:"min=0,max=50"`

	Gateway *FileGateway `json:"gateway" yaml:"gateway" toml:"gateway"`
}

type FileGateway struct {
	Enabled        *bool  `json:"enabled" yaml:"enabled" toml:"enabled"`
	UpstreamURL    string `json:"upstream-url" yaml:"upstream-url" toml:"upstream-url" validate:"omitempty,http_url"`
	APIKey         string `json:"api-key" yaml:"api-key" toml:"api-key"`
	TimeoutSeconds int    `json:"timeout-seconds" yaml:"timeout-seconds" toml:"timeout-seconds" validate:"min=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadFromFile reads and validates a configuration file. The format is chosen
// by extension: .json, .yaml/.yml or .toml.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and returns a single error naming every
// offending key.
func (c *FileConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "FileConfig."), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ToAppConfig overlays the file values on DefaultConfig.
func (c *FileConfig) ToAppConfig() Config {
	cfg := DefaultConfig()

	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Env != "" {
		cfg.Env = EnvFlagToEnvironment(c.Env)
	}
	cfg.Verbose = c.Verbose
	if c.RateLimit != 0 {
		cfg.RateLimit = c.RateLimit
	}
	if c.DataPath != "" {
		cfg.DataPath = c.DataPath
	}
	cfg.AssetsDir = c.AssetsDir
	cfg.AdminKeys = append([]string(nil), c.AdminKeys...)

	if c.FeedEndpoint != "" {
		cfg.Board.FeedEndpoint = c.FeedEndpoint
	}
	if c.StopID != "" {
		cfg.Board.StopID = c.StopID
	}
	if c.RefreshSeconds != 0 {
		cfg.Board.RefreshSeconds = c.RefreshSeconds
	}
	if c.MaxDisplayedArrivals != 0 {
		cfg.Board.MaxDisplayedArrivals = c.MaxDisplayedArrivals
	}

	if g := c.Gateway; g != nil {
		if g.Enabled != nil {
			cfg.Gateway.Enabled = *g.Enabled
		}
		if g.UpstreamURL != "" {
			cfg.Gateway.UpstreamURL = g.UpstreamURL
		}
		cfg.Gateway.APIKey = g.APIKey
		if g.TimeoutSeconds != 0 {
			cfg.Gateway.Timeout = time.Duration(g.TimeoutSeconds) * time.Second
		}
	}
	return cfg
}
