package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment variable overrides, e.g.
// MATTERSEND_LOG_LEVEL.
const envPrefix = "MATTERSEND_"

// Instance is one configured Mattermost server.
type Instance struct {
	ServerURL        string `koanf:"server_url"`
	APIToken         string `koanf:"api_token"`
	DefaultChannelID string `koanf:"default_channel_id"`
}

// Config is the daemon configuration, loaded once at startup.
type Config struct {
	Listen    string `koanf:"listen"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// APITokenHash is the bcrypt hash of the bearer token the host
	// system presents on /api/v1 calls.
	APITokenHash string `koanf:"api_token_hash"`

	AliasDB string `koanf:"alias_db"`

	// BotUsername is appended to every channel membership sync so the
	// bot itself can post in the channel. Events may override it.
	BotUsername string `koanf:"bot_username"`

	// ConsoleBaseURL is the external console root (e.g. a CI server)
	// used for console-category check links.
	ConsoleBaseURL string `koanf:"console_base_url"`

	DefaultInstance string              `koanf:"default_instance"`
	Instances       map[string]Instance `koanf:"instances"`
}

// Default returns a config with sensible defaults. Instances must come
// from the config file or environment.
func Default() *Config {
	return &Config{
		Listen:      ":8370",
		LogLevel:    "info",
		LogFormat:   "json",
		AliasDB:     "aliases.db",
		BotUsername: "statusbot",
		Instances:   map[string]Instance{},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MATTERSEND_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for logical errors, reporting all of them at
// once.
func (c *Config) Validate() error {
	var errs []string

	if c.Listen == "" {
		errs = append(errs, "listen is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be one of: debug, info, warn, error (got %q)", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Sprintf("log_format must be json or text (got %q)", c.LogFormat))
	}

	if c.BotUsername == "" {
		errs = append(errs, "bot_username is required")
	}
	if c.AliasDB == "" {
		errs = append(errs, "alias_db is required")
	}

	if len(c.Instances) == 0 {
		errs = append(errs, "at least one Mattermost instance must be configured")
	}
	if c.DefaultInstance != "" {
		if _, ok := c.Instances[c.DefaultInstance]; !ok {
			errs = append(errs, fmt.Sprintf("default_instance references unknown instance %q", c.DefaultInstance))
		}
	} else if len(c.Instances) > 1 {
		errs = append(errs, "default_instance is required when multiple instances are configured")
	}

	for name, inst := range c.Instances {
		prefix := fmt.Sprintf("instances[%s]", name)
		if inst.ServerURL == "" {
			errs = append(errs, prefix+".server_url is required")
		} else if u, err := url.Parse(inst.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, prefix+".server_url must be a valid http(s) URL")
		}
		if inst.APIToken == "" {
			errs = append(errs, prefix+".api_token is required")
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// Instance resolves a named instance, falling back to the default. The
// second return is false when no usable instance exists.
func (c *Config) Instance(name string) (Instance, bool) {
	if name == "" {
		name = c.DefaultInstance
	}
	if name == "" && len(c.Instances) == 1 {
		for _, inst := range c.Instances {
			return inst, true
		}
	}
	inst, ok := c.Instances[name]
	return inst, ok
}
