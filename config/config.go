// Package config reads replacer settings from defaults, an optional TOML or
// YAML file and REPLACER_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/jonbodner/replacer"
	"github.com/jonbodner/replacer/internal/logging"
	"github.com/jonbodner/replacer/watch"
)

const (
	AppName   = "replacer"
	EnvPrefix = "REPLACER_"
)

type Config struct {
	RulesFile string `koanf:"rules_file"`
	Engine    string `koanf:"engine"`
	// MatchTimeout bounds each regexp2 replacement; zero means none.
	MatchTimeout time.Duration `koanf:"match_timeout"`
	Concurrency  int           `koanf:"concurrency"`
	GoStrings    bool          `koanf:"go_strings"`
	DryRun       bool          `koanf:"dry_run"`
	LogLevel     string        `koanf:"log_level"`
	Watch        WatchConfig   `koanf:"watch"`
}

type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rules_file":     DefaultRulesFile(),
		"engine":         "re2",
		"match_timeout":  "0s",
		"concurrency":    4,
		"go_strings":     false,
		"dry_run":        false,
		"log_level":      "warn",
		"watch.debounce": "100ms",
	}
}

// DefaultRulesFile is rules.json under the first XDG config directory that
// has one, or under $XDG_CONFIG_HOME/replacer when none does.
func DefaultRulesFile() string {
	rel := filepath.Join(AppName, "rules.json")
	if path, err := xdg.SearchConfigFile(rel); err == nil {
		return path
	}
	return filepath.Join(xdg.ConfigHome, rel)
}

// DefaultConfigFile returns the first config.toml, config.yaml or config.yml
// found in the XDG config directories, or "" if there is none.
func DefaultConfigFile() string {
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		if path, err := xdg.SearchConfigFile(filepath.Join(AppName, name)); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config. An empty path means DefaultConfigFile; a missing
// default file is not an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path == "" {
		path = DefaultConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Env vars, REPLACER_WATCH__DEBOUNCE -> watch.debounce
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if _, err := replacer.ParseEngine(cfg.Engine); err != nil {
		return nil, err
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

func (c *Config) CompileOptions() (replacer.CompileOptions, error) {
	engine, err := replacer.ParseEngine(c.Engine)
	if err != nil {
		return replacer.CompileOptions{}, err
	}
	return replacer.CompileOptions{Engine: engine, MatchTimeout: c.MatchTimeout}, nil
}

func (c *Config) LoadRuleSet() (*replacer.RuleSet, error) {
	opts, err := c.CompileOptions()
	if err != nil {
		return nil, err
	}
	return replacer.LoadRuleSet(c.RulesFile, opts)
}

func (c *Config) Logger(w io.Writer) (zerolog.Logger, error) {
	return logging.New(w, c.LogLevel)
}

func (c *Config) FileOptions(logger *zerolog.Logger) replacer.FileOptions {
	return replacer.FileOptions{
		Concurrency: c.Concurrency,
		GoStrings:   c.GoStrings,
		DryRun:      c.DryRun,
		Logger:      logger,
	}
}

// NewReloader loads the configured rule file into a watch.Reloader. Call
// Start on the result to follow changes.
func (c *Config) NewReloader(logger zerolog.Logger) (*watch.Reloader, error) {
	opts, err := c.CompileOptions()
	if err != nil {
		return nil, err
	}
	return watch.New(c.RulesFile,
		watch.WithCompileOptions(opts),
		watch.WithDebounce(c.Watch.Debounce),
		watch.WithLogger(logger),
	)
}
