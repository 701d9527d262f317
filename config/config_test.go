package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonbodner/replacer"
)

// isolate points the XDG directories at a fresh temp dir and returns it.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(home, "etc"))
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config", "replacer", "rules.json"), cfg.RulesFile)
	assert.Equal(t, "re2", cfg.Engine)
	assert.Zero(t, cfg.MatchTimeout)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.GoStrings)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadTOMLFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	writeFile(t, path, `
rules_file = "/srv/rules.yaml"
engine = "regexp2"
match_timeout = "50ms"
concurrency = 8
go_strings = true

[watch]
debounce = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/rules.yaml", cfg.RulesFile)
	assert.Equal(t, "regexp2", cfg.Engine)
	assert.Equal(t, 50*time.Millisecond, cfg.MatchTimeout)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.True(t, cfg.GoStrings)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadDefaultYAMLFromXDG(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "config", "replacer", "config.yaml"), "log_level: debug\ndry_run: true\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DryRun)
}

func TestDefaultRulesFileFound(t *testing.T) {
	home := isolate(t)
	rules := filepath.Join(home, "etc", "replacer", "rules.json")
	writeFile(t, rules, `[]`)

	assert.Equal(t, rules, DefaultRulesFile())
}

func TestLoadEnvOverrides(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "c.toml")
	writeFile(t, path, "concurrency = 8\n")
	t.Setenv("REPLACER_CONCURRENCY", "16")
	t.Setenv("REPLACER_RULES_FILE", "/env/rules.json")
	t.Setenv("REPLACER_WATCH__DEBOUNCE", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, "/env/rules.json", cfg.RulesFile)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoadErrors(t *testing.T) {
	home := isolate(t)

	_, err := Load(filepath.Join(home, "missing.toml"))
	assert.Error(t, err)

	ini := filepath.Join(home, "c.ini")
	writeFile(t, ini, "x=1")
	_, err = Load(ini)
	assert.Error(t, err)

	badEngine := filepath.Join(home, "engine.toml")
	writeFile(t, badEngine, `engine = "pcre"`)
	_, err = Load(badEngine)
	assert.Error(t, err)

	badLevel := filepath.Join(home, "level.toml")
	writeFile(t, badLevel, `log_level = "shouting"`)
	_, err = Load(badLevel)
	assert.Error(t, err)
}

func TestConfigBuildsRuleSet(t *testing.T) {
	home := isolate(t)
	rules := filepath.Join(home, "rules.rules")
	writeFile(t, rules, "foo(?=bar) -> X\n")

	cfg := &Config{RulesFile: rules, Engine: "regexp2", MatchTimeout: time.Second, Concurrency: 3, DryRun: true}
	opts, err := cfg.CompileOptions()
	require.NoError(t, err)
	assert.Equal(t, replacer.CompileOptions{Engine: replacer.EngineRegexp2, MatchTimeout: time.Second}, opts)

	rs, err := cfg.LoadRuleSet()
	require.NoError(t, err)
	assert.Equal(t, "Xbar", rs.Apply("foobar"))

	cfg.Engine = "re2"
	_, err = cfg.LoadRuleSet()
	assert.ErrorIs(t, err, replacer.ErrInvalidPattern)

	cfg.Engine = "nope"
	_, err = cfg.LoadRuleSet()
	assert.Error(t, err)
}

func TestConfigFileOptionsAndLogger(t *testing.T) {
	cfg := &Config{Concurrency: 3, GoStrings: true, DryRun: true, LogLevel: "info"}

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Info().Msg("configured")
	assert.Contains(t, buf.String(), "configured")

	opts := cfg.FileOptions(&logger)
	assert.Equal(t, 3, opts.Concurrency)
	assert.True(t, opts.GoStrings)
	assert.True(t, opts.DryRun)
	assert.Same(t, &logger, opts.Logger)
}

func TestConfigNewReloader(t *testing.T) {
	home := isolate(t)
	rules := filepath.Join(home, "rules.json")
	writeFile(t, rules, `[{"pattern": "a", "replacement": "b"}]`)

	cfg := &Config{RulesFile: rules, Engine: "re2", Watch: WatchConfig{Debounce: time.Second}}
	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)

	r, err := cfg.NewReloader(logger)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "b", r.Apply("a"))
}
