package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "input.md", cfg.Input)
	require.Equal(t, "output.html", cfg.Output.HTML)
	require.Equal(t, "output.json", cfg.Output.Tokens)
	require.Equal(t, "json", cfg.Output.TokensFormat)
	require.True(t, cfg.Rewrite.Annotation)
	require.True(t, cfg.Rewrite.Math)
	require.Equal(t, "expand", cfg.Rewrite.Strategy)
	require.True(t, cfg.Render.Escape)
	require.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	require.False(t, cfg.Log.Enabled)
	require.False(t, cfg.Tracing.Enabled)

	require.NoError(t, Validate(cfg))
}

func TestDefaultConfigTemplate_MatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(DefaultConfigTemplate())))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, Defaults(), cfg)
}

func TestDefaultConfigTemplate_ListsEveryKey(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &doc))

	for _, key := range Keys() {
		if key == "tracing.file_path" {
			// commented out, derived at runtime
			continue
		}
		node := any(doc)
		for _, part := range strings.Split(key, ".") {
			m, ok := node.(map[string]any)
			require.True(t, ok, key)
			node, ok = m[part]
			require.True(t, ok, "template is missing %s", key)
		}
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".markspan", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing input", func(c *Config) { c.Input = "" }, "input is required"},
		{"missing html", func(c *Config) { c.Output.HTML = "" }, "output.html is required"},
		{"missing tokens", func(c *Config) { c.Output.Tokens = "" }, "output.tokens is required"},
		{"same outputs", func(c *Config) { c.Output.Tokens = c.Output.HTML }, "must differ"},
		{"bad format", func(c *Config) { c.Output.TokensFormat = "toml" }, "output.tokens_format"},
		{"bad strategy", func(c *Config) { c.Rewrite.Strategy = "regex" }, "rewrite.strategy"},
		{"bad style", func(c *Config) { c.Preview.Style = "neon" }, "preview.style"},
		{"negative width", func(c *Config) { c.Preview.Width = -1 }, "preview.width"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"zero expiration", func(c *Config) { c.Cache.Expiration = 0 }, "cache.expiration"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log without path", func(c *Config) { c.Log.Enabled = true; c.Log.Path = "" }, "log.path"},
		{"bad sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "tracing.sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_CacheDisabledIgnoresExpiration(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Enabled = false
	cfg.Cache.Expiration = 0
	require.NoError(t, Validate(cfg))
}

func TestValidateTracing(t *testing.T) {
	require.NoError(t, ValidateTracing(TracingConfig{}))
	require.NoError(t, ValidateTracing(TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.5}))

	err := ValidateTracing(TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "tracing.exporter")

	err = ValidateTracing(TracingConfig{Enabled: true, Exporter: "file"})
	require.ErrorContains(t, err, "tracing.file_path is required")

	err = ValidateTracing(TracingConfig{Enabled: true, Exporter: "otlp"})
	require.ErrorContains(t, err, "tracing.otlp_endpoint is required")

	// path requirements only apply when enabled
	require.NoError(t, ValidateTracing(TracingConfig{Enabled: false, Exporter: "file"}))
}

func TestDefaultTracesFilePath(t *testing.T) {
	path := DefaultTracesFilePath()
	if path == "" {
		t.Skip("home directory unavailable")
	}
	require.True(t, strings.HasSuffix(path, filepath.Join(".config", "markspan", "traces", "traces.jsonl")))
}
