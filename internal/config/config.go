// Package config provides configuration types and defaults for markspan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/rewrite"
	"github.com/zjrosen/markspan/internal/token"
)

// Config holds all configuration options for markspan.
type Config struct {
	Input   string        `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Rewrite RewriteConfig `mapstructure:"rewrite"`
	Render  RenderConfig  `mapstructure:"render"`
	Preview PreviewConfig `mapstructure:"preview"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// OutputConfig names the two output files.
type OutputConfig struct {
	HTML         string `mapstructure:"html"`
	Tokens       string `mapstructure:"tokens"`
	TokensFormat string `mapstructure:"tokens_format"` // "json" (default) or "yaml"
}

// RewriteConfig selects the rewrite passes.
type RewriteConfig struct {
	Annotation bool   `mapstructure:"annotation"` // [@name@] spans
	Math       bool   `mapstructure:"math"`       // $$tex$$ spans
	Strategy   string `mapstructure:"strategy"`   // "expand" (default) or "splice"
}

// RenderConfig controls HTML output.
type RenderConfig struct {
	// Escape HTML-escapes captured span content. Disable to embed it raw.
	Escape bool `mapstructure:"escape"`
	XHTML  bool `mapstructure:"xhtml"`
}

// PreviewConfig controls terminal preview rendering.
type PreviewConfig struct {
	Style string `mapstructure:"style"` // glamour style name
	Width int    `mapstructure:"width"` // word wrap column, 0 disables wrapping
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// CacheConfig controls the in-memory result cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Level   string `mapstructure:"level"` // debug, info, warn, error
}

// TracingConfig holds tracing configuration for the processing pipeline.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/markspan/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// PreviewStyles lists the glamour styles accepted by preview.style.
var PreviewStyles = []string{"auto", "dark", "light", "notty", "ascii", "dracula", "pink", "tokyo-night"}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/markspan/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "markspan", "traces", "traces.jsonl")
}

// Defaults returns a Config with the reference behavior: read input.md,
// write output.html and output.json, both rewrite passes enabled.
func Defaults() Config {
	return Config{
		Input: "input.md",
		Output: OutputConfig{
			HTML:         "output.html",
			Tokens:       "output.json",
			TokensFormat: string(token.FormatJSON),
		},
		Rewrite: RewriteConfig{
			Annotation: true,
			Math:       true,
			Strategy:   string(rewrite.StrategyExpand),
		},
		Render: RenderConfig{
			Escape: true,
			XHTML:  false,
		},
		Preview: PreviewConfig{
			Style: "auto",
			Width: 80,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Expiration: 10 * time.Minute,
		},
		Log: LogConfig{
			Enabled: false,
			Path:    "markspan.log",
			Level:   "info",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks every section and returns the first error found.
func Validate(c Config) error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	validators := []func(Config) error{
		func(c Config) error { return ValidateOutput(c.Output) },
		func(c Config) error { return ValidateRewrite(c.Rewrite) },
		func(c Config) error { return ValidatePreview(c.Preview) },
		func(c Config) error { return ValidateWatch(c.Watch) },
		func(c Config) error { return ValidateCache(c.Cache) },
		func(c Config) error { return ValidateLog(c.Log) },
		func(c Config) error { return ValidateTracing(c.Tracing) },
	}
	for _, v := range validators {
		if err := v(c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOutput checks output paths and the token dump format.
func ValidateOutput(out OutputConfig) error {
	if out.HTML == "" {
		return fmt.Errorf("output.html is required")
	}
	if out.Tokens == "" {
		return fmt.Errorf("output.tokens is required")
	}
	if out.HTML == out.Tokens {
		return fmt.Errorf("output.html and output.tokens must differ, both are %q", out.HTML)
	}
	if _, err := token.ParseFormat(out.TokensFormat); err != nil {
		return fmt.Errorf("output.tokens_format: %w", err)
	}
	return nil
}

// ValidateRewrite checks the rewrite strategy.
func ValidateRewrite(rw RewriteConfig) error {
	if _, err := rewrite.ParseStrategy(rw.Strategy); err != nil {
		return fmt.Errorf("rewrite.strategy: %w", err)
	}
	return nil
}

// ValidatePreview checks the glamour style and wrap width.
func ValidatePreview(p PreviewConfig) error {
	if p.Width < 0 {
		return fmt.Errorf("preview.width must not be negative, got %d", p.Width)
	}
	if p.Style == "" {
		return nil
	}
	for _, s := range PreviewStyles {
		if p.Style == s {
			return nil
		}
	}
	return fmt.Errorf("preview.style must be one of %v, got %q", PreviewStyles, p.Style)
}

// ValidateWatch checks the debounce interval.
func ValidateWatch(w WatchConfig) error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", w.Debounce)
	}
	return nil
}

// ValidateCache checks the cache expiration.
func ValidateCache(c CacheConfig) error {
	if c.Enabled && c.Expiration <= 0 {
		return fmt.Errorf("cache.expiration must be positive when the cache is enabled, got %v", c.Expiration)
	}
	return nil
}

// ValidateLog checks the log level, and the path when logging is enabled.
func ValidateLog(l LogConfig) error {
	if l.Level != "" {
		if _, err := log.ParseLevel(l.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	if l.Enabled && l.Path == "" {
		return fmt.Errorf("log.path is required when logging is enabled")
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# markspan configuration

# Markdown document to process
input: input.md

# Output files
output:
  html: output.html          # Rendered HTML
  tokens: output.json        # Token stream dump
  tokens_format: json        # "json" or "yaml"

# Inline rewrite passes, run in this order: annotation, then math
rewrite:
  annotation: true           # [@name@] -> <span class="at">name</span>
  math: true                 # $$tex$$ -> <span class="latex">tex</span>
  strategy: expand           # "expand" (rebuild children) or "splice" (in place)

# HTML rendering
render:
  escape: true               # HTML-escape captured span content
  xhtml: false               # Close void elements as <br />

# Terminal preview (markspan preview)
preview:
  style: auto                # auto, dark, light, notty, ascii, dracula, pink, tokyo-night
  width: 80                  # Word wrap column, 0 disables wrapping

# Watch mode (markspan watch)
watch:
  debounce: 100ms            # Wait for writes to settle before re-running

# In-memory result cache, keyed by a digest of the document
cache:
  enabled: true
  expiration: 10m

# Debug log file
log:
  enabled: false
  path: markspan.log
  level: info                # debug, info, warn, error

# Pipeline tracing (OpenTelemetry)
tracing:
  enabled: false
  exporter: file             # none, file, stdout, otlp
  # file_path: ~/.config/markspan/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
