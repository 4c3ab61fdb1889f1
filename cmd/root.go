package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/tracing"
)

// localConfigPath is the project config, checked before the user config.
const localConfigPath = ".markspan/config.yaml"

var (
	version   = "dev"
	cfgFile     string
	debugFlag   bool
	verboseFlag bool
	cfg       config.Config
	cfgErr    error

	provider   *tracing.Provider
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "markspan",
	Short: "Render Markdown with annotation and math spans",
	Long: `markspan parses a Markdown document, rewrites [@name@] annotation spans and
$$tex$$ math spans into dedicated tokens, and writes two outputs: the
rendered HTML and a dump of the token stream.

With no subcommand it reads input.md and writes output.html and output.json.
Paths and behavior can be changed in .markspan/config.yaml or
~/.config/markspan/config.yaml.

Examples:
  markspan                          # input.md -> output.html, output.json
  markspan -i notes.md --html notes.html
  markspan --format yaml --tokens tokens.yaml
  markspan --strategy splice        # use the in-place splice rewrite`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runBuild,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .markspan/config.yaml, then ~/.config/markspan/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (to log.path, or debug.log)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"write logs to stderr instead of a file")
	rootCmd.PersistentFlags().StringP("input", "i", "", "Markdown document to process")
	rootCmd.PersistentFlags().String("strategy", "", `rewrite strategy: "expand" or "splice"`)
	rootCmd.PersistentFlags().Bool("raw", false, "embed captured span content without HTML escaping")
	rootCmd.Flags().String("html", "", "HTML output file")
	rootCmd.Flags().String("tokens", "", "token stream output file")
	rootCmd.Flags().String("format", "", `token stream format: "json" or "yaml"`)

	// Bind flags to viper
	_ = viper.BindPFlag("input", rootCmd.PersistentFlags().Lookup("input"))
	_ = viper.BindPFlag("rewrite.strategy", rootCmd.PersistentFlags().Lookup("strategy"))
	_ = viper.BindPFlag("output.html", rootCmd.Flags().Lookup("html"))
	_ = viper.BindPFlag("output.tokens", rootCmd.Flags().Lookup("tokens"))
	_ = viper.BindPFlag("output.tokens_format", rootCmd.Flags().Lookup("format"))
}

func initConfig() {
	cfg, cfgErr = loadConfig(viper.GetViper(), cfgFile)
}

// setDefaults registers config.Defaults with v so that unset keys, bound
// flags without a value and partial config files all resolve.
func setDefaults(v *viper.Viper) {
	defaults := config.Defaults()
	v.SetDefault("input", defaults.Input)
	v.SetDefault("output.html", defaults.Output.HTML)
	v.SetDefault("output.tokens", defaults.Output.Tokens)
	v.SetDefault("output.tokens_format", defaults.Output.TokensFormat)
	v.SetDefault("rewrite.annotation", defaults.Rewrite.Annotation)
	v.SetDefault("rewrite.math", defaults.Rewrite.Math)
	v.SetDefault("rewrite.strategy", defaults.Rewrite.Strategy)
	v.SetDefault("render.escape", defaults.Render.Escape)
	v.SetDefault("render.xhtml", defaults.Render.XHTML)
	v.SetDefault("preview.style", defaults.Preview.Style)
	v.SetDefault("preview.width", defaults.Preview.Width)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.expiration", defaults.Cache.Expiration)
	v.SetDefault("log.enabled", defaults.Log.Enabled)
	v.SetDefault("log.path", defaults.Log.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
}

// loadConfig resolves the config file and decodes it over the defaults.
// A missing config file is not an error unless path names it explicitly.
func loadConfig(v *viper.Viper, path string) (config.Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Config lookup order:
		// 1. .markspan/config.yaml (current directory)
		// 2. ~/.config/markspan/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "markspan"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return config.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// configPath returns the config file commands should edit.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return localConfigPath
}

// setup validates the config and starts logging and tracing.
func setup(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		cfg.Render.Escape = false
	}
	if cfg.Tracing.FilePath == "" {
		cfg.Tracing.FilePath = config.DefaultTracesFilePath()
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	debug := debugFlag || os.Getenv("MARKSPAN_DEBUG") != ""
	if err := initLogging(cfg.Log, debug, verboseFlag, cmd.ErrOrStderr()); err != nil {
		return err
	}

	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.Exporter = cfg.Tracing.Exporter
	tc.FilePath = cfg.Tracing.FilePath
	if cfg.Tracing.OTLPEndpoint != "" {
		tc.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	}
	if cfg.Tracing.SampleRate > 0 {
		tc.SampleRate = cfg.Tracing.SampleRate
	}
	p, err := tracing.NewProvider(tc)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	provider = p

	log.Info(log.CatConfig, "markspan starting",
		"version", version, "config", viper.ConfigFileUsed(), "input", cfg.Input,
		"tracing", provider.Enabled())
	return nil
}

// initLogging starts the global logger. Verbose logging goes to stderr and
// takes precedence over the log file.
func initLogging(lc config.LogConfig, debug, verbose bool, stderr io.Writer) error {
	if !lc.Enabled && !debug && !verbose {
		return nil
	}

	level := log.LevelInfo
	if lc.Level != "" {
		parsed, err := log.ParseLevel(lc.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	if debug {
		level = log.LevelDebug
	}

	if verbose {
		log.InitWriter(stderr)
	} else {
		path := lc.Path
		if path == "" {
			path = "debug.log"
		}
		cleanup, err := log.Init(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logCleanup = cleanup
	}
	log.SetMinLevel(level)
	return nil
}

// teardown flushes traces and closes the log file.
func teardown(_ *cobra.Command, _ []string) error {
	if provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "Failed to flush traces", err)
		}
		provider = nil
	}
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return nil
}

func runBuild(cmd *cobra.Command, _ []string) error {
	p, err := newPipeline(cfg, provider.Tracer())
	if err != nil {
		return err
	}
	_, err = build(cmd.Context(), cfg, p, cmd.OutOrStdout())
	return err
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
