package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/styles"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the markspan config file",
	// Config commands must work while the current config is invalid.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default config file",
	Long: `Write a commented config file with every setting at its default.
The default location is .markspan/config.yaml in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := localConfigPath
		if cfgFile != "" {
			path = cfgFile
		}
		if len(args) == 1 {
			path = args[0]
		}
		if err := initConfigFile(path, configForce); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessStyle.Render("✓")+" wrote "+path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting, keeping comments",
	Long: `Change one setting in the config file. Comments and key order are kept.
The result is validated before it is written.

Examples:
  markspan config set rewrite.strategy splice
  markspan config set output.tokens_format yaml
  markspan config set watch.debounce 250ms`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.SaveValue(path, args[0], args[1], checkConfig); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessStyle.Render("✓")+" "+args[0]+" = "+args[1]+" "+styles.MutedStyle.Render(path))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable config keys",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, k := range config.Keys() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), k)
		}
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configSetCmd, configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

// initConfigFile writes the default config to path. An existing file is
// only replaced when force is set.
func initConfigFile(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.WriteDefaultConfig(path)
}

// checkConfig decodes a candidate config file over the defaults and
// validates it.
func checkConfig(data []byte) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
