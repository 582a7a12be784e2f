package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HyperAfnan/hypr-switcher/internal/config"
	"github.com/HyperAfnan/hypr-switcher/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "hyprswitcher",
		Short: "hyprswitcher - Alt-Tab window switcher for Hyprland",
		Long: `hyprswitcher is an Alt-Tab style window switcher for the Hyprland
compositor. The first invocation becomes the primary instance and shows the
switcher; repeated invocations while it is open step through the window
list. Releasing Alt focuses the selected window.

Bind it in hyprland.conf:
  bind = ALT, Tab, exec, hyprswitcher
  bind = ALT SHIFT, Tab, exec, hyprswitcher run --backward`,
		RunE: runRun,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/hyprswitcher/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human-readable log output")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// The root command doubles as `run`, so the flag must exist on both.
	rootCmd.Flags().Bool("backward", false, "cycle backward instead of forward")
}

// loadConfig builds the config manager and initializes logging from the
// merged config + flag values.
func loadConfig() (*config.Manager, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := mgr.Get()
	level := cfg.LogLevel
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		level = viper.GetString("log_level")
	}
	pretty := cfg.LogPretty
	if viper.IsSet("log_pretty") && viper.GetBool("log_pretty") {
		pretty = true
	}
	logger.Init(level, pretty)
	return mgr, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
