// Package cli implements the qdsctl command tree. Configuration is merged
// in one place: flags override environment (QDS_*), which overrides the
// config file, which overrides defaults. Library packages only ever see the
// final *config.Config.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "qdsctl",
	Short:         "qdsctl searches layered light-emitting device designs",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		merged, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.Validate(merged); err != nil {
			return err
		}
		cfg = merged
		logger.SetDefault(logger.New(cfg.LogLevel, os.Stderr))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("backend", "", "evaluation backend (mock, simulator, surrogate)")
	rootCmd.PersistentFlags().Int("episodes", 0, "number of episodes")
	rootCmd.PersistentFlags().Int("steps", 0, "step budget per episode")
	rootCmd.PersistentFlags().Int64("seed", 0, "random seed")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("episodes", rootCmd.PersistentFlags().Lookup("episodes"))
	_ = viper.BindPFlag("step_budget", rootCmd.PersistentFlags().Lookup("steps"))
	_ = viper.BindPFlag("seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initViper() {
	viper.SetEnvPrefix("QDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig layers file, environment, and flags over the defaults. Zero
// flag values mean "not set" and never override the file.
func loadConfig() (*config.Config, error) {
	base := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		base = loaded
	}

	if v := viper.GetString("backend"); v != "" {
		base.Backend = v
	}
	if v := viper.GetInt("episodes"); v > 0 {
		base.Episodes = v
	}
	if v := viper.GetInt("step_budget"); v > 0 {
		base.StepBudget = v
	}
	if v := viper.GetInt64("seed"); v != 0 {
		base.Seed = v
	}
	if v := viper.GetString("log_level"); v != "" {
		base.LogLevel = v
	}
	return base, nil
}
