// arbiter validates decision-matrix documents produced by an external
// generator, computes weighted-sum rankings with sensitivity analysis, and
// when a document fails validation drives a bounded self-correction loop
// that asks the generator to fix its own output.
package main

import (
	"fmt"
	"os"
	"time"

	"arbiter/internal/config"
	"arbiter/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	maxAttempts int
	timeout     time.Duration
	difficulty  int
	dbPath      string

	// Loaded config and logger, set by the persistent pre-run.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "arbiter - decision-matrix validation and self-correction pipeline",
	Long: `arbiter takes untrusted decision-matrix documents, validates them into a
strict domain model, and computes weighted-sum rankings with sensitivity
analysis. When validation fails, the failure is classified and an optional
regeneration loop asks the generator to correct its own output under a
bounded attempt budget and hard per-attempt deadline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg = zap.NewDevelopmentConfig()
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.SetLogger(logger)

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// Flag values override the config file when set.
		if cmd.Flags().Changed("max-attempts") {
			cfg.Stabilization.MaxAttempts = maxAttempts
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Stabilization.Timeout = timeout.String()
		}
		if cmd.Flags().Changed("difficulty") {
			cfg.Stabilization.Difficulty = difficulty
		}
		if cmd.Flags().Changed("db") {
			cfg.Store.Path = dbPath
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".arbiter/config.yaml", "config file path")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "max-attempts", 3, "stabilization attempt budget")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-attempt regenerate deadline")
	rootCmd.PersistentFlags().IntVar(&difficulty, "difficulty", 1, "task difficulty (scales fracture severity)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "evaluation journal path")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
