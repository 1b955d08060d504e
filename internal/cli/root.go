package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	log      logger.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Circuit diagram catalog search with guided narrowing",
	Long: `chatbot loads a CSV catalog of circuit diagrams, builds a keyword index
over brands, models, ECU types and components, and answers free-text requests
by narrowing large result sets through a short multiple-choice dialogue.

Example usage:
  chatbot index ./catalog                  # Parse the catalog and snapshot it
  chatbot query -q "Sany SY215 fuse box"   # One-shot search
  chatbot chat                             # Interactive dialogue
  chatbot serve                            # HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// .env is optional
		_ = godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.ApplyEnv()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		log = logger.NewZapLogger(logger.Options{
			Level:    cfg.Logging.Level,
			FilePath: cfg.Logging.File,
			JSON:     cfg.Logging.JSON,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./chatbot.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "catalog directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

func GetLogger() logger.ILogger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}
