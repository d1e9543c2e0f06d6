package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbrouter/kbrouter/config"
	"github.com/kbrouter/kbrouter/log"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *log.GologLogger
)

var rootCmd = &cobra.Command{
	Use:   "kbrouter",
	Short: "Question answering over a SQL database and a document knowledge base",
	Long: `kbrouter turns natural-language questions into SQL, repairs failing
statements, and routes questions the database cannot answer to a knowledge
base built from uploaded documents.

Examples:
  # Serve the HTTP API
  kbrouter serve --config kbrouter.yaml

  # Ask one question
  kbrouter ask "How many cars were made in 2020?"

  # Interactive session
  kbrouter ask

  # Add documents to the knowledge base
  kbrouter ingest handbook.pdf faq.md
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		level, err := log.ParseLevel(loaded.Log.Level)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = log.NewGologLoggerWithLevel(level)
		log.SetDefaultLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: kbrouter.yaml in ., ./config or ~/.kbrouter)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error, none)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
