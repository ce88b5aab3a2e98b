package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testwise/internal/config"
	"testwise/internal/llm"
	"testwise/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is loaded once in the persistent pre-run and shared by all subcommands.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "testwise",
	Short: "Analyze embedded-system test logs and generate summarized reports",
	Long: "Testwise parses embedded-system test logs (.txt, .log, .csv) into structured\n" +
		"records, aggregates pass/fail statistics, and produces LLM-assisted summaries\n" +
		"and root cause suggestions as Markdown or PDF reports.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(rootFlags.configPath)
		if err != nil {
			return err
		}
		if rootFlags.logLevel != "" {
			cfg.LogLevel = rootFlags.logLevel
		}
		if rootFlags.logFormat != "" {
			cfg.LogFormat = rootFlags.logFormat
		}
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logging.Init(level, cfg.LogFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "testwise.yaml", "Path to config file (missing file uses defaults)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = version
}

// newCompleter builds the LLM client from config and environment, or returns
// nil when no API key is configured. Callers treat nil as "degrade locally".
func newCompleter() llm.Completer {
	key := llm.APIKeyFromEnv()
	if key == "" || llm.Disabled() {
		return nil
	}
	opts := []llm.Option{
		llm.WithModel(cfg.Model),
		llm.WithTimeout(cfg.RequestTimeout.Std()),
	}
	if cfg.APIBaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.APIBaseURL))
	}
	client, err := llm.New(key, opts...)
	if err != nil {
		logging.New("cli").Warn("llm client unavailable", "error", err)
		return nil
	}
	return client
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
