package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"testwise/internal/parse"
	"testwise/internal/report"
	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

var analyzeFlags struct {
	output string
	pdf    bool
	top    int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <logfile>",
	Short: "Parse a test log and write a summarized report",
	Long: `Parse a .txt, .log, or .csv test log, aggregate results, and write a
Markdown report with an LLM summary and root cause suggestions.

Usage:
  testwise analyze run.log                  # report to stdout
  testwise analyze run.csv -o report.md     # report to file
  testwise analyze run.log -o report.pdf --pdf

The LLM API key is read from TESTWISE_API_KEY (or OPENAI_API_KEY). Without
a key, or with TESTWISE_NO_LLM=1, the report still contains all aggregate
counts and ranked failures; only the prose sections are omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFlags.output, "output", "o", "", "Output path (default: stdout)")
	f.BoolVar(&analyzeFlags.pdf, "pdf", false, "Render the report as PDF (requires a Chrome/Chromium binary)")
	f.IntVar(&analyzeFlags.top, "top", 0, "Number of failure groups to analyze (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFlags.pdf && analyzeFlags.output == "" {
		return fmt.Errorf("--pdf requires --output")
	}

	run, err := parse.ParseFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	completer := newCompleter()

	summary := summarize.SummarizeChunked(ctx, completer, run, cfg.ChunkSize)

	top := analyzeFlags.top
	if top <= 0 {
		top = cfg.TopFailures
	}
	rc := rootcause.Analyze(ctx, completer, run, top)

	data := &report.Data{
		GeneratedAt: time.Now(),
		Source:      filepath.Base(args[0]),
		Summary:     summary,
		RootCause:   rc,
	}

	if analyzeFlags.pdf {
		return writePDF(ctx, cmd, data)
	}

	md := report.Markdown(data, report.Options{})
	if analyzeFlags.output == "" {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	if err := os.WriteFile(analyzeFlags.output, []byte(md), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to: %s\n", analyzeFlags.output)
	return nil
}

func writePDF(ctx context.Context, cmd *cobra.Command, data *report.Data) error {
	md := report.Markdown(data, report.Options{ForPDF: true, EmbedChart: true})
	htmlDoc, err := report.HTML(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	pdf, err := report.PDF(ctx, htmlDoc)
	if err != nil {
		mdPath := strings.TrimSuffix(analyzeFlags.output, ".pdf") + ".md"
		if werr := os.WriteFile(mdPath, []byte(report.Markdown(data, report.Options{})), 0644); werr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "PDF rendering failed (%v); Markdown written to: %s\n", err, mdPath)
			return nil
		}
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.WriteFile(analyzeFlags.output, pdf, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to: %s\n", analyzeFlags.output)
	return nil
}
