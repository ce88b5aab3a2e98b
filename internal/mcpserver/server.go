// Package mcpserver exposes the log analysis pipeline as MCP tools over
// stdio, so agent clients can upload a log path and pull summaries, root
// cause suggestions, and rendered reports.
package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"testwise/internal/config"
	"testwise/internal/llm"
	"testwise/internal/logging"
	"testwise/internal/parse"
	"testwise/internal/report"
	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

// DefaultRunTTL bounds how long an analyzed run stays addressable.
var DefaultRunTTL = 30 * time.Minute

type runEntry struct {
	id        string
	source    string
	run       *parse.TestRun
	createdAt time.Time

	mu      sync.Mutex
	summary *summarize.Result
}

// Server wraps the MCP SDK server and keeps analyzed runs in memory.
type Server struct {
	MCPServer *sdkmcp.Server

	cfg       config.Config
	completer llm.Completer

	mu   sync.Mutex
	runs map[string]*runEntry
	now  func() time.Time
}

// NewServer creates an MCP server with the log analysis tools registered.
// completer may be nil; LLM-backed tools then report degraded results.
func NewServer(cfg config.Config, completer llm.Completer) *Server {
	s := &Server{
		cfg:       cfg,
		completer: completer,
		runs:      make(map[string]*runEntry),
		now:       time.Now,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "testwise", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyze_log",
		Description: "Parse a test log file (.txt, .log, .csv) into structured records and return aggregate counts plus a run ID for follow-up tools.",
	}, s.handleAnalyzeLog)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "summarize_run",
		Description: "Generate an LLM prose summary of an analyzed run. Falls back to counts-only output when the LLM is unavailable.",
	}, s.handleSummarizeRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "root_cause",
		Description: "Rank the most frequent failures of an analyzed run and suggest likely causes and fixes for each.",
	}, s.handleRootCause)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "generate_report",
		Description: "Render the full Markdown report for an analyzed run, optionally writing it to a file.",
	}, s.handleGenerateReport)
}

// Run serves MCP over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// --- Tool input/output types ---

type analyzeLogInput struct {
	Path string `json:"path" jsonschema:"path to a .txt, .log, or .csv test log file"`
}

type analyzeLogOutput struct {
	RunID    string         `json:"run_id"`
	Source   string         `json:"source"`
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	ByModule map[string]int `json:"by_module,omitempty"`
	Partial  bool           `json:"partial"`
	Problems int            `json:"problems"`
}

type summarizeRunInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from analyze_log"`
}

type summarizeRunOutput struct {
	Narrative string `json:"narrative,omitempty"`
	Degraded  bool   `json:"degraded"`
	Reason    string `json:"reason,omitempty"`
	Total     int    `json:"total"`
	Failed    int    `json:"failed"`
}

type rootCauseInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from analyze_log"`
	Top   int    `json:"top,omitempty" jsonschema:"number of failure groups to analyze (default 5)"`
}

type rootCauseOutput struct {
	Failures []rootcause.Failure `json:"failures"`
	Analysis string              `json:"analysis,omitempty"`
	Degraded bool                `json:"degraded"`
	Reason   string              `json:"reason,omitempty"`
}

type generateReportInput struct {
	RunID      string `json:"run_id" jsonschema:"run ID from analyze_log"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"optional file path to write the Markdown report to"`
}

type generateReportOutput struct {
	Markdown   string `json:"markdown,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	Bytes      int    `json:"bytes"`
}

// --- Tool handlers ---

func (s *Server) handleAnalyzeLog(ctx context.Context, _ *sdkmcp.CallToolRequest, input analyzeLogInput) (*sdkmcp.CallToolResult, analyzeLogOutput, error) {
	logger := logging.New("mcp")
	if input.Path == "" {
		return nil, analyzeLogOutput{}, fmt.Errorf("path is required")
	}

	run, err := parse.ParseFile(input.Path)
	if err != nil {
		return nil, analyzeLogOutput{}, fmt.Errorf("analyze_log: %w", err)
	}

	entry := &runEntry{
		id:        uuid.NewString(),
		source:    filepath.Base(input.Path),
		run:       run,
		createdAt: s.now(),
	}
	s.mu.Lock()
	s.evictLocked()
	s.runs[entry.id] = entry
	s.mu.Unlock()

	agg := summarize.Compute(run)
	logger.Info("log analyzed",
		"run_id", entry.id,
		"source", entry.source,
		"records", agg.Total,
		"problems", len(run.Problems))

	return nil, analyzeLogOutput{
		RunID:    entry.id,
		Source:   entry.source,
		Total:    agg.Total,
		Passed:   agg.Passed(),
		Failed:   agg.Failed(),
		Skipped:  agg.Skipped(),
		ByModule: agg.ByModule,
		Partial:  run.Partial,
		Problems: len(run.Problems),
	}, nil
}

func (s *Server) handleSummarizeRun(ctx context.Context, _ *sdkmcp.CallToolRequest, input summarizeRunInput) (*sdkmcp.CallToolResult, summarizeRunOutput, error) {
	entry, err := s.getRun(input.RunID)
	if err != nil {
		return nil, summarizeRunOutput{}, err
	}

	entry.mu.Lock()
	if entry.summary == nil {
		entry.summary = summarize.SummarizeChunked(ctx, s.completer, entry.run, s.cfg.ChunkSize)
	}
	result := entry.summary
	entry.mu.Unlock()

	return nil, summarizeRunOutput{
		Narrative: result.Narrative,
		Degraded:  result.Degraded,
		Reason:    result.Reason,
		Total:     result.Aggregate.Total,
		Failed:    result.Aggregate.Failed(),
	}, nil
}

func (s *Server) handleRootCause(ctx context.Context, _ *sdkmcp.CallToolRequest, input rootCauseInput) (*sdkmcp.CallToolResult, rootCauseOutput, error) {
	entry, err := s.getRun(input.RunID)
	if err != nil {
		return nil, rootCauseOutput{}, err
	}

	top := input.Top
	if top <= 0 {
		top = s.cfg.TopFailures
	}
	result := rootcause.Analyze(ctx, s.completer, entry.run, top)

	return nil, rootCauseOutput{
		Failures: result.Failures,
		Analysis: result.Analysis,
		Degraded: result.Degraded,
		Reason:   result.Reason,
	}, nil
}

func (s *Server) handleGenerateReport(ctx context.Context, _ *sdkmcp.CallToolRequest, input generateReportInput) (*sdkmcp.CallToolResult, generateReportOutput, error) {
	entry, err := s.getRun(input.RunID)
	if err != nil {
		return nil, generateReportOutput{}, err
	}

	entry.mu.Lock()
	if entry.summary == nil {
		entry.summary = summarize.SummarizeChunked(ctx, s.completer, entry.run, s.cfg.ChunkSize)
	}
	summary := entry.summary
	entry.mu.Unlock()

	rc := rootcause.Analyze(ctx, s.completer, entry.run, s.cfg.TopFailures)

	md := report.Markdown(&report.Data{
		GeneratedAt: s.now(),
		Source:      entry.source,
		Summary:     summary,
		RootCause:   rc,
	}, report.Options{})

	out := generateReportOutput{Bytes: len(md)}
	if input.OutputPath != "" {
		if err := os.WriteFile(input.OutputPath, []byte(md), 0644); err != nil {
			return nil, generateReportOutput{}, fmt.Errorf("write report: %w", err)
		}
		out.OutputPath = input.OutputPath
	} else {
		out.Markdown = md
	}
	return nil, out, nil
}

// RunCount reports the number of live analyzed runs.
func (s *Server) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	return len(s.runs)
}

func (s *Server) getRun(id string) (*runEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()

	entry, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("unknown run_id %q (call analyze_log first)", id)
	}
	return entry, nil
}

func (s *Server) evictLocked() {
	cutoff := s.now().Add(-DefaultRunTTL)
	for id, entry := range s.runs {
		if entry.createdAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}
