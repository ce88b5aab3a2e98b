// Package parse turns embedded-system test logs (.csv, .txt, .log) into
// structured test records. Parsing is best-effort: malformed lines are
// collected as diagnostics and the run is marked partial instead of failing.
package parse

import (
	"fmt"
	"strings"
	"time"
)

// Status is the normalized outcome of a single test.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusSkip  Status = "SKIP"
	StatusError Status = "ERROR"
)

// ClassifyStatus maps a raw status token to a Status, case-insensitively.
// Common past-tense variants (PASSED, FAILED, SKIPPED) are accepted too.
func ClassifyStatus(token string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "PASS", "PASSED", "OK":
		return StatusPass, true
	case "FAIL", "FAILED":
		return StatusFail, true
	case "SKIP", "SKIPPED":
		return StatusSkip, true
	case "ERROR", "ERRORED":
		return StatusError, true
	}
	return "", false
}

// Failed reports whether the status counts as a failure for analysis purposes.
func (s Status) Failed() bool { return s == StatusFail || s == StatusError }

// Statuses returns all normalized statuses in display order.
func Statuses() []Status {
	return []Status{StatusPass, StatusFail, StatusSkip, StatusError}
}

// TestRecord is one parsed log entry. Immutable once parsed.
type TestRecord struct {
	Name      string     `json:"name"`
	Module    string     `json:"module"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Kind      string     `json:"kind,omitempty"`
}

// LineError describes one malformed line or row.
type LineError struct {
	Line   int    `json:"line"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// TestRun is the full parsed set of records from one uploaded file.
// Partial is true when any line failed to parse.
type TestRun struct {
	Records  []TestRecord `json:"records"`
	Problems []LineError  `json:"problems,omitempty"`
	Partial  bool         `json:"partial"`
}

// Modules returns the distinct module names in first-occurrence order.
func (r *TestRun) Modules() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range r.Records {
		if rec.Module == "" || seen[rec.Module] {
			continue
		}
		seen[rec.Module] = true
		out = append(out, rec.Module)
	}
	return out
}

// Kinds returns the distinct test kinds in first-occurrence order.
func (r *TestRun) Kinds() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range r.Records {
		if rec.Kind == "" || seen[rec.Kind] {
			continue
		}
		seen[rec.Kind] = true
		out = append(out, rec.Kind)
	}
	return out
}

// ParseError is a run-level parse failure (unsupported format, bad header).
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse: line %d: %s", e.Line, e.Msg)
	}
	return "parse: " + e.Msg
}
