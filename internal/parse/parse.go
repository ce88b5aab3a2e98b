package parse

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a supported log file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// timeLayout matches timestamps produced by the embedded test harnesses.
const timeLayout = "2006-01-02 15:04:05"

// DetectFormat resolves a file name to a Format based on its extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".txt", ".log":
		return FormatText, nil
	}
	return "", &ParseError{Msg: "unsupported file type: " + filepath.Base(name)}
}

// Parse reads raw log content in the given format and returns a TestRun.
// Per-line problems do not abort the parse; they are collected on the run
// and Partial is set. A non-nil error means nothing usable was parsed
// (unreadable input, missing CSV header columns).
func Parse(r io.Reader, format Format) (*TestRun, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatText:
		return parseText(r)
	}
	return nil, &ParseError{Msg: "unsupported format: " + string(format)}
}

// ParseFile opens path, detects the format from its extension, and parses it.
func ParseFile(path string) (*TestRun, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, format)
}

// parseTimestamp parses a harness timestamp. Unparseable values yield nil;
// a missing timestamp is not worth failing a record over.
func parseTimestamp(s string) *time.Time {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}
