package parse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Required CSV header columns. Order in the file does not matter.
var csvColumns = []string{"timestamp", "test_case", "module", "status", "error", "test_type"}

// parseCSV parses a header + rows CSV export. A header missing any required
// column is a run-level error; malformed rows become per-line diagnostics.
func parseCSV(r io.Reader) (*TestRun, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Msg: "empty CSV file"}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Msg: "read header: " + err.Error()}
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	var missing []string
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Line: 1, Msg: "missing expected columns: " + strings.Join(missing, ", ")}
	}

	run := &TestRun{}
	line := 1
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			run.Problems = append(run.Problems, LineError{Line: line, Reason: err.Error()})
			continue
		}

		field := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		name := field("test_case")
		if name == "" {
			run.Problems = append(run.Problems, LineError{Line: line, Reason: "empty test_case"})
			continue
		}
		status, ok := ClassifyStatus(field("status"))
		if !ok {
			run.Problems = append(run.Problems, LineError{
				Line:   line,
				Text:   name,
				Reason: fmt.Sprintf("unknown status %q", field("status")),
			})
			continue
		}

		run.Records = append(run.Records, TestRecord{
			Name:      name,
			Module:    field("module"),
			Status:    status,
			Message:   field("error"),
			Timestamp: parseTimestamp(field("timestamp")),
			Kind:      field("test_type"),
		})
	}

	run.Partial = len(run.Problems) > 0
	return run, nil
}
