package parse

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Line shapes emitted by the embedded test harnesses:
//
//	[2024-05-01 10:00:00] [INFO] Running test: test_boot [type=smoke]
//	[2024-05-01 10:00:03] [RESULT] test_boot [power] FAIL - Voltage out of range
var (
	infoLine = regexp.MustCompile(
		`^\[(?P<ts>[\d\-: ]+)\] \[INFO\] Running test: (?P<name>\w+) \[type=(?P<kind>\w+)\]$`)
	resultLine = regexp.MustCompile(
		`^\[(?P<ts>[\d\-: ]+)\] \[RESULT\] (?P<name>\w+) \[(?P<module>\w+)\] (?P<status>[A-Za-z]+)(?: - (?P<msg>.*))?$`)
)

// parseText parses line-oriented .txt/.log harness output. INFO lines register
// the test kind for later RESULT lines; RESULT lines yield records. Blank and
// comment lines are tolerated; unrelated log noise is skipped. Lines that
// carry a RESULT marker but do not match the shape become per-line
// diagnostics.
func parseText(r io.Reader) (*TestRun, error) {
	run := &TestRun{}
	kinds := make(map[string]string)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if m := match(infoLine, text); m != nil {
			kinds[m["name"]] = m["kind"]
			continue
		}
		if m := match(resultLine, text); m != nil {
			status, ok := ClassifyStatus(m["status"])
			if !ok {
				run.Problems = append(run.Problems, LineError{
					Line:   line,
					Text:   text,
					Reason: fmt.Sprintf("unknown status %q", m["status"]),
				})
				continue
			}
			run.Records = append(run.Records, TestRecord{
				Name:      m["name"],
				Module:    m["module"],
				Status:    status,
				Message:   m["msg"],
				Timestamp: parseTimestamp(m["ts"]),
				Kind:      kinds[m["name"]],
			})
			continue
		}

		// A RESULT marker without a matching shape is a malformed harness
		// line. Other lines (INFO chatter, debug output) are ordinary noise.
		if strings.Contains(text, "[RESULT]") {
			run.Problems = append(run.Problems, LineError{Line: line, Text: text, Reason: "malformed result line"})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: line, Msg: "read input: " + err.Error()}
	}

	run.Partial = len(run.Problems) > 0
	return run, nil
}

// match runs re against s and returns named groups, or nil on no match.
func match(re *regexp.Regexp, s string) map[string]string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}
	return groups
}
