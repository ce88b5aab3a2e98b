// Package report renders analysis results into Markdown, HTML, and PDF.
// Sections render independently: a failing section becomes a one-line note
// and never blocks the rest of the document.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

// Data is everything a report is built from. RootCause may be nil when the
// user never requested an analysis.
type Data struct {
	GeneratedAt time.Time
	Source      string
	Summary     *summarize.Result
	RootCause   *rootcause.Result
}

// Options controls Markdown rendering.
type Options struct {
	// ForPDF switches error tables to bullet lists and strips non-ASCII
	// characters, which the PDF printer renders unreliably.
	ForPDF bool
	// EmbedChart inlines the SVG failure chart as a raw HTML block.
	// Used on the HTML/PDF path; plain .md downloads keep text bars.
	EmbedChart bool
}

// Markdown renders the full report document. It always returns a non-empty
// document, even when every LLM-backed section is degraded.
func Markdown(d *Data, opts Options) string {
	var b strings.Builder

	b.WriteString("# Testwise Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", d.GeneratedAt.Format("2006-01-02 15:04:05"))
	if d.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n\n", escapeMarkdown(d.Source))
	}

	writeSection(&b, "Summary", func() (string, error) { return summarySection(d) })
	writeSection(&b, "Results by Module", func() (string, error) { return moduleSection(d) })
	writeSection(&b, "Top Failing Errors", func() (string, error) { return errorsSection(d, opts) })
	writeSection(&b, "Failure Distribution", func() (string, error) { return chartSection(d, opts) })
	writeSection(&b, "LLM Summary", func() (string, error) { return narrativeSection(d) })
	writeSection(&b, "Root Cause Suggestions", func() (string, error) { return rootCauseSection(d) })

	out := b.String()
	if opts.ForPDF {
		out = asciiOnly(out)
	}
	return out
}

// writeSection renders one isolated section. An error is reduced to a note so
// the remaining sections still render.
func writeSection(b *strings.Builder, title string, render func() (string, error)) {
	fmt.Fprintf(b, "## %s\n\n", title)
	content, err := render()
	if err != nil {
		fmt.Fprintf(b, "_Section unavailable: %s_\n\n", err)
	} else if content != "" {
		b.WriteString(content)
		if !strings.HasSuffix(content, "\n\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("---\n\n")
}

func summarySection(d *Data) (string, error) {
	if d.Summary == nil {
		return "", fmt.Errorf("no summary computed")
	}
	agg := &d.Summary.Aggregate
	var b strings.Builder
	fmt.Fprintf(&b, "- Total Tests: **%d**\n", agg.Total)
	fmt.Fprintf(&b, "- Passed: **%d**\n", agg.Passed())
	fmt.Fprintf(&b, "- Failed: **%d**\n", agg.Failed())
	fmt.Fprintf(&b, "- Skipped: **%d**\n", agg.Skipped())
	if agg.Partial {
		b.WriteString("\n_Input was only partially parsed; counts cover the readable lines._\n")
	}
	return b.String(), nil
}

func moduleSection(d *Data) (string, error) {
	if d.Summary == nil {
		return "", fmt.Errorf("no summary computed")
	}
	if len(d.Summary.ByModule) == 0 {
		return "No module information in this run.\n", nil
	}
	var b strings.Builder
	b.WriteString("| Module | Tests |\n")
	b.WriteString("|--------|-------|\n")
	for _, mod := range sortedKeys(d.Summary.ByModule) {
		fmt.Fprintf(&b, "| %s | %d |\n", escapeMarkdown(mod), d.Summary.ByModule[mod])
	}
	return b.String(), nil
}

func errorsSection(d *Data, opts Options) (string, error) {
	if d.Summary == nil {
		return "", fmt.Errorf("no summary computed")
	}
	if len(d.Summary.Errors) == 0 {
		return "No failures recorded.\n", nil
	}

	var b strings.Builder
	if opts.ForPDF {
		for _, e := range d.Summary.Errors {
			fmt.Fprintf(&b, "- **%s**: %d failures\n", displayMessage(e.Message), e.Count)
		}
		return b.String(), nil
	}

	b.WriteString("| Error | Count |\n")
	b.WriteString("|-------|-------|\n")
	for _, e := range d.Summary.Errors {
		fmt.Fprintf(&b, "| %s | %d |\n", escapeMarkdown(displayMessage(e.Message)), e.Count)
	}
	return b.String(), nil
}

func chartSection(d *Data, opts Options) (string, error) {
	if d.Summary == nil || len(d.Summary.Errors) == 0 {
		return "No failures to chart.\n", nil
	}
	if opts.EmbedChart {
		svg, err := ChartSVG(d.Summary.Errors)
		if err != nil {
			return "_Chart unavailable._\n", nil
		}
		return svg + "\n", nil
	}
	return textBars(d.Summary.Errors), nil
}

func narrativeSection(d *Data) (string, error) {
	if d.Summary == nil {
		return "", fmt.Errorf("no summary computed")
	}
	if d.Summary.Degraded || d.Summary.Narrative == "" {
		return fmt.Sprintf("_LLM summary unavailable (%s). Aggregate counts above are complete._\n",
			reasonOrDefault(d.Summary.Reason)), nil
	}
	return d.Summary.Narrative + "\n", nil
}

func rootCauseSection(d *Data) (string, error) {
	if d.RootCause == nil {
		return "_Root cause analysis was not requested for this run._\n", nil
	}
	if len(d.RootCause.Failures) == 0 {
		return "No failures to analyze.\n", nil
	}
	if d.RootCause.Degraded || d.RootCause.Analysis == "" {
		var b strings.Builder
		fmt.Fprintf(&b, "_Root cause suggestions unavailable (%s). Top failures:_\n\n",
			reasonOrDefault(d.RootCause.Reason))
		for _, f := range d.RootCause.Failures {
			fmt.Fprintf(&b, "- **%s** (%d occurrences)\n", displayMessage(f.Message), f.Count)
		}
		return b.String(), nil
	}
	return d.RootCause.Analysis + "\n", nil
}

// textBars renders a proportional text bar chart for plain Markdown output.
func textBars(errs []summarize.ErrorCount) string {
	const width = 30
	maxCount := errs[0].Count
	for _, e := range errs {
		if e.Count > maxCount {
			maxCount = e.Count
		}
	}

	var b strings.Builder
	b.WriteString("```\n")
	for _, e := range errs {
		bar := (e.Count*width + maxCount - 1) / maxCount
		fmt.Fprintf(&b, "%-40s %s %d\n", truncate(displayMessage(e.Message), 40), strings.Repeat("#", bar), e.Count)
	}
	b.WriteString("```\n")
	return b.String()
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "not available"
	}
	return reason
}

func displayMessage(msg string) string {
	if msg == "" {
		return "(no message)"
	}
	return msg
}

// escapeMarkdown escapes pipe characters which break tables.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// asciiOnly drops emoji and other non-ASCII runes which the PDF pipeline
// renders as boxes.
func asciiOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
