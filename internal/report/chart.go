package report

import (
	"fmt"
	"html"
	"strings"

	"testwise/internal/summarize"
)

// Chart geometry. Bars are horizontal so long error messages stay readable.
const (
	chartWidth  = 640
	barHeight   = 22
	barGap      = 6
	labelWidth  = 260
	chartMargin = 10
	maxBars     = 10
)

// ChartSVG renders a horizontal bar chart of failure counts as inline SVG.
// At most maxBars groups are drawn.
func ChartSVG(errs []summarize.ErrorCount) (string, error) {
	if len(errs) == 0 {
		return "", fmt.Errorf("chart: no data")
	}
	if len(errs) > maxBars {
		errs = errs[:maxBars]
	}

	maxCount := 0
	for _, e := range errs {
		if e.Count > maxCount {
			maxCount = e.Count
		}
	}
	if maxCount == 0 {
		return "", fmt.Errorf("chart: all counts are zero")
	}

	height := chartMargin*2 + len(errs)*(barHeight+barGap)
	barSpan := chartWidth - labelWidth - 60 - chartMargin*2

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-label="Failure distribution">`,
		chartWidth, height, chartWidth, height)
	b.WriteString(`<style>text{font:12px sans-serif;fill:#333}</style>`)

	y := chartMargin
	for _, e := range errs {
		w := e.Count * barSpan / maxCount
		if w < 2 {
			w = 2
		}
		label := truncate(displayMessage(e.Message), 38)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end">%s</text>`,
			chartMargin+labelWidth-8, y+barHeight-7, html.EscapeString(label))
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="#c0392b" rx="2"/>`,
			chartMargin+labelWidth, y, w, barHeight)
		fmt.Fprintf(&b, `<text x="%d" y="%d">%d</text>`,
			chartMargin+labelWidth+w+6, y+barHeight-7, e.Count)
		y += barHeight + barGap
	}
	b.WriteString(`</svg>`)
	return b.String(), nil
}
