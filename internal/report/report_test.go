package report

import (
	"strings"
	"testing"
	"time"

	"testwise/internal/parse"
	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

func sampleData() *Data {
	run := &parse.TestRun{Records: []parse.TestRecord{
		{Name: "t1", Module: "power", Status: parse.StatusPass},
		{Name: "t2", Module: "sensor", Status: parse.StatusFail, Message: "ADC timeout"},
		{Name: "t3", Module: "sensor", Status: parse.StatusFail, Message: "ADC timeout"},
		{Name: "t4", Module: "comm", Status: parse.StatusError, Message: "bus | fault"},
	}}
	return &Data{
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Source:      "nightly.log",
		Summary: &summarize.Result{
			Aggregate: *summarize.Compute(run),
			Narrative: "sensor issues dominate 🚨",
		},
		RootCause: &rootcause.Result{
			Failures: rootcause.TopFailures(run, 5),
			Analysis: "- **Error:** ADC timeout\n  - **Likely Cause:** clock drift",
		},
	}
}

func TestMarkdown_AllSections(t *testing.T) {
	md := Markdown(sampleData(), Options{})
	for _, want := range []string{
		"# Testwise Report",
		"**Generated:** 2024-05-01 12:00:00",
		"**Source:** nightly.log",
		"## Summary",
		"- Total Tests: **4**",
		"- Passed: **1**",
		"- Failed: **3**",
		"## Results by Module",
		"| comm | 1 |",
		"## Top Failing Errors",
		"| ADC timeout | 2 |",
		"## Failure Distribution",
		"## LLM Summary",
		"sensor issues dominate",
		"## Root Cause Suggestions",
		"**Likely Cause:** clock drift",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdown_EscapesTableBreakers(t *testing.T) {
	md := Markdown(sampleData(), Options{})
	if !strings.Contains(md, `bus \| fault`) {
		t.Error("pipe in error message should be escaped in tables")
	}
}

func TestMarkdown_DegradedSectionsStillProduceDocument(t *testing.T) {
	d := sampleData()
	d.Summary.Narrative = ""
	d.Summary.Degraded = true
	d.Summary.Reason = "chat completion: HTTP 429"
	d.RootCause.Analysis = ""
	d.RootCause.Degraded = true
	d.RootCause.Reason = "chat completion: HTTP 429"

	md := Markdown(d, Options{})
	if md == "" {
		t.Fatal("degraded report must not be empty")
	}
	if !strings.Contains(md, "LLM summary unavailable") {
		t.Error("expected degradation note in LLM Summary section")
	}
	if !strings.Contains(md, "Root cause suggestions unavailable") {
		t.Error("expected degradation note in Root Cause section")
	}
	// Deterministic sections are unaffected.
	if !strings.Contains(md, "- Total Tests: **4**") {
		t.Error("aggregate counts should survive degradation")
	}
}

func TestMarkdown_NoSummary(t *testing.T) {
	md := Markdown(&Data{GeneratedAt: time.Now()}, Options{})
	if md == "" {
		t.Fatal("report must not be empty")
	}
	if !strings.Contains(md, "Section unavailable") {
		t.Error("expected unavailable notes for missing summary")
	}
}

func TestMarkdown_ForPDFStripsNonASCII(t *testing.T) {
	md := Markdown(sampleData(), Options{ForPDF: true})
	if strings.Contains(md, "🚨") {
		t.Error("PDF output should strip emoji")
	}
	// Error tables become bullet lists for PDF.
	if !strings.Contains(md, "- **ADC timeout**: 2 failures") {
		t.Error("expected bullet list errors for PDF output")
	}
}

func TestMarkdown_EmbedChart(t *testing.T) {
	md := Markdown(sampleData(), Options{EmbedChart: true})
	if !strings.Contains(md, "<svg") {
		t.Error("expected inline SVG chart when EmbedChart is set")
	}
}

func TestChartSVG(t *testing.T) {
	svg, err := ChartSVG([]summarize.ErrorCount{
		{Message: "ADC timeout", Count: 4},
		{Message: "bus <fault>", Count: 1},
	})
	if err != nil {
		t.Fatalf("ChartSVG: %v", err)
	}
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Error("malformed SVG envelope")
	}
	if !strings.Contains(svg, "ADC timeout") {
		t.Error("chart should label bars")
	}
	if strings.Contains(svg, "<fault>") {
		t.Error("labels must be HTML-escaped")
	}
}

func TestChartSVG_NoData(t *testing.T) {
	if _, err := ChartSVG(nil); err == nil {
		t.Fatal("expected error for empty chart data")
	}
}

func TestHTML(t *testing.T) {
	md := Markdown(sampleData(), Options{EmbedChart: true})
	out, err := HTML(md)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	html := string(out)
	for _, want := range []string{"<!DOCTYPE html>", "<table>", "<svg", "Testwise Report"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML output missing %q", want)
		}
	}
}
