package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLog = `[2024-05-01 10:00:00] [RESULT] test_boot [Power] PASS
[2024-05-01 10:00:01] [RESULT] test_adc_read [Sensor] FAIL - ADC timeout
[2024-05-01 10:00:02] [RESULT] test_adc_cal [Sensor] FAIL - ADC timeout
[2024-05-01 10:00:03] [RESULT] test_sleep [Power] SKIP
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAnalyze_StdoutReport(t *testing.T) {
	t.Setenv("TESTWISE_NO_LLM", "1")
	analyzeFlags.output = ""
	analyzeFlags.pdf = false

	path := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "analyze", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"# Testwise Report", "Total Tests: **4**", "ADC timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestAnalyze_OutputFile(t *testing.T) {
	t.Setenv("TESTWISE_NO_LLM", "1")
	analyzeFlags.pdf = false

	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	if err := os.WriteFile(logPath, []byte(sampleLog), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "report.md")

	out, err := execute(t, "analyze", logPath, "-o", outPath)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, outPath) {
		t.Errorf("output should name the report path, got %q", out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "# Testwise Report") {
		t.Error("report file missing title")
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	analyzeFlags.output = ""
	analyzeFlags.pdf = false

	if _, err := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.log")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAnalyze_PDFRequiresOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "analyze", path, "--pdf")
	if err == nil || !strings.Contains(err.Error(), "--pdf requires --output") {
		t.Fatalf("err = %v", err)
	}
	analyzeFlags.pdf = false
}
