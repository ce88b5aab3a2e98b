package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"testwise/internal/llm"
	"testwise/internal/parse"
)

// stubCompleter records prompts and returns canned responses.
type stubCompleter struct {
	responses []string
	err       error
	calls     []llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) > 0 {
		resp := s.responses[0]
		if len(s.responses) > 1 {
			s.responses = s.responses[1:]
		}
		return resp, nil
	}
	return "stub summary", nil
}

func failRun() *parse.TestRun {
	return &parse.TestRun{Records: []parse.TestRecord{
		{Name: "t1", Module: "power", Status: parse.StatusPass},
		{Name: "t2", Module: "power", Status: parse.StatusFail, Message: "voltage drop"},
		{Name: "t3", Module: "sensor", Status: parse.StatusFail, Message: "ADC timeout"},
		{Name: "t4", Module: "sensor", Status: parse.StatusFail, Message: "ADC timeout"},
		{Name: "t5", Module: "comm", Status: parse.StatusSkip},
		{Name: "t6", Module: "comm", Status: parse.StatusError, Message: "bus fault"},
	}}
}

func TestCompute_CountsSumToTotal(t *testing.T) {
	agg := Compute(failRun())
	if agg.Total != 6 {
		t.Fatalf("expected total 6, got %d", agg.Total)
	}
	sum := 0
	for _, n := range agg.ByStatus {
		sum += n
	}
	if sum != agg.Total {
		t.Errorf("status counts sum to %d, want %d", sum, agg.Total)
	}
	if agg.Passed() != 1 || agg.Failed() != 3 || agg.Skipped() != 1 {
		t.Errorf("unexpected counts: passed=%d failed=%d skipped=%d", agg.Passed(), agg.Failed(), agg.Skipped())
	}
}

// Re-summing counts manually from the records must match the aggregate.
func TestCompute_MatchesManualRecount(t *testing.T) {
	run := failRun()
	agg := Compute(run)

	manual := make(map[parse.Status]int)
	for _, rec := range run.Records {
		manual[rec.Status]++
	}
	if diff := cmp.Diff(manual, agg.ByStatus); diff != "" {
		t.Errorf("status counts mismatch (-manual +agg):\n%s", diff)
	}
}

func TestCompute_ErrorOrdering(t *testing.T) {
	agg := Compute(failRun())
	want := []ErrorCount{
		{Message: "ADC timeout", Count: 2},
		{Message: "voltage drop", Count: 1},
		{Message: "bus fault", Count: 1},
	}
	if diff := cmp.Diff(want, agg.Errors); diff != "" {
		t.Errorf("error ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_ByModule(t *testing.T) {
	agg := Compute(failRun())
	want := map[string]int{"power": 2, "sensor": 2, "comm": 2}
	if diff := cmp.Diff(want, agg.ByModule); diff != "" {
		t.Errorf("module counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_Narrative(t *testing.T) {
	stub := &stubCompleter{responses: []string{"two failures dominate"}}
	result := Summarize(context.Background(), stub, failRun())
	if result.Degraded {
		t.Fatalf("unexpected degradation: %s", result.Reason)
	}
	if result.Narrative != "two failures dominate" {
		t.Errorf("unexpected narrative: %q", result.Narrative)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 API call, got %d", len(stub.calls))
	}
	prompt := stub.calls[0].Prompt
	for _, want := range []string{"Total tests: 6", "Passed: 1", "Failed: 3", "ADC timeout: 2 occurrences"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSummarize_DegradesOnAPIError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	result := Summarize(context.Background(), stub, failRun())
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if result.Narrative != "" {
		t.Errorf("narrative should be empty, got %q", result.Narrative)
	}
	// Aggregates survive the API failure.
	if result.Total != 6 || result.Failed() != 3 {
		t.Errorf("aggregates lost on degradation: %+v", result.Aggregate)
	}
}

func TestSummarize_DisabledEnv(t *testing.T) {
	t.Setenv("TESTWISE_NO_LLM", "1")
	stub := &stubCompleter{}
	result := Summarize(context.Background(), stub, failRun())
	if !result.Degraded {
		t.Fatal("expected degraded result with LLM disabled")
	}
	if len(stub.calls) != 0 {
		t.Errorf("completer should not be called when disabled, got %d calls", len(stub.calls))
	}
}

func TestSummarize_NoFailures(t *testing.T) {
	run := &parse.TestRun{Records: []parse.TestRecord{
		{Name: "t1", Module: "power", Status: parse.StatusPass},
	}}
	stub := &stubCompleter{}
	result := Summarize(context.Background(), stub, run)
	if result.Degraded {
		t.Fatalf("unexpected degradation: %s", result.Reason)
	}
	if len(stub.calls) != 0 {
		t.Errorf("no API call expected without failures, got %d", len(stub.calls))
	}
	if result.Narrative == "" {
		t.Error("expected a canned narrative for a clean run")
	}
}

func TestSummarizeChunked_MergesChunks(t *testing.T) {
	run := &parse.TestRun{}
	for i := 0; i < 5; i++ {
		run.Records = append(run.Records, parse.TestRecord{
			Name:    fmt.Sprintf("t%d", i),
			Module:  "core",
			Status:  parse.StatusFail,
			Message: fmt.Sprintf("error %d", i),
		})
	}
	stub := &stubCompleter{responses: []string{"c1", "c2", "c3", "merged"}}
	result := SummarizeChunked(context.Background(), stub, run, 2)
	if result.Degraded {
		t.Fatalf("unexpected degradation: %s", result.Reason)
	}
	// 5 error groups at chunk size 2 -> 3 chunk calls + 1 merge call.
	if len(stub.calls) != 4 {
		t.Fatalf("expected 4 API calls, got %d", len(stub.calls))
	}
	if result.Narrative != "merged" {
		t.Errorf("unexpected narrative: %q", result.Narrative)
	}
	if !strings.Contains(stub.calls[3].Prompt, "c1") || !strings.Contains(stub.calls[3].Prompt, "c3") {
		t.Errorf("merge prompt should contain chunk summaries:\n%s", stub.calls[3].Prompt)
	}
}
