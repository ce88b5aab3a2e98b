// Package summarize computes deterministic aggregates over a test run and
// asks the language model for a prose narrative. Aggregates are always
// available; the narrative degrades to empty when the API is down or disabled.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"testwise/internal/llm"
	"testwise/internal/logging"
	"testwise/internal/parse"
)

// DefaultChunkSize bounds how many error groups go into one prompt.
const DefaultChunkSize = 50

// maxNarrativeTokens bounds the cost of a single narrative request.
const maxNarrativeTokens = 500

// ErrorCount is one failure message with its occurrence count.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Aggregate holds the deterministic counts for a run. Status counts always
// sum to Total.
type Aggregate struct {
	Total    int                  `json:"total"`
	ByStatus map[parse.Status]int `json:"by_status"`
	ByModule map[string]int       `json:"by_module"`
	Errors   []ErrorCount         `json:"errors,omitempty"`
	Partial  bool                 `json:"partial"`
}

// Passed returns the PASS count.
func (a *Aggregate) Passed() int { return a.ByStatus[parse.StatusPass] }

// Failed returns the combined FAIL and ERROR count.
func (a *Aggregate) Failed() int {
	return a.ByStatus[parse.StatusFail] + a.ByStatus[parse.StatusError]
}

// Skipped returns the SKIP count.
func (a *Aggregate) Skipped() int { return a.ByStatus[parse.StatusSkip] }

// Result is a run summary: aggregates plus the LLM narrative.
// Degraded is true when the narrative could not be produced; the aggregates
// are still valid in that case.
type Result struct {
	Aggregate
	Narrative string `json:"narrative,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Compute derives the aggregate counts from a run. Failure messages are
// grouped verbatim, ordered by count descending with ties broken by first
// occurrence.
func Compute(run *parse.TestRun) *Aggregate {
	agg := &Aggregate{
		ByStatus: make(map[parse.Status]int),
		ByModule: make(map[string]int),
		Partial:  run.Partial,
	}

	order := make(map[string]int)
	counts := make(map[string]int)
	for _, rec := range run.Records {
		agg.Total++
		agg.ByStatus[rec.Status]++
		if rec.Module != "" {
			agg.ByModule[rec.Module]++
		}
		if rec.Status.Failed() {
			if _, seen := counts[rec.Message]; !seen {
				order[rec.Message] = len(order)
			}
			counts[rec.Message]++
		}
	}

	agg.Errors = make([]ErrorCount, 0, len(counts))
	for msg, n := range counts {
		agg.Errors = append(agg.Errors, ErrorCount{Message: msg, Count: n})
	}
	sort.SliceStable(agg.Errors, func(i, j int) bool {
		a, b := agg.Errors[i], agg.Errors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return order[a.Message] < order[b.Message]
	})
	return agg
}

// Summarize aggregates the run and requests a narrative from the completer.
// It never fails: on a nil completer, disabled LLM, or API error the result
// carries the aggregates with Degraded set and Reason explaining why.
func Summarize(ctx context.Context, c llm.Completer, run *parse.TestRun) *Result {
	return SummarizeChunked(ctx, c, run, DefaultChunkSize)
}

// SummarizeChunked is Summarize with an explicit chunk size for tests.
func SummarizeChunked(ctx context.Context, c llm.Completer, run *parse.TestRun, chunkSize int) *Result {
	logger := logging.New("summarize")
	result := &Result{Aggregate: *Compute(run)}

	switch {
	case llm.Disabled():
		result.Degraded = true
		result.Reason = "LLM disabled"
		return result
	case c == nil:
		result.Degraded = true
		result.Reason = "no LLM client configured"
		return result
	}

	narrative, err := narrative(ctx, c, &result.Aggregate, chunkSize)
	if err != nil {
		logger.Warn("narrative unavailable", "error", err)
		result.Degraded = true
		result.Reason = err.Error()
		return result
	}
	result.Narrative = narrative
	return result
}

// narrative produces the LLM narrative, chunking large error tables and
// merging the per-chunk summaries with a final request.
func narrative(ctx context.Context, c llm.Completer, agg *Aggregate, chunkSize int) (string, error) {
	if agg.Total == 0 {
		return "No test records to summarize.", nil
	}
	if len(agg.Errors) == 0 {
		return "All tests passed; no failures to summarize.", nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	if len(agg.Errors) <= chunkSize {
		return summarizeChunk(ctx, c, agg, agg.Errors, 0, 1)
	}

	totalChunks := (len(agg.Errors) + chunkSize - 1) / chunkSize
	var parts []string
	for i := 0; i < totalChunks; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(agg.Errors))
		part, err := summarizeChunk(ctx, c, agg, agg.Errors[start:end], i, totalChunks)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	merged, err := c.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: "Combine the following chunked summaries into a single concise technical summary " +
			"with action items. Avoid repetition.\n\n" + strings.Join(parts, "\n\n"),
		MaxTokens:   maxNarrativeTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("merge summary: %w", err)
	}
	return merged, nil
}

const systemPrompt = "You are an expert QA assistant for embedded systems."

func summarizeChunk(ctx context.Context, c llm.Completer, agg *Aggregate, errs []ErrorCount, idx, total int) (string, error) {
	var b strings.Builder
	for _, e := range errs {
		msg := e.Message
		if msg == "" {
			msg = "(no message)"
		}
		fmt.Fprintf(&b, "- %s: %d occurrences\n", msg, e.Count)
	}

	chunkInfo := ""
	if total > 1 {
		chunkInfo = fmt.Sprintf(" (chunk %d/%d)", idx+1, total)
	}

	prompt := fmt.Sprintf(`You are a senior QA engineer summarizing automated test results for embedded systems%s.

Constraints:
- Be concise and direct
- Use engineering tone (clear, factual)
- Use bullets where helpful
- Highlight what matters most to debugging

Test metrics:
- Total tests: %d
- Passed: %d
- Failed: %d
- Skipped: %d

Failure breakdown:
%s
Deliver:
1. Test health summary (1-2 sentences)
2. Key failure patterns (bullets, sorted by frequency)
3. Suggested actions (short, high-impact engineering tasks)`,
		chunkInfo, agg.Total, agg.Passed(), agg.Failed(), agg.Skipped(), b.String())

	text, err := c.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   maxNarrativeTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarize chunk: %w", err)
	}
	return text, nil
}
