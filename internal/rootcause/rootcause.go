// Package rootcause selects the dominant failure patterns of a run and asks
// the language model for likely causes and fixes. Selection is deterministic
// and local; only the cause/fix text comes from the API.
package rootcause

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"testwise/internal/llm"
	"testwise/internal/logging"
	"testwise/internal/parse"
)

// DefaultTop caps how many failure groups are analyzed per request.
const DefaultTop = 5

// maxExamples bounds the example test names quoted per failure group.
const maxExamples = 3

// maxAnalysisTokens bounds the cost of the analysis request.
const maxAnalysisTokens = 500

// Failure is one selected failure group: a message with its frequency and
// example test names.
type Failure struct {
	Message  string   `json:"message"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

// Result is the root-cause analysis for a run. Failures is always populated
// from local selection; Analysis degrades to empty when the API is down.
type Result struct {
	Failures []Failure `json:"failures"`
	Analysis string    `json:"analysis,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// TopFailures groups FAIL/ERROR records by message and returns at most n
// groups, ranked by frequency with ties broken by first occurrence order.
// PASS and SKIP records are never considered.
func TopFailures(run *parse.TestRun, n int) []Failure {
	if n <= 0 {
		n = DefaultTop
	}

	order := make(map[string]int)
	groups := make(map[string]*Failure)
	for _, rec := range run.Records {
		if !rec.Status.Failed() {
			continue
		}
		g, ok := groups[rec.Message]
		if !ok {
			order[rec.Message] = len(order)
			g = &Failure{Message: rec.Message}
			groups[rec.Message] = g
		}
		g.Count++
		if len(g.Examples) < maxExamples {
			g.Examples = append(g.Examples, rec.Name)
		}
	}

	out := make([]Failure, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return order[out[i].Message] < order[out[j].Message]
	})

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Analyze selects the top n failure groups and requests cause/fix suggestions
// for them as a single batch. It never fails: with no failures, a nil
// completer, a disabled LLM, or an API error the result degrades and Reason
// says why.
func Analyze(ctx context.Context, c llm.Completer, run *parse.TestRun, n int) *Result {
	logger := logging.New("rootcause")
	result := &Result{Failures: TopFailures(run, n)}

	switch {
	case len(result.Failures) == 0:
		result.Reason = "no failures to analyze"
		return result
	case llm.Disabled():
		result.Degraded = true
		result.Reason = "LLM disabled"
		return result
	case c == nil:
		result.Degraded = true
		result.Reason = "no LLM client configured"
		return result
	}

	analysis, err := c.Complete(ctx, llm.Request{
		System:      "You are a senior embedded QA engineer who writes structured, technical failure analysis reports.",
		Prompt:      buildPrompt(result.Failures),
		MaxTokens:   maxAnalysisTokens,
		Temperature: 0.2,
	})
	if err != nil {
		logger.Warn("analysis unavailable", "error", err)
		result.Degraded = true
		result.Reason = err.Error()
		return result
	}
	result.Analysis = analysis
	return result
}

// buildPrompt renders the structured analysis request for a failure set.
func buildPrompt(failures []Failure) string {
	var blocks strings.Builder
	for _, f := range failures {
		msg := f.Message
		if msg == "" {
			msg = "(no message)"
		}
		fmt.Fprintf(&blocks, "- %s (%d occurrences", msg, f.Count)
		if len(f.Examples) > 0 {
			fmt.Fprintf(&blocks, ", e.g. %s", strings.Join(f.Examples, ", "))
		}
		blocks.WriteString(")\n")
	}

	return fmt.Sprintf(`Analyze the following recurring test failures and their associated test cases.

For each error:
- Identify the most likely root cause (specific to embedded software)
- Suggest a concrete engineering fix or mitigation

Use this format:
- **Error:** ...
  - **Likely Cause:** ...
  - **Suggested Fix:** ...

Top errors:
%s`, blocks.String())
}
