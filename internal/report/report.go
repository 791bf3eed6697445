// Package report aggregates TestResults into per-suite and overall summaries
// and renders the machine-readable JSON document. Grounded on the teacher's
// habit (shared/helpers.go) of keeping aggregation as pure functions over
// plain structs, independent of however the results were produced.
package report

import (
	"time"

	"github.com/mcpconductor/conductor/internal/match"
)

// Status is the terminal state of a single test.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// TestResult is the outcome of running one suite.Test.
type TestResult struct {
	Suite          string              `json:"suite"`
	Name           string              `json:"name"`
	Status         Status              `json:"status"`
	DurationMs     int64               `json:"durationMs"`
	Diagnostics    []*match.Diagnostic `json:"diagnostics,omitempty"`
	StderrCaptured string              `json:"stderrCaptured,omitempty"`
	Err            string              `json:"error,omitempty"`
}

// SuiteResult groups every TestResult produced while running one suite.Suite.
type SuiteResult struct {
	Description string       `json:"description"`
	SetupMs     int64        `json:"setupMs"`
	Tests       []TestResult `json:"tests"`
}

// Summary is the overall pass/fail/error/skip tally across every suite.
type Summary struct {
	Pass       int   `json:"pass"`
	Fail       int   `json:"fail"`
	Error      int   `json:"error"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"durationMs"`
}

// RunResult is the top-level machine document: spec §4.G's
// {summary:{...}, suites:[...]}.
type RunResult struct {
	Summary Summary       `json:"summary"`
	Suites  []SuiteResult `json:"suites"`
}

// Aggregate computes the overall Summary from a completed set of
// SuiteResults. It never mutates its argument.
func Aggregate(suites []SuiteResult) RunResult {
	var s Summary
	for _, suite := range suites {
		s.DurationMs += suite.SetupMs
		for _, t := range suite.Tests {
			s.DurationMs += t.DurationMs
			switch t.Status {
			case StatusPass:
				s.Pass++
			case StatusFail:
				s.Fail++
			case StatusError:
				s.Error++
			case StatusSkipped:
				s.Skipped++
			}
		}
	}
	return RunResult{Summary: s, Suites: suites}
}

// Passed reports whether every test across the run passed (or was skipped).
func (r RunResult) Passed() bool {
	return r.Summary.Fail == 0 && r.Summary.Error == 0
}

// Elapsed returns the millisecond duration between two timestamps, floored
// at zero so a clock skew never reports a negative duration.
func Elapsed(start, end time.Time) int64 {
	d := end.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
