package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconductor/conductor/internal/match"
)

func TestAggregateTallies(t *testing.T) {
	suites := []SuiteResult{
		{
			Description: "a",
			SetupMs:     10,
			Tests: []TestResult{
				{Status: StatusPass, DurationMs: 5},
				{Status: StatusFail, DurationMs: 7},
				{Status: StatusError, DurationMs: 1},
				{Status: StatusSkipped, DurationMs: 0},
			},
		},
	}
	result := Aggregate(suites)
	assert.Equal(t, 1, result.Summary.Pass)
	assert.Equal(t, 1, result.Summary.Fail)
	assert.Equal(t, 1, result.Summary.Error)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, int64(23), result.Summary.DurationMs)
	assert.False(t, result.Passed())
}

func TestAggregateAllPassIsPassed(t *testing.T) {
	suites := []SuiteResult{
		{Description: "a", Tests: []TestResult{{Status: StatusPass}, {Status: StatusSkipped}}},
	}
	result := Aggregate(suites)
	assert.True(t, result.Passed())
}

func TestAggregateMonotonic(t *testing.T) {
	base := []SuiteResult{
		{Description: "a", Tests: []TestResult{{Status: StatusPass, DurationMs: 1}}},
	}
	more := []SuiteResult{
		{Description: "a", Tests: []TestResult{{Status: StatusPass, DurationMs: 1}}},
		{Description: "b", Tests: []TestResult{{Status: StatusFail, DurationMs: 2}}},
	}
	r1 := Aggregate(base)
	r2 := Aggregate(more)
	assert.GreaterOrEqual(t, r2.Summary.Pass+r2.Summary.Fail+r2.Summary.Error+r2.Summary.Skipped,
		r1.Summary.Pass+r1.Summary.Fail+r1.Summary.Error+r1.Summary.Skipped)
	assert.GreaterOrEqual(t, r2.Summary.DurationMs, r1.Summary.DurationMs)
}

func TestMarshalJSONShape(t *testing.T) {
	result := Aggregate([]SuiteResult{{Description: "a", Tests: []TestResult{{Status: StatusPass}}}})
	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"summary"`)
	assert.Contains(t, string(b), `"suites"`)
}

func TestGroupDiagnosticsClustersByMatcherAndPath(t *testing.T) {
	diag := &match.Diagnostic{Matcher: "type", Path: "$.result.value"}
	suites := []SuiteResult{
		{
			Description: "a",
			Tests: []TestResult{
				{Name: "t1", Status: StatusFail, Diagnostics: []*match.Diagnostic{diag}},
				{Name: "t2", Status: StatusFail, Diagnostics: []*match.Diagnostic{diag}},
			},
		},
	}
	groups := GroupDiagnostics(suites)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	assert.ElementsMatch(t, []string{"a/t1", "a/t2"}, groups[0].Tests)
}

func TestGroupDiagnosticsSeparatesDistinctPaths(t *testing.T) {
	suites := []SuiteResult{
		{
			Description: "a",
			Tests: []TestResult{
				{Name: "t1", Status: StatusFail, Diagnostics: []*match.Diagnostic{{Matcher: "type", Path: "$.a"}}},
				{Name: "t2", Status: StatusFail, Diagnostics: []*match.Diagnostic{{Matcher: "type", Path: "$.b"}}},
			},
		},
	}
	groups := GroupDiagnostics(suites)
	require.Len(t, groups, 2)
}

func TestElapsedFloorsAtZero(t *testing.T) {
	start := time.Now()
	end := start.Add(-5 * time.Millisecond)
	assert.Equal(t, int64(0), Elapsed(start, end))
	assert.Equal(t, int64(5), Elapsed(end, start))
}
