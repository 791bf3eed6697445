package report

import (
	"sort"

	"github.com/mcpconductor/conductor/internal/match"
)

// DiagnosticGroup clusters diagnostics sharing a matcher kind and JSON
// pointer path, for the --group-errors presentation mode.
type DiagnosticGroup struct {
	Matcher string            `json:"matcher"`
	Path    string            `json:"path"`
	Count   int               `json:"count"`
	Sample  *match.Diagnostic `json:"sample"`
	Tests   []string          `json:"tests"`
}

// GroupDiagnostics clusters every failing test's diagnostics by
// (matcher kind, path) — the first differing JSON pointer — across an entire
// run, so that a server failing the same check a hundred times renders as
// one group instead of a hundred lines.
func GroupDiagnostics(suites []SuiteResult) []DiagnosticGroup {
	type key struct{ matcher, path string }
	groups := map[key]*DiagnosticGroup{}
	var order []key

	for _, s := range suites {
		for _, t := range s.Tests {
			for _, d := range t.Diagnostics {
				if d == nil {
					continue
				}
				k := key{matcher: d.Matcher, path: d.Path}
				g, ok := groups[k]
				if !ok {
					g = &DiagnosticGroup{Matcher: d.Matcher, Path: d.Path, Sample: d}
					groups[k] = g
					order = append(order, k)
				}
				g.Count++
				g.Tests = append(g.Tests, s.Description+"/"+t.Name)
			}
		}
	}

	out := make([]DiagnosticGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Matcher < out[j].Matcher
	})
	return out
}
