package suite

import (
	"regexp"
	"strings"

	"github.com/mcpconductor/conductor/internal/conductorerr"
)

// filterKind distinguishes the three expression forms Filter accepts.
type filterKind int

const (
	filterSubstring filterKind = iota
	filterTag
	filterRegex
)

// Filter selects tests by tag, regex, or case-insensitive substring against
// the test name. A suite left with no surviving tests after filtering is
// dropped entirely from Apply's result.
type Filter struct {
	kind  filterKind
	tag   string
	text  string
	regex *regexp.Regexp
}

// ParseFilter compiles a filter expression. `tag:x` selects tests carrying
// tag x (on the test or its parent suite); `/re/` compiles re as a regex
// matched against the suite description or test name; anything else is a
// case-insensitive substring match against the test name.
func ParseFilter(expr string) (Filter, error) {
	switch {
	case strings.HasPrefix(expr, "tag:"):
		return Filter{kind: filterTag, tag: strings.TrimPrefix(expr, "tag:")}, nil
	case len(expr) >= 2 && strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/"):
		pattern := expr[1 : len(expr)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Filter{}, conductorerr.Wrap(conductorerr.ParseError, err, "invalid filter regex %q", pattern)
		}
		return Filter{kind: filterRegex, regex: re}, nil
	default:
		return Filter{kind: filterSubstring, text: strings.ToLower(expr)}, nil
	}
}

// matchesTest reports whether a single test (within the given suite, for
// tag/description context) survives the filter.
func (f Filter) matchesTest(s Suite, tc Test) bool {
	switch f.kind {
	case filterTag:
		return hasTag(s.Tags, f.tag) || hasTag(tc.Tags, f.tag)
	case filterRegex:
		return f.regex.MatchString(s.Description) || f.regex.MatchString(tc.It)
	default:
		return strings.Contains(strings.ToLower(tc.It), f.text)
	}
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// Apply filters every suite's test list in place (on copies) and drops any
// suite left with zero tests. Applying the same Filter twice in succession
// is a no-op on the second pass: every test that survived the first pass
// still matches the same filter.
func (f Filter) Apply(suites []Suite) []Suite {
	out := make([]Suite, 0, len(suites))
	for _, s := range suites {
		kept := make([]Test, 0, len(s.Tests))
		for _, tc := range s.Tests {
			if f.matchesTest(s, tc) {
				kept = append(kept, tc)
			}
		}
		if len(kept) == 0 {
			continue
		}
		filtered := s
		filtered.Tests = kept
		out = append(out, filtered)
	}
	return out
}
