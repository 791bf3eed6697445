// Package suite holds the declarative test-suite data model and the YAML
// document reader that produces it. Grounded on the teacher's
// shared/config/yaml.go pattern of decoding a whole document with
// gopkg.in/yaml.v3 into a plain Go struct tree, then validating afterward
// rather than relying on schema validation during decode.
package suite

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mcpconductor/conductor/internal/conductorerr"
)

// Test is a single conformance check: a request to send and the expectations
// to evaluate against the response and/or accumulated stderr.
type Test struct {
	It      string         `yaml:"it"`
	Tags    []string       `yaml:"tags"`
	Request map[string]any `yaml:"request"`
	Expect  Expectation    `yaml:"expect"`
}

// Expectation holds the optional response and stderr templates for a Test.
// Both are raw decoded YAML trees; internal/match compiles them lazily so
// that a malformed pattern surfaces as an error on that test alone rather
// than aborting the whole document load.
type Expectation struct {
	Response any `yaml:"response"`
	Stderr   any `yaml:"stderr"`
}

// HasResponse reports whether this expectation carries a response template.
func (e Expectation) HasResponse() bool { return e.Response != nil }

// HasStderr reports whether this expectation carries a stderr template.
func (e Expectation) HasStderr() bool { return e.Stderr != nil }

// Suite is a named, tagged group of ordered tests sharing a single
// communicator session. A YAML document holds one suite or a suites: list.
type Suite struct {
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Tests       []Test   `yaml:"tests"`
}

// document mirrors the top-level YAML shape; a file may hold either a single
// suite or a `suites:` list, matching how the teacher's config loader
// tolerates both a bare document and a wrapped one.
type document struct {
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Tests       []Test   `yaml:"tests"`
	Suites      []Suite  `yaml:"suites"`
}

// ParseDocument decodes a single YAML suite file into one or more Suites.
func ParseDocument(data []byte) ([]Suite, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, conductorerr.Wrap(conductorerr.ParseError, err, "invalid suite document")
	}
	if len(doc.Suites) > 0 {
		return doc.Suites, nil
	}
	if doc.Description == "" && len(doc.Tests) == 0 {
		return nil, conductorerr.New(conductorerr.ParseError, "suite document has neither a description/tests body nor a suites list")
	}
	return []Suite{{Description: doc.Description, Tags: doc.Tags, Tests: doc.Tests}}, nil
}

// Validate checks structural invariants ParseDocument cannot express through
// struct tags alone: every test needs a name, and a request must be present
// since the orchestrator has nothing to send otherwise.
func Validate(suites []Suite) error {
	for i, s := range suites {
		if s.Description == "" {
			return conductorerr.New(conductorerr.ParseError, "suite %d has no description", i)
		}
		for j, tc := range s.Tests {
			if tc.It == "" {
				return conductorerr.New(conductorerr.ParseError, "suite %q test %d has no \"it\" name", s.Description, j)
			}
			if tc.Request == nil {
				return conductorerr.New(conductorerr.ParseError, "suite %q test %q has no request", s.Description, tc.It)
			}
			if !tc.Expect.HasResponse() && !tc.Expect.HasStderr() {
				return conductorerr.New(conductorerr.ParseError, "suite %q test %q has no expect.response or expect.stderr", s.Description, tc.It)
			}
		}
	}
	return nil
}

func (s Suite) String() string {
	return fmt.Sprintf("Suite(%q, %d tests)", s.Description, len(s.Tests))
}
