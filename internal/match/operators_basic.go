package match

import (
	"fmt"
	"regexp"
	"strings"
)

// typeNode implements match:type:T.
type typeNode struct{ want string }

func (n typeNode) matchAt(path string, actual any) *Diagnostic {
	got := jsonTypeOf(actual)
	if got == n.want {
		return nil
	}
	return failf(path, "type", actual, "expected type %q, got %q", n.want, got)
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// regexNode implements match:regex:R. The regex is matched anywhere in the
// string, not anchored — authors add ^…$ themselves.
type regexNode struct{ re *regexp.Regexp }

func newRegexNode(pattern string) (Template, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, newBadArg("regex", err.Error())
	}
	return regexNode{re: re}, nil
}

func (n regexNode) matchAt(path string, actual any) *Diagnostic {
	s, ok := actual.(string)
	if !ok {
		return failf(path, "regex", actual, "expected a string, got %T", actual)
	}
	if n.re.MatchString(s) {
		return nil
	}
	return failf(path, "regex", actual, "%q does not match /%s/", s, n.re.String())
}

type containsNode struct{ sub string }

func (n containsNode) matchAt(path string, actual any) *Diagnostic {
	s, ok := actual.(string)
	if !ok {
		return failf(path, "contains", actual, "expected a string, got %T", actual)
	}
	if strings.Contains(s, n.sub) {
		return nil
	}
	return failf(path, "contains", actual, "%q does not contain %q", s, n.sub)
}

type startsWithNode struct{ prefix string }

func (n startsWithNode) matchAt(path string, actual any) *Diagnostic {
	s, ok := actual.(string)
	if !ok {
		return failf(path, "startsWith", actual, "expected a string, got %T", actual)
	}
	if strings.HasPrefix(s, n.prefix) {
		return nil
	}
	return failf(path, "startsWith", actual, "%q does not start with %q", s, n.prefix)
}

type endsWithNode struct{ suffix string }

func (n endsWithNode) matchAt(path string, actual any) *Diagnostic {
	s, ok := actual.(string)
	if !ok {
		return failf(path, "endsWith", actual, "expected a string, got %T", actual)
	}
	if strings.HasSuffix(s, n.suffix) {
		return nil
	}
	return failf(path, "endsWith", actual, "%q does not end with %q", s, n.suffix)
}

// lengthNode implements match:length:N over either a string or an array.
type lengthNode struct{ want int }

func (n lengthNode) matchAt(path string, actual any) *Diagnostic {
	got, ok := lengthOf(actual)
	if !ok {
		return failf(path, "length", actual, "expected a string or array, got %T", actual)
	}
	if got == n.want {
		return nil
	}
	return failf(path, "length", actual, "expected length %d, got %d", n.want, got)
}

func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []any:
		return len(t), true
	default:
		return 0, false
	}
}

// arrayLengthNode implements match:arrayLength:N.
type arrayLengthNode struct{ want int }

func (n arrayLengthNode) matchAt(path string, actual any) *Diagnostic {
	arr, ok := actual.([]any)
	if !ok {
		return failf(path, "arrayLength", actual, "expected an array, got %T", actual)
	}
	if len(arr) == n.want {
		return nil
	}
	return failf(path, "arrayLength", actual, "expected array of length %d, got %d", n.want, len(arr))
}

// arrayContainsNode implements match:arrayContains:V — passes when some
// element of actual matches the (possibly compiled-pattern) element
// template.
type arrayContainsNode struct{ elementTemplate Template }

func (n arrayContainsNode) matchAt(path string, actual any) *Diagnostic {
	arr, ok := actual.([]any)
	if !ok {
		return failf(path, "arrayContains", actual, "expected an array, got %T", actual)
	}
	for i, elem := range arr {
		if n.elementTemplate.matchAt(fmt.Sprintf("%s[%d]", path, i), elem) == nil {
			return nil
		}
	}
	return failf(path, "arrayContains", actual, "no element matched the given pattern")
}

// arrayElementsNode implements match:arrayElements — every element of the
// array must match the element template. An empty array vacuously passes.
type arrayElementsNode struct{ elementTemplate Template }

func (n arrayElementsNode) matchAt(path string, actual any) *Diagnostic {
	arr, ok := actual.([]any)
	if !ok {
		return failf(path, "arrayElements", actual, "expected an array, got %T", actual)
	}
	for i, elem := range arr {
		if diag := n.elementTemplate.matchAt(fmt.Sprintf("%s[%d]", path, i), elem); diag != nil {
			return diag
		}
	}
	return nil
}

// notNode implements match:not:<subpattern> — passes iff the subpattern
// fails.
type notNode struct{ inner Template }

func (n notNode) matchAt(path string, actual any) *Diagnostic {
	if diag := n.inner.matchAt(path, actual); diag != nil {
		return nil
	}
	return failf(path, "not", actual, "subpattern unexpectedly matched")
}

// existsNode implements match:exists — passes unless actual is the sentinel
// representing a missing value (see extractFieldNode).
type existsNode struct{}

func (n existsNode) matchAt(path string, actual any) *Diagnostic {
	if actual == missingValue {
		return failf(path, "exists", actual, "value is missing")
	}
	return nil
}
