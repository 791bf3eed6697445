// Package match implements the match:* pattern DSL: compiling a template
// value into a tagged-variant tree once, then walking it against an actual
// JSON value. Grounded on spec §9's design note to keep match logic out of
// the JSON/YAML reader entirely — Compile accepts an already-decoded `any`
// (from either encoding/json or gopkg.in/yaml.v3), never raw bytes.
package match

import (
	"fmt"
	"sort"
	"strings"
)

// Template is a compiled pattern ready to be matched against a decoded JSON
// value. Match is total: it always returns either nil (pass) or a
// *Diagnostic, never panics.
type Template interface {
	matchAt(path string, actual any) *Diagnostic
}

// Match evaluates tpl against actual, rooting diagnostics at "$".
func Match(tpl Template, actual any) *Diagnostic {
	return tpl.matchAt("$", actual)
}

// Compile parses a raw decoded value into a Template tree.
func Compile(node any) (Template, error) {
	switch v := node.(type) {
	case string:
		if strings.HasPrefix(v, "match:") {
			return compileOperatorString(v)
		}
		return literalNode{value: v}, nil
	case map[string]any:
		return compileObject(v)
	case []any:
		return compileArray(v)
	default:
		return literalNode{value: normalizeNumber(v)}, nil
	}
}

// MustCompile panics on a compile error; for call sites whose template is
// already known to compile.
func MustCompile(node any) Template {
	tpl, err := Compile(node)
	if err != nil {
		panic(err)
	}
	return tpl
}

// literalNode requires deep equality with the actual value.
type literalNode struct {
	value any
}

func (n literalNode) matchAt(path string, actual any) *Diagnostic {
	if deepEqual(n.value, actual) {
		return nil
	}
	return fail(path, "equals", "values differ", n.value, actual)
}

// objectNode recurses key-by-key. When partial is true, actual may carry
// extra keys beyond those named in entries.
type objectNode struct {
	entries map[string]Template
	partial bool
}

func compileObject(m map[string]any) (Template, error) {
	// match:extractField takes priority: the whole object describes a
	// single extraction, with a sibling "value" field holding the template
	// matched against the extracted subvalue.
	if rawPath, ok := m["match:extractField"]; ok {
		pathStr, ok := rawPath.(string)
		if !ok {
			return nil, newBadArg("extractField", "argument must be a string path")
		}
		valueTpl, ok := m["value"]
		if !ok {
			return nil, newBadArg("extractField", "object must have a sibling \"value\" field")
		}
		inner, err := Compile(valueTpl)
		if err != nil {
			return nil, err
		}
		return extractFieldNode{path: pathStr, inner: inner}, nil
	}

	if rawTpl, ok := m["match:arrayElements"]; ok {
		inner, err := Compile(rawTpl)
		if err != nil {
			return nil, err
		}
		return arrayElementsNode{elementTemplate: inner}, nil
	}

	if rawTpl, ok := m["match:arrayContains"]; ok {
		inner, err := Compile(rawTpl)
		if err != nil {
			return nil, err
		}
		return arrayContainsNode{elementTemplate: inner}, nil
	}

	if rawTpl, ok := m["match:not"]; ok {
		inner, err := Compile(rawTpl)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}

	// The wrapper form, {"match:partial": {...}}, names the sub-template as
	// the key's own value rather than using a sibling boolean flag. It only
	// applies when match:partial is the object's sole key and that key's
	// value is itself an object; otherwise it's the flag form below.
	if rawPartial, ok := m["match:partial"]; ok && len(m) == 1 {
		if sub, isObj := rawPartial.(map[string]any); isObj {
			tpl, err := compileObject(sub)
			if err != nil {
				return nil, err
			}
			objTpl, ok := tpl.(objectNode)
			if !ok {
				return nil, newBadArg("partial", "wrapper value must be a plain object template")
			}
			objTpl.partial = true
			return objTpl, nil
		}
	}

	partial := false
	if rawPartial, ok := m["match:partial"]; ok {
		partial = isTruthy(rawPartial)
	}

	entries := make(map[string]Template, len(m))
	for k, v := range m {
		if k == "match:partial" {
			continue
		}
		if strings.HasPrefix(k, "match:") {
			return nil, newBadArg(strings.TrimPrefix(k, "match:"), fmt.Sprintf("operator key %q is not valid at this position", k))
		}
		tpl, err := Compile(v)
		if err != nil {
			return nil, err
		}
		entries[k] = tpl
	}
	return objectNode{entries: entries, partial: partial}, nil
}

func (n objectNode) matchAt(path string, actual any) *Diagnostic {
	actualMap, ok := actual.(map[string]any)
	if !ok {
		return failf(path, "object", actual, "expected an object, got %T", actual)
	}
	if !n.partial && len(actualMap) != len(n.entries) {
		extra := extraKeys(actualMap, n.entries)
		return failf(path, "object", actual, "object has extra keys %v and no match:partial was set", extra)
	}
	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		childActual, present := actualMap[k]
		if !present {
			return failf(joinPath(path, k), "object", nil, "missing key %q", k)
		}
		if diag := n.entries[k].matchAt(joinPath(path, k), childActual); diag != nil {
			return diag
		}
	}
	return nil
}

func extraKeys(actual map[string]any, entries map[string]Template) []string {
	var extra []string
	for k := range actual {
		if _, ok := entries[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

// arrayNode matches an actual array element-by-element, positionally.
type arrayNode struct {
	elements []Template
}

func compileArray(a []any) (Template, error) {
	elems := make([]Template, 0, len(a))
	for _, v := range a {
		tpl, err := Compile(v)
		if err != nil {
			return nil, err
		}
		elems = append(elems, tpl)
	}
	return arrayNode{elements: elems}, nil
}

func (n arrayNode) matchAt(path string, actual any) *Diagnostic {
	actualArr, ok := actual.([]any)
	if !ok {
		return failf(path, "array", actual, "expected an array, got %T", actual)
	}
	if len(actualArr) != len(n.elements) {
		return failf(path, "array", actual, "expected array of length %d, got %d", len(n.elements), len(actualArr))
	}
	for i, elemTpl := range n.elements {
		if diag := elemTpl.matchAt(fmt.Sprintf("%s[%d]", path, i), actualArr[i]); diag != nil {
			return diag
		}
	}
	return nil
}

func joinPath(parent, key string) string {
	return parent + "." + key
}

func isTruthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	default:
		return true
	}
}
