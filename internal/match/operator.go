package match

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mcpconductor/conductor/internal/conductorerr"
)

// knownOperators lists every operator name for the UnknownMatcher nearest-
// name suggestion (spec §4.D: "MUST suggest the closest known name
// (Levenshtein ≤ 2)").
var knownOperators = []string{
	"type", "regex", "contains", "startsWith", "endsWith", "length",
	"arrayLength", "arrayContains", "arrayElements", "between", "range",
	"greaterThan", "lessThan", "equals", "notEquals", "approximately",
	"multipleOf", "dateFormat", "dateAfter", "dateBefore", "dateEquals",
	"dateAge", "extractField", "partial", "not", "exists",
}

func newBadArg(operator, message string) *conductorerr.Error {
	return conductorerr.New(conductorerr.BadPatternArgument, "match:%s: %s", operator, message)
}

func newUnknownMatcher(name string) *conductorerr.Error {
	err := conductorerr.New(conductorerr.UnknownMatcher, "unknown matcher %q", name)
	if best, ok := nearestOperator(name); ok {
		return err.WithSuggestion(best)
	}
	return err
}

func nearestOperator(name string) (string, bool) {
	best := ""
	bestDist := 3 // strictly greater than the "≤ 2" threshold
	for _, candidate := range knownOperators {
		d := levenshtein.ComputeDistance(name, candidate)
		if d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// compileOperatorString parses a "match:<name>[:<rest>]" string into a
// Template. Operators whose argument is itself a pattern (arrayContains,
// arrayElements's string shorthand, not) recursively compile that argument.
func compileOperatorString(s string) (Template, error) {
	body := strings.TrimPrefix(s, "match:")
	name := body
	rest := ""
	hasArg := false
	if idx := strings.Index(body, ":"); idx >= 0 {
		name = body[:idx]
		rest = body[idx+1:]
		hasArg = true
	}

	switch name {
	case "type":
		return typeNode{want: rest}, nil
	case "regex":
		return newRegexNode(rest)
	case "contains":
		return containsNode{sub: rest}, nil
	case "startsWith":
		return startsWithNode{prefix: rest}, nil
	case "endsWith":
		return endsWithNode{suffix: rest}, nil
	case "length":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, newBadArg(name, "argument must be an integer")
		}
		return lengthNode{want: n}, nil
	case "arrayLength":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, newBadArg(name, "argument must be an integer")
		}
		return arrayLengthNode{want: n}, nil
	case "arrayContains":
		inner, err := compileValueArg(rest)
		if err != nil {
			return nil, err
		}
		return arrayContainsNode{elementTemplate: inner}, nil
	case "arrayElements":
		if !strings.HasPrefix(rest, "match:") {
			return nil, newBadArg(name, "string form requires a nested match:* operator as its argument")
		}
		inner, err := Compile(rest)
		if err != nil {
			return nil, err
		}
		return arrayElementsNode{elementTemplate: inner}, nil
	case "between", "range":
		lo, hi, err := splitTwoFloats(name, rest)
		if err != nil {
			return nil, err
		}
		return betweenNode{lo: lo, hi: hi}, nil
	case "greaterThan":
		n, err := parseFloatArg(name, rest)
		if err != nil {
			return nil, err
		}
		return compareNode{op: opGT, bound: n}, nil
	case "lessThan":
		n, err := parseFloatArg(name, rest)
		if err != nil {
			return nil, err
		}
		return compareNode{op: opLT, bound: n}, nil
	case "equals":
		n, err := parseFloatArg(name, rest)
		if err != nil {
			return nil, err
		}
		return compareNode{op: opEQ, bound: n}, nil
	case "notEquals":
		n, err := parseFloatArg(name, rest)
		if err != nil {
			return nil, err
		}
		return compareNode{op: opNE, bound: n}, nil
	case "approximately":
		n, tol, err := splitTwoFloats(name, rest)
		if err != nil {
			return nil, err
		}
		return approximatelyNode{target: n, tolerance: tol}, nil
	case "multipleOf":
		n, err := parseFloatArg(name, rest)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, newBadArg(name, "argument must not be zero")
		}
		return multipleOfNode{of: n}, nil
	case "dateFormat":
		return dateFormatNode{format: rest}, nil
	case "dateAfter":
		return newDateCompareNode(name, rest, dateAfter)
	case "dateBefore":
		return newDateCompareNode(name, rest, dateBefore)
	case "dateEquals":
		return newDateCompareNode(name, rest, dateEquals)
	case "dateAge":
		d, err := parseFlexDuration(rest)
		if err != nil {
			return nil, newBadArg(name, err.Error())
		}
		return dateAgeNode{max: d}, nil
	case "extractField":
		return nil, newBadArg(name, "must be used as an object key with a sibling \"value\" field, not as a standalone pattern")
	case "partial":
		return nil, newBadArg(name, "must be used as an object key (match:partial), not as a standalone pattern")
	case "not":
		if !hasArg {
			return nil, newBadArg(name, "requires a subpattern argument")
		}
		inner, err := Compile(rest)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case "exists":
		return existsNode{}, nil
	default:
		return nil, newUnknownMatcher(name)
	}
}

// compileValueArg parses the string argument of operators like arrayContains
// that accept "a value or pattern": a nested match:* operator, strict JSON,
// a lenient brace/bracket literal (to support the shorthand the spec shows,
// e.g. match:arrayContains:{name:echo}), or failing both, a raw string.
func compileValueArg(s string) (Template, error) {
	if strings.HasPrefix(s, "match:") {
		return Compile(s)
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return Compile(v)
	}
	if v, err := parseLenientLiteral(s); err == nil {
		return Compile(v)
	}
	return Compile(s)
}

func parseFloatArg(op, s string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, newBadArg(op, "argument must be a number")
	}
	return n, nil
}

func splitTwoFloats(op, s string) (float64, float64, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, newBadArg(op, "requires two colon-separated numeric arguments")
	}
	a, err := parseFloatArg(op, parts[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseFloatArg(op, parts[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
