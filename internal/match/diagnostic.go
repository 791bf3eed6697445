package match

import "fmt"

// Diagnostic describes a single matcher failure. A nil *Diagnostic means the
// match passed. Path is a JSON-pointer-like dotted path into the actual
// value, rooted at "$".
type Diagnostic struct {
	Path     string
	Matcher  string
	Expected any
	Actual   any
	Message  string
}

func fail(path, matcher, message string, expected, actual any) *Diagnostic {
	return &Diagnostic{Path: path, Matcher: matcher, Expected: expected, Actual: actual, Message: message}
}

func failf(path, matcher string, actual any, format string, args ...any) *Diagnostic {
	return &Diagnostic{Path: path, Matcher: matcher, Actual: actual, Message: fmt.Sprintf(format, args...)}
}

func (d *Diagnostic) String() string {
	if d == nil {
		return "<pass>"
	}
	return fmt.Sprintf("%s: %s (path=%s expected=%v actual=%v)", d.Matcher, d.Message, d.Path, d.Expected, d.Actual)
}
