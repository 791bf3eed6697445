// Package conductorerr defines the error taxonomy shared by every component
// of the harness, mirroring the way the JSON-RPC error codes in the teacher
// codebase are centralized in a single reusable type.
package conductorerr

import "fmt"

// Kind identifies which spec-defined error category an Error belongs to.
type Kind string

const (
	ConfigInvalid          Kind = "ConfigInvalid"
	LaunchFailed           Kind = "LaunchFailed"
	StartupTimeout         Kind = "StartupTimeout"
	HandshakeFailed        Kind = "HandshakeFailed"
	ReadTimeout            Kind = "ReadTimeout"
	TransportClosed        Kind = "TransportClosed"
	ServerExited           Kind = "ServerExited"
	MatchMismatch          Kind = "MatchMismatch"
	UnknownMatcher         Kind = "UnknownMatcher"
	BadPatternArgument     Kind = "BadPatternArgument"
	ParseError             Kind = "ParseError"
	UnexpectedLateResponse Kind = "UnexpectedLateResponse"
	IdMismatch             Kind = "IdMismatch"
)

// Error is the harness's uniform error type. Every component returns this
// type (wrapped, where useful) instead of ad-hoc errors so that callers can
// switch on Kind without string matching.
type Error struct {
	Kind    Kind
	Message string
	Path    string // JSON pointer or field name, when applicable
	Suggest string // nearest-name suggestion, when applicable
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (at %s)", msg, e.Path)
	}
	if e.Suggest != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, e.Suggest)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind around an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPath returns a copy of e annotated with a JSON-pointer-like path.
func (e *Error) WithPath(path string) *Error {
	clone := *e
	clone.Path = path
	return &clone
}

// WithSuggestion returns a copy of e annotated with a nearest-name suggestion.
func (e *Error) WithSuggestion(name string) *Error {
	clone := *e
	clone.Suggest = name
	return &clone
}
