package wire

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Error mirrors the JSON-RPC 2.0 error object and implements the Go error
// interface so it can be returned and compared like any other error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Frame is a complete JSON-RPC message: request, response, or notification.
// The harness never needs to distinguish the three at the type level since a
// test author writes a raw request object and compares a raw response
// object; a single permissive struct with optional fields, exactly as the
// teacher's shared.Message unifies all three wire shapes, keeps the framer
// and the matcher free of a discriminated union they'd otherwise have to
// maintain in lockstep with the protocol.
type Frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  *string         `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the frame carries both a method and an id.
func (f *Frame) IsRequest() bool {
	return f.Method != nil && !f.ID.IsEmpty()
}

// IsNotification reports whether the frame carries a method but no id.
func (f *Frame) IsNotification() bool {
	return f.Method != nil && f.ID.IsEmpty()
}

// IsResponse reports whether the frame carries an id but no method.
func (f *Frame) IsResponse() bool {
	return f.Method == nil && !f.ID.IsEmpty()
}

// NewRequest builds a request frame with params marshaled from v.
func NewRequest(id *ID, method string, v any) (*Frame, error) {
	raw, err := marshalParams(v)
	if err != nil {
		return nil, err
	}
	return &Frame{JSONRPC: Version, ID: id, Method: &method, Params: raw}, nil
}

// NewNotification builds a notification frame (no id).
func NewNotification(method string, v any) (*Frame, error) {
	raw, err := marshalParams(v)
	if err != nil {
		return nil, err
	}
	return &Frame{JSONRPC: Version, Method: &method, Params: raw}, nil
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}

// UnmarshalResult decodes the frame's result into v.
func (f *Frame) UnmarshalResult(v any) error {
	if f.Result == nil {
		return fmt.Errorf("frame has no result")
	}
	return json.Unmarshal(f.Result, v)
}

// AsAny decodes the whole frame into a generic map/slice tree, the shape the
// pattern matcher operates on.
func (f *Frame) AsAny() (any, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
