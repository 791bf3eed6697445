package wire

import "encoding/json"

// ID is a JSON-RPC request identifier. The spec permits either a string or a
// number on the wire; the harness always originates string ids but must
// faithfully echo whatever an id round-trips as when correlating responses.
type ID struct {
	Value any
}

// NewID wraps a string id. The harness always assigns ids as strings.
func NewID(s string) *ID {
	return &ID{Value: s}
}

func (id *ID) MarshalJSON() ([]byte, error) {
	if id == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.Value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	id.Value = v
	return nil
}

// String renders the id for logging and map keys.
func (id *ID) String() string {
	if id == nil || id.Value == nil {
		return "<nil>"
	}
	switch v := id.Value.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err.Error()
		}
		return string(b)
	}
}

// IsEmpty reports whether this is a missing id (i.e. a notification).
func (id *ID) IsEmpty() bool {
	return id == nil || id.Value == nil
}

// Equal compares two ids by underlying type first, then value, so a string
// "1" and a number 1 are treated as distinct per JSON-RPC semantics. Two ids
// that render identically through String() but originated as different wire
// types (a quoted string vs. a bare number) never compare equal.
func (id *ID) Equal(other *ID) bool {
	if id.IsEmpty() || other.IsEmpty() {
		return id.IsEmpty() == other.IsEmpty()
	}
	_, aIsString := id.Value.(string)
	_, bIsString := other.Value.(string)
	if aIsString != bIsString {
		return false
	}
	if aIsString {
		return id.Value.(string) == other.Value.(string)
	}
	// Both numbers (or some other non-string JSON scalar): compare through
	// the marshaled form so 1 and 1.0 still compare equal.
	return id.String() == other.String()
}
