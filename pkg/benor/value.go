package benor

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is what a node proposes or decides in a round.
type Value int8

const (
	Undefined Value = -1
	Zero      Value = 0
	One       Value = 1
	// Unknown ("?") means no value is safe to propose this round.
	Unknown Value = 2
)

// ValueOf converts 0 and 1; anything else is Unknown.
func ValueOf(v int) Value {
	switch v {
	case 0:
		return Zero
	case 1:
		return One
	}
	return Unknown
}

// IsBinary reports whether v is 0 or 1.
func (v Value) IsBinary() bool {
	return v == Zero || v == One
}

func (v Value) String() string {
	switch v {
	case Zero:
		return "0"
	case One:
		return "1"
	case Unknown:
		return "?"
	case Undefined:
		return "undefined"
	}
	return "invalid(" + strconv.Itoa(int(v)) + ")"
}

// MarshalJSON encodes 0 and 1 as numbers, Unknown as "?" and Undefined as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v {
	case Zero:
		return []byte("0"), nil
	case One:
		return []byte("1"), nil
	case Undefined:
		return []byte("null"), nil
	}
	return []byte(`"?"`), nil
}

// UnmarshalJSON accepts whatever a peer sent. Only the numbers 0 and 1 count as
// votes; null is Undefined and every other payload collapses to Unknown.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = Undefined
		return nil
	}
	if len(b) == 0 || b[0] == '"' {
		*v = Unknown
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		switch n.String() {
		case "0":
			*v = Zero
			return nil
		case "1":
			*v = One
			return nil
		}
	}
	*v = Unknown
	return nil
}
