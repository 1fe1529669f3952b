package query

import (
	"fmt"
	"strings"

	"github.com/dcrodman/mpsessions/internal/online"
)

// Setting pairs a filter value with the operator it is compared with. An empty
// value means the filter is unset.
type Setting struct {
	value string
	op    ComparisonOp
}

func NewSetting(value string, op ComparisonOp) Setting {
	return Setting{value: value, op: op}
}

// FromOnlineSetting converts a backend query setting.
func FromOnlineSetting(s online.QuerySetting) Setting {
	return NewSetting(s.Value, FromOnline(s.Op))
}

func (s Setting) Value() string {
	return s.value
}

func (s Setting) Op() ComparisonOp {
	return s.op
}

// IsSet reports whether the setting carries a value to filter on.
func (s Setting) IsSet() bool {
	return s.value != ""
}

// Online converts the setting to the backend's representation.
func (s Setting) Online() online.QuerySetting {
	return online.QuerySetting{Value: s.value, Op: ToOnline(s.op)}
}

func (s Setting) String() string {
	return fmt.Sprintf("%s %q", s.op, s.value)
}

// ParseSetting parses "key=op:value" (e.g. "MapName=NotEquals:Arena") or the
// shorthand "key=value", which compares with Equals.
func ParseSetting(s string) (string, Setting, error) {
	key, rest, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", Setting{}, fmt.Errorf("malformed query setting %q, expected key=op:value", s)
	}

	opName, value, hasOp := strings.Cut(rest, ":")
	if !hasOp {
		return key, NewSetting(rest, Equals), nil
	}
	op, err := ParseComparisonOp(opName)
	if err != nil {
		// The value itself may contain a colon (e.g. an address).
		return key, NewSetting(rest, Equals), nil
	}
	return key, NewSetting(value, op), nil
}
