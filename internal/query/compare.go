// Package query holds the comparison operators and filter values players build
// session searches from, and their conversion to the backend's representation.
package query

import (
	"fmt"
	"strings"

	"github.com/dcrodman/mpsessions/internal/online"
)

// ComparisonOp is the operator a Setting filters with.
type ComparisonOp uint8

const (
	Equals ComparisonOp = iota
	NotEquals
	GreaterThan
	GreaterThanEquals
	LessThan
	LessThanEquals
	Near
	In
	NotIn
)

// ComparisonOps lists every defined operator in declaration order.
var ComparisonOps = []ComparisonOp{
	Equals, NotEquals, GreaterThan, GreaterThanEquals, LessThan, LessThanEquals, Near, In, NotIn,
}

var opNames = map[ComparisonOp]string{
	Equals:            "Equals",
	NotEquals:         "NotEquals",
	GreaterThan:       "GreaterThan",
	GreaterThanEquals: "GreaterThanEquals",
	LessThan:          "LessThan",
	LessThanEquals:    "LessThanEquals",
	Near:              "Near",
	In:                "In",
	NotIn:             "NotIn",
}

func (op ComparisonOp) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("ComparisonOp(%d)", uint8(op))
}

// ParseComparisonOp accepts an operator name (case-insensitive) or its symbol.
func ParseComparisonOp(s string) (ComparisonOp, error) {
	switch strings.TrimSpace(s) {
	case "=", "==":
		return Equals, nil
	case "!=":
		return NotEquals, nil
	case ">":
		return GreaterThan, nil
	case ">=":
		return GreaterThanEquals, nil
	case "<":
		return LessThan, nil
	case "<=":
		return LessThanEquals, nil
	case "~":
		return Near, nil
	}
	for _, op := range ComparisonOps {
		if strings.EqualFold(opNames[op], strings.TrimSpace(s)) {
			return op, nil
		}
	}
	return Equals, fmt.Errorf("unknown comparison operator %q", s)
}

// ToOnline converts op to the backend operator. Anything outside the defined
// operators becomes Equals.
func ToOnline(op ComparisonOp) online.ComparisonOp {
	switch op {
	case Equals:
		return online.Equals
	case NotEquals:
		return online.NotEquals
	case GreaterThan:
		return online.GreaterThan
	case GreaterThanEquals:
		return online.GreaterThanEquals
	case LessThan:
		return online.LessThan
	case LessThanEquals:
		return online.LessThanEquals
	case Near:
		return online.Near
	case In:
		return online.In
	case NotIn:
		return online.NotIn
	}
	return online.Equals
}

// FromOnline converts a backend operator. Anything outside the defined operators
// becomes Equals.
func FromOnline(op online.ComparisonOp) ComparisonOp {
	switch op {
	case online.Equals:
		return Equals
	case online.NotEquals:
		return NotEquals
	case online.GreaterThan:
		return GreaterThan
	case online.GreaterThanEquals:
		return GreaterThanEquals
	case online.LessThan:
		return LessThan
	case online.LessThanEquals:
		return LessThanEquals
	case online.Near:
		return Near
	case online.In:
		return In
	case online.NotIn:
		return NotIn
	}
	return Equals
}
