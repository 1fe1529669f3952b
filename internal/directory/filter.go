package directory

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/dcrodman/mpsessions/internal/online"
)

// attributes are the values a session can be filtered on, keyed by case-folded
// setting name.
type attributes map[string]string

func sessionAttributes(session online.Session) attributes {
	fold := cases.Fold()
	attrs := make(attributes, len(session.Settings.Settings)+1)
	for name, setting := range session.Settings.Settings {
		attrs[fold.String(name)] = setting.Value
	}
	attrs[fold.String(online.SearchPresence)] = strconv.FormatBool(session.Settings.UsesPresence)
	return attrs
}

// filter is a compiled set of query settings.
type filter struct {
	conditions []condition
	// Target of the Near condition, if there is one.
	near *condition
}

type condition struct {
	key   string
	value string
	op    online.ComparisonOp
}

func newFilter(query map[string]online.QuerySetting) filter {
	fold := cases.Fold()

	var f filter
	for name, setting := range query {
		c := condition{key: fold.String(name), value: setting.Value, op: setting.Op}
		if c.op == online.Near {
			near := c
			f.near = &near
			continue
		}
		f.conditions = append(f.conditions, c)
	}
	return f
}

func (f filter) matches(attrs attributes) bool {
	for _, c := range f.conditions {
		if !c.matches(attrs) {
			return false
		}
	}
	return true
}

func (c condition) matches(attrs attributes) bool {
	value, present := attrs[c.key]

	switch c.op {
	case online.NotEquals:
		return !present || value != c.value
	case online.NotIn:
		return !present || !inList(value, c.value)
	}
	if !present {
		return false
	}

	switch c.op {
	case online.Equals:
		return value == c.value
	case online.GreaterThan:
		return compare(value, c.value) > 0
	case online.GreaterThanEquals:
		return compare(value, c.value) >= 0
	case online.LessThan:
		return compare(value, c.value) < 0
	case online.LessThanEquals:
		return compare(value, c.value) <= 0
	case online.In:
		return inList(value, c.value)
	default:
		return false
	}
}

// compare orders numerically when both values are numbers and lexically otherwise.
func compare(a, b string) int {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func inList(value, list string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

// distance is how far attrs are from the Near target. Sessions without a
// numeric value sort last.
func (f filter) distance(attrs attributes) float64 {
	target, err := strconv.ParseFloat(f.near.value, 64)
	if err != nil {
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(attrs[f.near.key], 64)
	if err != nil {
		return math.Inf(1)
	}
	return math.Abs(v - target)
}

// apply returns the results matching the filter, closest first when there is a
// Near condition, capped at max (no cap when max is non-positive).
func (f filter) apply(results []online.SearchResult, max int) []online.SearchResult {
	type candidate struct {
		result online.SearchResult
		attrs  attributes
	}
	var matched []candidate
	for _, r := range results {
		attrs := sessionAttributes(r.Session)
		if f.matches(attrs) {
			matched = append(matched, candidate{result: r, attrs: attrs})
		}
	}

	if f.near != nil {
		sort.SliceStable(matched, func(i, j int) bool {
			return f.distance(matched[i].attrs) < f.distance(matched[j].attrs)
		})
	}
	if max > 0 && len(matched) > max {
		matched = matched[:max]
	}

	out := make([]online.SearchResult, len(matched))
	for i, c := range matched {
		out[i] = c.result
	}
	return out
}
