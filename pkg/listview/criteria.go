// Package listview implements the record-list view model shared by every list
// page: an in-memory record store, a predicate filter chain, derived
// aggregations, and page slicing with a page window.
package listview

import (
	"sort"
	"strings"
)

// All is the sentinel criterion value meaning "no constraint".
const All = "all"

// Criteria maps a filter name to its current value. A value of All or the
// empty string leaves the named filter inactive.
type Criteria map[string]string

// Active returns the trimmed value for key when the criterion constrains results.
func (c Criteria) Active(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	value := strings.TrimSpace(c[key])
	if value == "" || strings.EqualFold(value, All) {
		return "", false
	}
	return value, true
}

// With returns a copy of the criteria with key set to value.
func (c Criteria) With(key, value string) Criteria {
	out := c.Clone()
	out[key] = value
	return out
}

// Clone copies the criteria.
func (c Criteria) Clone() Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Normalized drops inactive entries and trims values.
func (c Criteria) Normalized() Criteria {
	out := make(Criteria, len(c))
	for k := range c {
		if v, ok := c.Active(k); ok {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether both criteria constrain the same keys to the same values.
func (c Criteria) Equal(other Criteria) bool {
	a, b := c.Normalized(), other.Normalized()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Keys returns the active keys in sorted order.
func (c Criteria) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c.Normalized() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
