package listview

import (
	"strconv"
	"strings"
	"time"
)

// Field reads a scalar value from a record. ok is false when the value is
// missing, for instance when a nested relation is absent.
type Field[T any] func(record T) (value string, ok bool)

// Criterion decides whether a record satisfies one named filter. Criteria
// whose keys are inactive must pass every record.
type Criterion[T any] struct {
	Keys  []string
	Match func(record T, criteria Criteria) bool
}

// Chain is an AND-combination of independent criteria.
type Chain[T any] struct {
	criteria []Criterion[T]
}

// NewChain builds a chain from the given criteria.
func NewChain[T any](criteria ...Criterion[T]) Chain[T] {
	return Chain[T]{criteria: criteria}
}

// Keys lists every filter key understood by the chain.
func (c Chain[T]) Keys() []string {
	var keys []string
	for _, cr := range c.criteria {
		keys = append(keys, cr.Keys...)
	}
	return keys
}

// Match reports whether record satisfies every active criterion.
func (c Chain[T]) Match(record T, criteria Criteria) bool {
	for _, cr := range c.criteria {
		if !cr.Match(record, criteria) {
			return false
		}
	}
	return true
}

// Apply returns the records that pass the chain, preserving order.
func (c Chain[T]) Apply(records []T, criteria Criteria) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if c.Match(r, criteria) {
			out = append(out, r)
		}
	}
	return out
}

// Search matches when any of the fields contains the search term, ignoring case.
func Search[T any](key string, fields ...Field[T]) Criterion[T] {
	return Criterion[T]{
		Keys: []string{key},
		Match: func(record T, criteria Criteria) bool {
			term, active := criteria.Active(key)
			if !active {
				return true
			}
			term = strings.ToLower(term)
			for _, field := range fields {
				value, ok := field(record)
				if !ok {
					continue
				}
				if strings.Contains(strings.ToLower(value), term) {
					return true
				}
			}
			return false
		},
	}
}

// Equals matches the field exactly. Integer-looking values compare numerically.
func Equals[T any](key string, field Field[T]) Criterion[T] {
	return Criterion[T]{
		Keys: []string{key},
		Match: func(record T, criteria Criteria) bool {
			want, active := criteria.Active(key)
			if !active {
				return true
			}
			got, ok := field(record)
			if !ok {
				return false
			}
			return sameValue(strings.TrimSpace(got), want)
		},
	}
}

// DateRange matches when the field's calendar day lies within the inclusive
// [from, to] bounds. Missing bounds are open; unparseable record timestamps fail.
func DateRange[T any](fromKey, toKey string, field Field[T]) Criterion[T] {
	return Criterion[T]{
		Keys: []string{fromKey, toKey},
		Match: func(record T, criteria Criteria) bool {
			from, hasFrom := boundDay(criteria, fromKey)
			to, hasTo := boundDay(criteria, toKey)
			if !hasFrom && !hasTo {
				return true
			}
			raw, ok := field(record)
			if !ok {
				return false
			}
			day, ok := ParseDay(raw)
			if !ok {
				return false
			}
			if hasFrom && day.Before(from) {
				return false
			}
			if hasTo && day.After(to) {
				return false
			}
			return true
		},
	}
}

// Custom wraps an arbitrary predicate active whenever key is set.
func Custom[T any](key string, match func(record T, value string) bool) Criterion[T] {
	return Criterion[T]{
		Keys: []string{key},
		Match: func(record T, criteria Criteria) bool {
			value, active := criteria.Active(key)
			if !active {
				return true
			}
			return match(record, value)
		},
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the platform API emits.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDay parses raw and truncates it to its calendar day as written,
// without converting between zones.
func ParseDay(raw string) (time.Time, bool) {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// ValidBound reports whether raw is empty or a parseable date bound.
func ValidBound(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, All) {
		return true
	}
	_, ok := ParseDay(raw)
	return ok
}

func boundDay(criteria Criteria, key string) (time.Time, bool) {
	raw, active := criteria.Active(key)
	if !active {
		return time.Time{}, false
	}
	return ParseDay(raw)
}

func sameValue(got, want string) bool {
	if got == want {
		return true
	}
	gi, errG := strconv.ParseInt(got, 10, 64)
	wi, errW := strconv.ParseInt(want, 10, 64)
	if errG == nil && errW == nil {
		return gi == wi
	}
	return false
}
