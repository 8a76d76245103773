package listview

import "sort"

// UnknownKey labels breakdown buckets for records whose key is missing.
const UnknownKey = "unknown"

// Value reads a numeric value from a record; ok is false when absent or invalid.
type Value[T any] func(record T) (value float64, ok bool)

// Stats is a summary of a numeric field across a record set.
type Stats struct {
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Bucket is one entry in a keyed breakdown.
type Bucket struct {
	Key   string  `json:"key"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// Average divides total by count, returning 0 for an empty set.
func Average(total float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return total / float64(count)
}

// Summarize totals value over the records accepted by pass. A nil pass accepts
// every record; missing values count towards Count but add nothing to Total.
func Summarize[T any](records []T, pass func(T) bool, value Value[T]) Stats {
	var stats Stats
	for _, r := range records {
		if pass != nil && !pass(r) {
			continue
		}
		stats.Count++
		if v, ok := value(r); ok {
			stats.Total += v
		}
	}
	stats.Average = Average(stats.Total, stats.Count)
	return stats
}

// Count returns how many records pass.
func Count[T any](records []T, pass func(T) bool) int {
	n := 0
	for _, r := range records {
		if pass == nil || pass(r) {
			n++
		}
	}
	return n
}

// Breakdown accumulates value per key over the records accepted by pass. The
// result is ordered by total descending, then key ascending.
func Breakdown[T any](records []T, pass func(T) bool, key Field[T], value Value[T]) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket
	for _, r := range records {
		if pass != nil && !pass(r) {
			continue
		}
		k, ok := key(r)
		if !ok || k == "" {
			k = UnknownKey
		}
		i, seen := index[k]
		if !seen {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[i].Count++
		if v, ok := value(r); ok {
			buckets[i].Total += v
		}
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Total != buckets[j].Total {
			return buckets[i].Total > buckets[j].Total
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

// Top keeps the first n buckets; n <= 0 keeps all of them.
func Top(buckets []Bucket, n int) []Bucket {
	if n <= 0 || len(buckets) <= n {
		return buckets
	}
	return buckets[:n]
}

// One counts a record as 1, for breakdowns by frequency.
func One[T any](T) (float64, bool) { return 1, true }
