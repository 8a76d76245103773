package listview

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fees(r row) (float64, bool) { return r.Fees, true }

func approved(r row) bool { return r.Status }

func TestSummarizeApprovedOnly(t *testing.T) {
	rows := []row{{Status: false, Fees: 100}, {Status: true, Fees: 200}, {Status: true, Fees: 50}}
	stats := Summarize(rows, approved, fees)
	assert.Equal(t, 250.0, stats.Total)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 125.0, stats.Average)
}

func TestAverageOfEmptySetIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Average(0, 0))
	stats := Summarize([]row{{Status: false, Fees: 10}}, approved, fees)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0.0, stats.Average)
	assert.False(t, math.IsNaN(stats.Average))
}

func TestSummarizeCountsMissingValues(t *testing.T) {
	rows := []row{{Fees: 10}, {Fees: -1}}
	stats := Summarize(rows, nil, func(r row) (float64, bool) { return r.Fees, r.Fees >= 0 })
	assert.Equal(t, 10.0, stats.Total)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 5.0, stats.Average)
}

func TestBreakdownSortedAndConsistentWithTotal(t *testing.T) {
	rows := []row{
		{Course: "Maths", Status: true, Fees: 100},
		{Course: "Physics", Status: true, Fees: 300},
		{Course: "Maths", Status: true, Fees: 250},
		{Course: "", Status: true, Fees: 5},
		{Course: "Chemistry", Status: false, Fees: 999},
	}
	course := func(r row) (string, bool) { return r.Course, r.Course != "" }

	buckets := Breakdown(rows, approved, course, fees)
	assert.Equal(t, []Bucket{
		{Key: "Maths", Total: 350, Count: 2},
		{Key: "Physics", Total: 300, Count: 1},
		{Key: UnknownKey, Total: 5, Count: 1},
	}, buckets)

	var sum float64
	for _, b := range buckets {
		sum += b.Total
	}
	assert.Equal(t, Summarize(rows, approved, fees).Total, sum)
}

func TestBreakdownTiesOrderedByKey(t *testing.T) {
	rows := []row{{Course: "b"}, {Course: "a"}, {Course: "c"}}
	buckets := Breakdown(rows, nil, func(r row) (string, bool) { return r.Course, true }, One[row])
	assert.Equal(t, []string{"a", "b", "c"}, []string{buckets[0].Key, buckets[1].Key, buckets[2].Key})
}

func TestTop(t *testing.T) {
	buckets := []Bucket{{Key: "a"}, {Key: "b"}, {Key: "c"}}
	assert.Len(t, Top(buckets, 2), 2)
	assert.Len(t, Top(buckets, 5), 3)
	assert.Len(t, Top(buckets, 0), 3)
}

func TestCount(t *testing.T) {
	rows := []row{{Status: true}, {Status: false}, {Status: true}}
	assert.Equal(t, 2, Count(rows, approved))
	assert.Equal(t, 3, Count(rows, nil))
}
