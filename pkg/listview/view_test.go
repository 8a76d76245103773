package listview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manyRows(n int) []row {
	out := make([]row, n)
	for i := range out {
		out[i] = row{ID: fmt.Sprintf("r%02d", i), Name: fmt.Sprintf("name %d", i), Status: i%2 == 0, Fees: float64(i), Course: []string{"Maths", "Physics"}[i%2]}
	}
	return out
}

func fetchRows(rows []row) Fetcher[row] {
	return func(context.Context) ([]row, error) { return rows, nil }
}

func TestViewSnapshotPaging(t *testing.T) {
	view := NewView(rowChain(), 5)
	applied, err := view.Refresh(context.Background(), fetchRows(manyRows(15)))
	require.NoError(t, err)
	require.True(t, applied)

	view.Goto(2)
	snap := view.Snapshot()
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, 15, snap.TotalItems)
	assert.Equal(t, []string{"r05", "r06", "r07", "r08", "r09"}, ids(snap.Items))
	assert.Equal(t, tokens(1, 2, 3), snap.PageNumbers)
}

func TestViewCriteriaChangeResetsPage(t *testing.T) {
	view := NewView(rowChain(), 2)
	_, err := view.Refresh(context.Background(), fetchRows(manyRows(12)))
	require.NoError(t, err)

	view.Goto(4)
	assert.Equal(t, 4, view.Window().Page)

	changed := view.SetCriteria(Criteria{"status": "approved"})
	assert.True(t, changed)
	assert.Equal(t, 1, view.Window().Page)

	view.Goto(3)
	assert.False(t, view.SetCriteria(Criteria{"status": "approved", "course": "all"}))
	assert.Equal(t, 3, view.Window().Page, "equivalent criteria keep the page")

	assert.True(t, view.SetCriteria(Criteria{"status": "pending"}))
	assert.Equal(t, 1, view.Window().Page)
}

func TestViewClampsWhenStoreShrinks(t *testing.T) {
	view := NewView(rowChain(), 5)
	_, err := view.Refresh(context.Background(), fetchRows(manyRows(15)))
	require.NoError(t, err)
	view.Goto(3)

	_, err = view.Refresh(context.Background(), fetchRows(manyRows(7)))
	require.NoError(t, err)
	assert.Equal(t, 2, view.Snapshot().Page)

	_, err = view.Refresh(context.Background(), fetchRows(nil))
	require.NoError(t, err)
	snap := view.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 0, snap.TotalPages)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.PageNumbers)
}

func TestViewRefreshErrorLeavesStore(t *testing.T) {
	view := NewView(rowChain(), 5)
	_, err := view.Refresh(context.Background(), fetchRows(manyRows(3)))
	require.NoError(t, err)

	boom := errors.New("network down")
	applied, err := view.Refresh(context.Background(), func(context.Context) ([]row, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, applied)
	assert.Equal(t, 3, view.Store().Len())
}

func TestStaleResponseIsDropped(t *testing.T) {
	store := NewStore[row]()
	slow := store.Begin()
	fast := store.Begin()

	assert.True(t, store.Commit(fast, manyRows(2)))
	assert.False(t, store.Commit(slow, manyRows(9)))
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, fast, store.Generation())
}

func TestStaleRefreshThroughView(t *testing.T) {
	view := NewView(rowChain(), 5)
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan bool)

	go func() {
		applied, _ := view.Refresh(context.Background(), func(context.Context) ([]row, error) {
			close(started)
			<-release
			return manyRows(9), nil
		})
		done <- applied
	}()

	<-started
	applied, err := view.Refresh(context.Background(), fetchRows(manyRows(2)))
	require.NoError(t, err)
	assert.True(t, applied)

	close(release)
	assert.False(t, <-done)
	assert.Equal(t, 2, view.Store().Len())
}

func TestCancelledRefreshIsNotCommitted(t *testing.T) {
	view := NewView(rowChain(), 5)
	ctx, cancel := context.WithCancel(context.Background())
	applied, err := view.Refresh(ctx, func(context.Context) ([]row, error) {
		cancel()
		return manyRows(4), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, applied)
	assert.False(t, view.Store().Loaded())
}

func TestAggregationCriteriaAreIndependent(t *testing.T) {
	view := NewView(rowChain(), 5)
	_, err := view.Refresh(context.Background(), fetchRows(manyRows(10)))
	require.NoError(t, err)

	view.SetCriteria(Criteria{"course": "Maths"})
	view.Goto(1)
	view.SetAggregationCriteria(Criteria{"course": "Physics"})

	snap := view.Snapshot()
	for _, r := range snap.Filtered {
		assert.Equal(t, "Maths", r.Course)
	}
	for _, r := range snap.Aggregated {
		assert.Equal(t, "Physics", r.Course)
	}
	assert.Equal(t, Criteria{"course": "Maths"}, view.Criteria())
	assert.Equal(t, Criteria{"course": "Physics"}, view.AggregationCriteria())

	view.Goto(2)
	view.SetAggregationCriteria(Criteria{})
	assert.Equal(t, 1, view.Window().Page, "five Maths rows fit on one page")
}
