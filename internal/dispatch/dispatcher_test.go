package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

type fakeJournal struct {
	mu      sync.Mutex
	entries []models.DispatchEntry
	err     error
}

func (f *fakeJournal) Record(_ context.Context, entry *models.DispatchEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return f.err
}

func (f *fakeJournal) outcomes() []models.DispatchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DispatchOutcome, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Outcome
	}
	return out
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeObserver) ObserveMutation(_, _, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func approveRequest(run func(context.Context) error, refetch *counter) Request {
	return Request{
		Action:  Action{Page: "payments", Name: "approve", RecordID: "p1", Destructive: true, Prompt: "Approve payment?"},
		ActorID: "u1",
		Run:     run,
		Refetch: refetch.inc,
	}
}

func TestDispatchSuccessRefetches(t *testing.T) {
	journal := &fakeJournal{}
	observer := &fakeObserver{}
	d := NewDispatcher(nil, nil, WithJournal(journal), WithObserver(observer))
	refetch := &counter{}

	result, err := d.Dispatch(context.Background(), approveRequest(func(context.Context) error { return nil }, refetch), Confirmed(true))
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.Equal(t, 1, refetch.count())
	assert.Equal(t, []models.DispatchOutcome{models.DispatchOutcomeSucceeded}, journal.outcomes())
	assert.Equal(t, []string{outcomeSucceeded}, observer.outcomes)
}

func TestDispatchDeclinedNeverRuns(t *testing.T) {
	journal := &fakeJournal{}
	d := NewDispatcher(nil, nil, WithJournal(journal))
	refetch := &counter{}
	ran := false

	_, err := d.Dispatch(context.Background(), approveRequest(func(context.Context) error { ran = true; return nil }, refetch), Confirmed(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConfirmationRequired))
	assert.False(t, ran)
	assert.Zero(t, refetch.count())
	assert.Equal(t, []models.DispatchOutcome{models.DispatchOutcomeDeclined}, journal.outcomes())

	_, err = d.Dispatch(context.Background(), approveRequest(func(context.Context) error { ran = true; return nil }, refetch), nil)
	assert.True(t, errors.Is(err, appErrors.ErrConfirmationRequired))
	assert.False(t, ran)
}

func TestDispatchFailureSurfacesMessageAndSkipsRefetch(t *testing.T) {
	d := NewDispatcher(nil, nil)
	refetch := &counter{}
	upstream := appErrors.Clone(appErrors.ErrValidation, "Transaction ID already used")

	_, err := d.Dispatch(context.Background(), approveRequest(func(context.Context) error { return upstream }, refetch), Confirmed(true))
	require.Error(t, err)
	assert.Equal(t, "Transaction ID already used", appErrors.FromError(err).Message)
	assert.Zero(t, refetch.count())
}

func TestDispatchRefetchFailureStillSucceeds(t *testing.T) {
	d := NewDispatcher(nil, nil)
	req := approveRequest(func(context.Context) error { return nil }, &counter{})
	req.Refetch = func(context.Context) error { return errors.New("down") }

	result, err := d.Dispatch(context.Background(), req, Confirmed(true))
	require.NoError(t, err)
	assert.False(t, result.Refreshed)
	assert.EqualError(t, result.RefetchErr, "down")
}

func TestDispatchJournalFailureIsIgnored(t *testing.T) {
	d := NewDispatcher(nil, nil, WithJournal(&fakeJournal{err: errors.New("db down")}))
	_, err := d.Dispatch(context.Background(), approveRequest(func(context.Context) error { return nil }, &counter{}), Confirmed(true))
	assert.NoError(t, err)
}

func TestDispatchRejectsConcurrentSubmissionForSameRecord(t *testing.T) {
	d := NewDispatcher(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	run := func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), approveRequest(run, &counter{}), Confirmed(true))
		done <- err
	}()
	<-started

	_, err := d.Dispatch(context.Background(), approveRequest(run, &counter{}), Confirmed(true))
	assert.True(t, errors.Is(err, appErrors.ErrMutationInFlight))

	close(release)
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	_, err = d.Dispatch(context.Background(), approveRequest(func(context.Context) error { return nil }, &counter{}), Confirmed(true))
	assert.NoError(t, err, "lock must be released after the first dispatch")
}

func TestMemoryLockerExpiry(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Now()
	l.clock = func() time.Time { return now }

	token, ok, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	assert.True(t, ok)

	require.NoError(t, l.Unlock(context.Background(), "k", token))
	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok, "stale token must not release the current holder")
}

func TestReferencedIn(t *testing.T) {
	assert.Equal(t, []string{"payments", "marks"}, ReferencedIn("User is referenced in: payments, marks."))
	assert.Nil(t, ReferencedIn("plain failure"))
	assert.True(t, IsReferenceConflict(errors.New("Cannot delete: Referenced in: sessions")))
	assert.False(t, IsReferenceConflict(errors.New("nope")))
	assert.False(t, IsReferenceConflict(nil))
}
