package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeObserver) ObservePoll(_ string, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeObserver) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.outcomes...)
}

func TestPollerTicksAndReportsOutcomes(t *testing.T) {
	obs := &fakeObserver{}
	results := []struct {
		applied bool
		err     error
	}{{true, nil}, {false, nil}, {false, errors.New("boom")}}
	var mu sync.Mutex
	calls := 0
	p := New("chat", 5*time.Millisecond, func(context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[calls%len(results)]
		calls++
		return r.applied, r.err
	}, WithObserver(obs))

	p.Start(context.Background())
	require.Eventually(t, func() bool { return len(obs.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, []string{OutcomeApplied, OutcomeStale, OutcomeError}, obs.snapshot()[:3])
	assert.False(t, p.Running())
}

func TestPollerStopCancelsInFlightTick(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	obs := &fakeObserver{}
	p := New("sessions", 5*time.Millisecond, func(ctx context.Context) (bool, error) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
		return false, ctx.Err()
	}, WithObserver(obs))

	p.Start(context.Background())
	<-entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestPollerStartIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	concurrent, maxConcurrent := 0, 0
	p := New("chat", 2*time.Millisecond, func(context.Context) (bool, error) {
		mu.Lock()
		concurrent++
		if concurrent > maxConcurrent {
			maxConcurrent = concurrent
		}
		mu.Unlock()
		time.Sleep(3 * time.Millisecond)
		mu.Lock()
		concurrent--
		mu.Unlock()
		return true, nil
	})
	p.Start(context.Background())
	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxConcurrent)
}
