package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/modq/internal/queue"
)

// instantScheduler fires every delay immediately and counts them.
type instantScheduler struct {
	mu    sync.Mutex
	calls int
}

func (s *instantScheduler) After(time.Duration) <-chan time.Time {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (s *instantScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type pollResult struct {
	snap queue.Snapshot
	err  error
}

type fakeIngestBackend struct {
	mu        sync.Mutex
	ingestErr error
	block     chan struct{}
	polls     []pollResult
	pollCount int
	lastQuery queue.Query
}

func (f *fakeIngestBackend) Ingest(ctx context.Context, limit, daysBack int) (IngestReport, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return IngestReport{}, ctx.Err()
		}
	}
	if f.ingestErr != nil {
		return IngestReport{}, f.ingestErr
	}
	return IngestReport{IngestedCount: limit, TotalFetched: limit}, nil
}

func (f *fakeIngestBackend) FetchQueue(ctx context.Context, q queue.Query) (queue.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	i := f.pollCount
	f.pollCount++
	if i < len(f.polls) {
		return f.polls[i].snap, f.polls[i].err
	}
	return queue.Snapshot{}, nil
}

func (f *fakeIngestBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCount
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) Refetch(context.Context) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeAuth struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeAuth) ForceLogout(error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
}

func (a *fakeAuth) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func pending(ids ...int64) queue.Snapshot {
	msgs := make([]queue.Message, len(ids))
	for i, id := range ids {
		msgs[i] = queue.Message{ID: id}
	}
	return queue.Snapshot{Messages: msgs, TotalCount: len(ids)}
}

// stalledScheduler never fires; waiting reports each requested delay.
type stalledScheduler struct {
	waiting chan time.Duration
}

func (s *stalledScheduler) After(d time.Duration) <-chan time.Time {
	s.waiting <- d
	return make(chan time.Time)
}
