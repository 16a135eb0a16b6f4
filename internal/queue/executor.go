package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
)

var (
	// ErrFetchFailed wraps any transport failure while fetching the queue.
	ErrFetchFailed = errors.New("queue fetch failed")
	// ErrAuthExpired is returned when the backend rejected the credential.
	ErrAuthExpired = errors.New("authentication expired")
)

// Fetcher retrieves one page of the queue from the backend.
type Fetcher interface {
	FetchQueue(ctx context.Context, q Query) (Snapshot, error)
}

// LogoutSignaler is told when the backend rejects the credential.
type LogoutSignaler interface {
	ForceLogout(reason error)
}

// Result describes the outcome of one Fetch.
type Result struct {
	Seq      uint64
	Applied  bool
	Snapshot Snapshot
}

// Executor issues queue fetches and applies only the newest result.
// Requests may complete in any order; a response is applied only if no
// later request has been issued since it was sent.
type Executor struct {
	fetcher Fetcher
	store   *Store
	auth    LogoutSignaler
	bus     *bus.Bus
	log     *zap.Logger

	seq atomic.Uint64

	// applyMu serialises the sequence check with the store write so a
	// newer response can never be overwritten by an older one that
	// passed its check first.
	applyMu sync.Mutex
}

// NewExecutor creates an executor writing into store. auth may be nil.
func NewExecutor(fetcher Fetcher, store *Store, auth LogoutSignaler, b *bus.Bus, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		fetcher: fetcher,
		store:   store,
		auth:    auth,
		bus:     b,
		log:     log,
	}
}

// Fetch requests q and, if still current when the response arrives, replaces
// the store's snapshot. Results and errors of superseded requests are
// discarded: they return a zero Result with Applied=false and a nil error.
// A 401 forces logout even when the request was superseded.
func (e *Executor) Fetch(ctx context.Context, q Query) (Result, error) {
	seq := e.seq.Add(1)
	snap, err := e.fetcher.FetchQueue(ctx, q)

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	unauthorized := apierr.IsUnauthorized(err)
	if unauthorized && e.auth != nil {
		e.auth.ForceLogout(err)
	}

	if seq != e.seq.Load() {
		e.log.Debug("discarding stale queue response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", e.seq.Load()),
			zap.Error(err),
		)
		return Result{Seq: seq}, nil
	}

	if err != nil {
		if unauthorized {
			e.bus.Emit(bus.KindQueueFetchFailed, ErrAuthExpired)
			return Result{Seq: seq}, fmt.Errorf("%w: %w", ErrAuthExpired, err)
		}
		e.log.Warn("queue fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		e.bus.Emit(bus.KindQueueFetchFailed, err)
		return Result{Seq: seq}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	e.store.ReplaceSnapshot(q.Filter.Tab, snap)
	e.log.Debug("queue snapshot applied",
		zap.Uint64("seq", seq),
		zap.Int("messages", len(snap.Messages)),
		zap.Int("total", snap.TotalCount),
	)
	return Result{Seq: seq, Applied: true, Snapshot: snap}, nil
}

// Invalidate marks every in-flight request as stale.
func (e *Executor) Invalidate() {
	e.seq.Add(1)
}

// Latest returns the most recently issued sequence number.
func (e *Executor) Latest() uint64 {
	return e.seq.Load()
}
