// Package review marks queue messages as reviewed, one at a time or in bulk,
// and owns the selection the bulk action works on.
package review

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/store"
)

const defaultConcurrency = 4

// Reviewer submits one review decision to the backend.
type Reviewer interface {
	Review(ctx context.Context, id int64, reasoning string) error
}

// Journal records review outcomes locally.
type Journal interface {
	AppendReviews(entries []store.ReviewEntry) error
}

// BulkResult reports every requested id as either succeeded or failed.
type BulkResult struct {
	Succeeded []int64
	Failed    map[int64]error
}

// Partial reports whether some but not all ids failed.
func (r BulkResult) Partial() bool {
	return len(r.Failed) > 0 && len(r.Succeeded) > 0
}

// Manager coordinates selection and review requests against the store.
type Manager struct {
	reviewer    Reviewer
	store       *queue.Store
	auth        queue.LogoutSignaler
	bus         *bus.Bus
	logger      *zap.Logger
	concurrency int
	journal     Journal
}

// NewManager creates a manager. concurrency bounds in-flight review requests.
func NewManager(reviewer Reviewer, store *queue.Store, auth queue.LogoutSignaler, concurrency int, b *bus.Bus, logger *zap.Logger) *Manager {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		reviewer:    reviewer,
		store:       store,
		auth:        auth,
		bus:         b,
		logger:      logger,
		concurrency: concurrency,
	}
}

// WithJournal makes the manager log every settled review to j.
func (m *Manager) WithJournal(j Journal) *Manager {
	m.journal = j
	return m
}

// Select adds a visible id to the selection.
func (m *Manager) Select(id int64) bool { return m.store.Select(id) }

// Deselect removes id from the selection.
func (m *Manager) Deselect(id int64) { m.store.Deselect(id) }

// Toggle flips the selection of id and returns whether it is now selected.
func (m *Manager) Toggle(id int64) bool {
	if m.store.IsSelected(id) {
		m.store.Deselect(id)
		return false
	}
	return m.store.Select(id)
}

// SelectAll selects every visible message.
func (m *Manager) SelectAll() int { return m.store.SelectAll(m.store.IDs()) }

// Clear empties the selection.
func (m *Manager) Clear() { m.store.ClearSelection() }

// Selected returns the selected ids in display order.
func (m *Manager) Selected() []int64 { return m.store.Selected() }

// MarkReviewed reviews a single message and drops it from the view on success.
func (m *Manager) MarkReviewed(ctx context.Context, id int64, reasoning string) error {
	res := m.BulkReview(ctx, []int64{id}, reasoning)
	return res.Failed[id]
}

// BulkMarkReviewed reviews ids with no reasoning attached.
func (m *Manager) BulkMarkReviewed(ctx context.Context, ids []int64) BulkResult {
	return m.BulkReview(ctx, ids, "")
}

// BulkReview issues one review request per distinct id. Succeeded ids are
// removed from the store; failed ids stay visible and selected.
func (m *Manager) BulkReview(ctx context.Context, ids []int64, reasoning string) BulkResult {
	type outcome struct {
		id  int64
		err error
	}

	res := BulkResult{Failed: make(map[int64]error)}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return res
	}

	var logoutOnce sync.Once
	p := pool.NewWithResults[outcome]().WithMaxGoroutines(m.concurrency)
	for _, id := range ids {
		p.Go(func() outcome {
			err := m.reviewer.Review(ctx, id, reasoning)
			if apierr.IsUnauthorized(err) && m.auth != nil {
				logoutOnce.Do(func() { m.auth.ForceLogout(err) })
			}
			return outcome{id: id, err: err}
		})
	}

	for _, o := range p.Wait() {
		if o.err != nil {
			res.Failed[o.id] = o.err
			m.logger.Warn("review failed", zap.Int64("message_id", o.id), zap.Error(o.err))
			continue
		}
		res.Succeeded = append(res.Succeeded, o.id)
	}
	slices.Sort(res.Succeeded)

	removed := m.store.RemoveByIDs(res.Succeeded)
	m.logger.Info("bulk review settled",
		zap.Int("requested", len(ids)),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("removed", removed),
	)
	m.record(res, reasoning)
	m.bus.Emit(bus.KindReviewSettled, res)
	return res
}

func (m *Manager) record(res BulkResult, reasoning string) {
	if m.journal == nil {
		return
	}
	now := time.Now()
	entries := make([]store.ReviewEntry, 0, len(res.Succeeded)+len(res.Failed))
	for _, id := range res.Succeeded {
		entries = append(entries, store.ReviewEntry{MessageID: id, Outcome: store.OutcomeReviewed, Reason: reasoning, ReviewedAt: now})
	}
	for id, err := range res.Failed {
		entries = append(entries, store.ReviewEntry{MessageID: id, Outcome: store.OutcomeFailed, Reason: reasoning, Detail: err.Error(), ReviewedAt: now})
	}
	if err := m.journal.AppendReviews(entries); err != nil {
		m.logger.Warn("failed to record reviews", zap.Error(err))
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
