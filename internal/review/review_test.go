package review

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/store"
)

type fakeReviewer struct {
	mu       sync.Mutex
	fail     map[int64]error
	reviewed []int64
	reasons  map[int64]string
}

func (f *fakeReviewer) Review(_ context.Context, id int64, reasoning string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[id]; ok {
		return err
	}
	f.reviewed = append(f.reviewed, id)
	if f.reasons == nil {
		f.reasons = make(map[int64]string)
	}
	f.reasons[id] = reasoning
	return nil
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

func storeWith(ids ...int64) *queue.Store {
	msgs := make([]queue.Message, len(ids))
	for i, id := range ids {
		msgs[i] = queue.Message{ID: id}
	}
	s := queue.NewStore(nil)
	s.ReplaceSnapshot(filter.TabPending, queue.Snapshot{Messages: msgs, TotalCount: len(ids)})
	return s
}

func TestBulkReviewWithOneInvalidID(t *testing.T) {
	store := storeWith(1, 2, 3)
	reviewer := &fakeReviewer{fail: map[int64]error{
		2: fmt.Errorf("review 2: %w", apierr.ErrNotFound),
	}}
	m := NewManager(reviewer, store, nil, 2, nil, nil)
	m.SelectAll()

	res := m.BulkMarkReviewed(context.Background(), m.Selected())

	assert.Equal(t, []int64{1, 3}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[2], apierr.ErrNotFound)
	assert.True(t, res.Partial())

	assert.Equal(t, []int64{2}, store.IDs())
	assert.Equal(t, []int64{2}, store.Selected(), "failed id stays selected")
	assert.Equal(t, 1, store.Counts().Total)
}

func TestBulkReviewDedupesIDs(t *testing.T) {
	store := storeWith(1, 2)
	reviewer := &fakeReviewer{}
	m := NewManager(reviewer, store, nil, 4, nil, nil)

	res := m.BulkMarkReviewed(context.Background(), []int64{1, 1, 2, 1})
	assert.Equal(t, []int64{1, 2}, res.Succeeded)
	assert.Len(t, reviewer.reviewed, 2)
	assert.Empty(t, store.IDs())
}

func TestBulkReviewEmpty(t *testing.T) {
	m := NewManager(&fakeReviewer{}, storeWith(1), nil, 4, nil, nil)
	res := m.BulkMarkReviewed(context.Background(), nil)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.False(t, res.Partial())
}

func TestBulkReviewUnauthorizedLogsOutOnce(t *testing.T) {
	store := storeWith(1, 2, 3)
	reviewer := &fakeReviewer{fail: map[int64]error{
		1: apierr.ErrUnauthorized,
		2: apierr.ErrUnauthorized,
		3: apierr.ErrUnauthorized,
	}}
	auth := &fakeAuth{}
	m := NewManager(reviewer, store, auth, 3, nil, nil)

	res := m.BulkMarkReviewed(context.Background(), []int64{1, 2, 3})
	assert.Len(t, res.Failed, 3)
	assert.Empty(t, res.Succeeded)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, []int64{1, 2, 3}, store.IDs())
}

func TestMarkReviewedWithReason(t *testing.T) {
	store := storeWith(7)
	reviewer := &fakeReviewer{}
	m := NewManager(reviewer, store, nil, 1, nil, nil)

	require.NoError(t, m.MarkReviewed(context.Background(), 7, "spam, confirmed"))
	assert.Equal(t, "spam, confirmed", reviewer.reasons[7])
	assert.Empty(t, store.IDs())
}

func TestToggleSelection(t *testing.T) {
	store := storeWith(1, 2)
	m := NewManager(&fakeReviewer{}, store, nil, 1, nil, nil)

	assert.True(t, m.Toggle(1))
	assert.False(t, m.Toggle(1))
	assert.False(t, m.Toggle(9), "not visible")
	assert.Empty(t, m.Selected())

	assert.Equal(t, 2, m.SelectAll())
	m.Deselect(2)
	assert.Equal(t, []int64{1}, m.Selected())
	m.Clear()
	assert.Empty(t, m.Selected())
}

type memJournal struct {
	entries []store.ReviewEntry
}

func (j *memJournal) AppendReviews(entries []store.ReviewEntry) error {
	j.entries = append(j.entries, entries...)
	return nil
}

func TestBulkReviewRecordsJournal(t *testing.T) {
	journal := &memJournal{}
	reviewer := &fakeReviewer{fail: map[int64]error{2: apierr.ErrNotFound}}
	m := NewManager(reviewer, storeWith(1, 2), nil, 2, nil, nil).WithJournal(journal)

	m.BulkMarkReviewed(context.Background(), []int64{1, 2})

	require.Len(t, journal.entries, 2)
	outcomes := map[int64]store.ReviewOutcome{}
	for _, e := range journal.entries {
		outcomes[e.MessageID] = e.Outcome
	}
	assert.Equal(t, store.OutcomeReviewed, outcomes[1])
	assert.Equal(t, store.OutcomeFailed, outcomes[2])
}

func TestBulkReviewJournalsReason(t *testing.T) {
	journal := &memJournal{}
	reviewer := &fakeReviewer{fail: map[int64]error{2: apierr.ErrNotFound}}
	m := NewManager(reviewer, storeWith(1, 2), nil, 2, nil, nil).WithJournal(journal)

	m.BulkReview(context.Background(), []int64{1, 2}, "spam link")

	require.Len(t, journal.entries, 2)
	for _, e := range journal.entries {
		assert.Equal(t, "spam link", e.Reason, "message %d", e.MessageID)
	}
}
