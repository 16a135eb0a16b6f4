package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/queue"
)

type item struct {
	evt Event
	err error
}

type fakeStream struct {
	items     chan item
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{items: make(chan item, 16), closed: make(chan struct{})}
}

func (f *fakeStream) Next() (Event, error) {
	select {
	case it := <-f.items:
		return it.evt, it.err
	case <-f.closed:
		return Event{}, io.ErrClosedPipe
	}
}

func (f *fakeStream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type fakeOpener struct {
	stream *fakeStream
	err    error
	opens  int
}

func (o *fakeOpener) OpenScoreStream(context.Context) (Stream, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.stream, nil
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

func score(v float64) *float64 { return &v }

func waitFor(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func newStore(b *bus.Bus) *queue.Store {
	s := queue.NewStore(b)
	s.ReplaceSnapshot(filter.TabPending, queue.Snapshot{
		Messages:      []queue.Message{{ID: 1}, {ID: 2}},
		TotalCount:    2,
		UnscoredCount: 2,
	})
	return s
}

func TestScoredEventPatchesStore(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("queue.", 16)
	defer unsub()

	store := newStore(b)
	waitFor(t, ch, bus.KindQueueChanged)

	stream := newFakeStream()
	sub := NewSubscriber(&fakeOpener{stream: stream}, store, nil, b, nil)
	require.NoError(t, sub.Open(context.Background()))
	defer sub.Close()

	stream.items <- item{evt: Event{Kind: EventScored, MessageID: 2, Patch: queue.Patch{ModerationScore: score(0.6)}}}
	evt := waitFor(t, ch, bus.KindQueueChanged)
	assert.Equal(t, "patch", evt.Payload)

	msg, ok := store.Get(2)
	require.True(t, ok)
	assert.Equal(t, 0.6, msg.Score())
	assert.Equal(t, 1, store.Counts().Unscored)
}

func TestScoredEventForUnknownIDIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("live.", 16)
	defer unsub()

	store := newStore(nil)
	before := store.Messages()

	stream := newFakeStream()
	sub := NewSubscriber(&fakeOpener{stream: stream}, store, nil, b, nil)
	require.NoError(t, sub.Open(context.Background()))

	stream.items <- item{evt: Event{Kind: EventScored, MessageID: 99, Patch: queue.Patch{ModerationScore: score(0.9)}}}
	stream.items <- item{evt: Event{Kind: EventWaiting}}
	waitFor(t, ch, bus.KindLiveWaiting)

	assert.Equal(t, before, store.Messages())
	assert.Equal(t, 2, store.Counts().Unscored)
	assert.True(t, sub.IsOpen())
	sub.Close()
}

func TestOpenTwiceFails(t *testing.T) {
	opener := &fakeOpener{stream: newFakeStream()}
	sub := NewSubscriber(opener, newStore(nil), nil, nil, nil)

	require.NoError(t, sub.Open(context.Background()))
	defer sub.Close()
	assert.ErrorIs(t, sub.Open(context.Background()), ErrAlreadyOpen)
	assert.Equal(t, 1, opener.opens)
}

func TestTransportErrorClosesWithoutReconnect(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("live.", 16)
	defer unsub()

	stream := newFakeStream()
	opener := &fakeOpener{stream: stream}
	sub := NewSubscriber(opener, newStore(nil), nil, b, nil)
	require.NoError(t, sub.Open(context.Background()))
	waitFor(t, ch, bus.KindLiveOpened)

	boom := errors.New("connection reset")
	stream.items <- item{err: boom}

	evt := waitFor(t, ch, bus.KindLiveClosed)
	closed, ok := evt.Payload.(Closed)
	require.True(t, ok)
	assert.ErrorIs(t, closed.Err, boom)
	assert.False(t, sub.IsOpen())
	assert.Equal(t, 1, opener.opens)
}

func TestUnauthorizedStreamForcesLogout(t *testing.T) {
	auth := &fakeAuth{}
	sub := NewSubscriber(&fakeOpener{err: apierr.ErrUnauthorized}, newStore(nil), auth, nil, nil)

	err := sub.Open(context.Background())
	assert.ErrorIs(t, err, apierr.ErrUnauthorized)
	assert.False(t, sub.IsOpen())
	assert.Equal(t, 1, auth.calls)
}

func TestCloseReportsLocalClose(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("live.", 16)
	defer unsub()

	sub := NewSubscriber(&fakeOpener{stream: newFakeStream()}, newStore(nil), nil, b, nil)
	require.NoError(t, sub.Open(context.Background()))
	sub.Close()

	evt := waitFor(t, ch, bus.KindLiveClosed)
	assert.NoError(t, evt.Payload.(Closed).Err)
	assert.False(t, sub.IsOpen())

	sub.Close()
}

func TestDroppedStreamUnauthorizedForcesLogout(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("live.", 16)
	defer unsub()

	auth := &fakeAuth{}
	stream := newFakeStream()
	sub := NewSubscriber(&fakeOpener{stream: stream}, newStore(nil), auth, b, nil)
	require.NoError(t, sub.Open(context.Background()))
	waitFor(t, ch, bus.KindLiveOpened)

	stream.items <- item{err: apierr.ErrUnauthorized}

	evt := waitFor(t, ch, bus.KindLiveClosed)
	assert.ErrorIs(t, evt.Payload.(Closed).Err, apierr.ErrUnauthorized)
	auth.mu.Lock()
	assert.Equal(t, 1, auth.calls)
	auth.mu.Unlock()
	assert.False(t, sub.IsOpen())
}

type blockingOpener struct {
	started chan struct{}
	release chan struct{}
	stream  *fakeStream
}

func (o *blockingOpener) OpenScoreStream(ctx context.Context) (Stream, error) {
	close(o.started)
	select {
	case <-o.release:
		return o.stream, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestConnectDoesNotHoldLock(t *testing.T) {
	opener := &blockingOpener{
		started: make(chan struct{}),
		release: make(chan struct{}),
		stream:  newFakeStream(),
	}
	sub := NewSubscriber(opener, newStore(nil), nil, nil, nil)

	opened := make(chan error, 1)
	go func() { opened <- sub.Open(context.Background()) }()
	<-opener.started

	assert.False(t, sub.IsOpen())
	assert.ErrorIs(t, sub.Open(context.Background()), ErrAlreadyOpen)

	close(opener.release)
	require.NoError(t, <-opened)
	assert.True(t, sub.IsOpen())
	sub.Close()
	assert.False(t, sub.IsOpen())
}

func TestCloseAbandonsConnect(t *testing.T) {
	opener := &blockingOpener{
		started: make(chan struct{}),
		release: make(chan struct{}),
		stream:  newFakeStream(),
	}
	sub := NewSubscriber(opener, newStore(nil), nil, nil, nil)

	opened := make(chan error, 1)
	go func() { opened <- sub.Open(context.Background()) }()
	<-opener.started

	sub.Close()
	assert.ErrorIs(t, <-opened, context.Canceled)
	assert.False(t, sub.IsOpen())
}
