// Package live keeps the queue view current from the backend's scoring push
// stream while it is open.
package live

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/queue"
)

// ErrAlreadyOpen is returned by Open when a channel is already open.
var ErrAlreadyOpen = errors.New("live channel already open")

// EventKind distinguishes push events.
type EventKind string

const (
	EventScored  EventKind = "scored"
	EventWaiting EventKind = "waiting"
)

// Event is one decoded push message. Patch is only meaningful for scored
// events.
type Event struct {
	Kind      EventKind
	MessageID int64
	Patch     queue.Patch
}

// Stream yields push events until it fails or is closed.
type Stream interface {
	Next() (Event, error)
	Close() error
}

// StreamOpener opens the scoring push stream.
type StreamOpener interface {
	OpenScoreStream(ctx context.Context) (Stream, error)
}

// Closed is the payload of live.closed events. Err is nil when the channel
// was closed locally.
type Closed struct {
	Err error
}

type session struct {
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscriber applies scored events to the store. It never reconnects on its
// own; a dropped channel is reported and left closed.
type Subscriber struct {
	opener StreamOpener
	store  *queue.Store
	auth   queue.LogoutSignaler
	bus    *bus.Bus
	logger *zap.Logger

	mu         sync.Mutex
	cur        *session
	connecting context.CancelFunc
}

// NewSubscriber creates a closed subscriber. auth may be nil.
func NewSubscriber(opener StreamOpener, store *queue.Store, auth queue.LogoutSignaler, b *bus.Bus, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		opener: opener,
		store:  store,
		auth:   auth,
		bus:    b,
		logger: logger,
	}
}

// IsOpen reports whether the channel is open. A channel still connecting is
// not open yet.
func (s *Subscriber) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Open connects the push stream and starts applying its events. The slot is
// reserved before connecting, so a concurrent Open fails with ErrAlreadyOpen
// while the connect is in flight.
func (s *Subscriber) Open(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cur != nil || s.connecting != nil {
		s.mu.Unlock()
		cancel()
		return ErrAlreadyOpen
	}
	s.connecting = cancel
	s.mu.Unlock()

	stream, err := s.opener.OpenScoreStream(ctx)

	s.mu.Lock()
	s.connecting = nil
	if err == nil && ctx.Err() != nil {
		// Closed while connecting.
		_ = stream.Close()
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Unlock()
		cancel()
		if apierr.IsUnauthorized(err) && s.auth != nil {
			s.auth.ForceLogout(err)
		}
		s.logger.Warn("live channel failed to open", zap.Error(err))
		return err
	}
	sess := &session{stream: stream, cancel: cancel, done: make(chan struct{})}
	s.cur = sess
	s.mu.Unlock()

	go s.loop(ctx, sess)

	s.logger.Info("live channel opened")
	s.bus.Emit(bus.KindLiveOpened, nil)
	return nil
}

// Close tears the channel down and waits for the reader to exit. A connect
// in flight is abandoned.
func (s *Subscriber) Close() {
	s.mu.Lock()
	sess := s.cur
	if s.connecting != nil {
		s.connecting()
	}
	s.mu.Unlock()
	if sess == nil {
		return
	}
	sess.cancel()
	_ = sess.stream.Close()
	<-sess.done
}

func (s *Subscriber) loop(ctx context.Context, sess *session) {
	defer close(sess.done)
	for {
		evt, err := sess.stream.Next()
		if err != nil {
			s.teardown(ctx, sess, err)
			return
		}
		s.handle(evt)
	}
}

func (s *Subscriber) handle(evt Event) {
	switch evt.Kind {
	case EventScored:
		if !s.store.PatchByID(evt.MessageID, evt.Patch) {
			s.logger.Debug("scored message not in view", zap.Int64("message_id", evt.MessageID))
		}
	case EventWaiting:
		s.bus.Emit(bus.KindLiveWaiting, nil)
	default:
		s.logger.Debug("ignoring live event", zap.String("kind", string(evt.Kind)))
	}
}

func (s *Subscriber) teardown(ctx context.Context, sess *session, err error) {
	local := ctx.Err() != nil
	_ = sess.stream.Close()
	sess.cancel()

	s.mu.Lock()
	if s.cur == sess {
		s.cur = nil
	}
	s.mu.Unlock()

	if local {
		s.logger.Info("live channel closed")
		s.bus.Emit(bus.KindLiveClosed, Closed{})
		return
	}

	if apierr.IsUnauthorized(err) && s.auth != nil {
		s.auth.ForceLogout(err)
	}
	s.logger.Warn("live channel dropped", zap.Error(err))
	s.bus.Emit(bus.KindLiveClosed, Closed{Err: err})
}
