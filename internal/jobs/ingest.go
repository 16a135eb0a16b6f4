package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/queue"
)

// IngestReport is the backend's acknowledgement of an ingest request.
type IngestReport struct {
	IngestedCount int
	TotalFetched  int
}

// IngestBackend starts ingestion and lets the poller look at the queue.
type IngestBackend interface {
	Ingest(ctx context.Context, limit, daysBack int) (IngestReport, error)
	FetchQueue(ctx context.Context, q queue.Query) (queue.Snapshot, error)
}

// Refresher re-runs the dashboard's current query.
type Refresher interface {
	Refetch(ctx context.Context) error
}

// IngestOptions controls one ingestion job.
type IngestOptions struct {
	Limit        int
	DaysBack     int
	PollInterval time.Duration
	MaxAttempts  int
}

// Ingestor triggers an ingest on the backend and polls the pending queue
// until new messages show up or the attempt budget runs out.
type Ingestor struct {
	backend   IngestBackend
	refresher Refresher
	auth      queue.LogoutSignaler
	sched     Scheduler
	opts      IngestOptions
	machine   *Machine
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIngestor creates an ingestor. refresher and auth may be nil.
func NewIngestor(backend IngestBackend, refresher Refresher, auth queue.LogoutSignaler, sched Scheduler, opts IngestOptions, b *bus.Bus, logger *zap.Logger) *Ingestor {
	if sched == nil {
		sched = WallClock{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 9
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		backend:   backend,
		refresher: refresher,
		auth:      auth,
		sched:     sched,
		opts:      opts,
		machine:   NewMachine(KindIngest, b),
		logger:    logger,
	}
}

// State returns the current job state.
func (in *Ingestor) State() State {
	return in.machine.Current()
}

// Start launches a job in the background. It fails immediately with
// ErrJobAlreadyActive if one is running.
func (in *Ingestor) Start(ctx context.Context) error {
	if err := in.machine.Begin(); err != nil {
		return err
	}
	ctx, done := in.track(ctx)
	go func() {
		defer done()
		_, _ = in.execute(ctx)
	}()
	return nil
}

// Run executes a job and blocks until it settles. The returned state is the
// terminal phase reached (Succeeded, TimedOut or Failed) before the machine
// went back to Idle.
func (in *Ingestor) Run(ctx context.Context) (State, error) {
	if err := in.machine.Begin(); err != nil {
		return in.machine.Current(), err
	}
	ctx, done := in.track(ctx)
	defer done()
	return in.execute(ctx)
}

// Stop cancels the active job, if any, and waits for it to wind down.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	cancel, done := in.cancel, in.done
	in.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (in *Ingestor) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	in.mu.Lock()
	in.cancel, in.done = cancel, done
	in.mu.Unlock()
	return ctx, func() {
		cancel()
		in.mu.Lock()
		if in.done == done {
			in.cancel, in.done = nil, nil
		}
		in.mu.Unlock()
		close(done)
	}
}

func (in *Ingestor) execute(ctx context.Context) (State, error) {
	in.logger.Info("ingest started", zap.Int("limit", in.opts.Limit), zap.Int("days_back", in.opts.DaysBack))

	report, err := in.backend.Ingest(ctx, in.opts.Limit, in.opts.DaysBack)
	if err != nil {
		if ctx.Err() != nil {
			return in.abandon(ctx.Err())
		}
		return in.fail(err)
	}
	in.logger.Info("ingest acknowledged",
		zap.Int("ingested", report.IngestedCount),
		zap.Int("fetched", report.TotalFetched),
	)

	pendingCheck := queue.Query{Filter: filter.Default(), Page: 1, PerPage: 1}
	for attempt := 1; attempt <= in.opts.MaxAttempts; attempt++ {
		if err := in.machine.Transition(State{Phase: Polling, Attempt: attempt, Result: report}); err != nil {
			return in.machine.Current(), err
		}

		select {
		case <-ctx.Done():
			return in.abandon(ctx.Err())
		case <-in.sched.After(in.opts.PollInterval):
		}

		snap, err := in.backend.FetchQueue(ctx, pendingCheck)
		switch {
		case ctx.Err() != nil:
			return in.abandon(ctx.Err())
		case apierr.IsUnauthorized(err):
			return in.fail(err)
		case err != nil:
			in.logger.Warn("ingest poll failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if len(snap.Messages) > 0 {
			return in.settle(ctx, State{Phase: Succeeded, Attempt: attempt, Result: report})
		}
	}

	in.logger.Info("ingest polling gave up", zap.Int("attempts", in.opts.MaxAttempts))
	return in.settle(ctx, State{Phase: TimedOut, Attempt: in.opts.MaxAttempts, Result: report})
}

// settle records a terminal outcome, refreshes the view and returns to Idle.
func (in *Ingestor) settle(ctx context.Context, final State) (State, error) {
	if err := in.machine.Transition(final); err != nil {
		return in.machine.Current(), err
	}
	if in.refresher != nil {
		if err := in.refresher.Refetch(ctx); err != nil {
			in.logger.Warn("refetch after ingest failed", zap.Error(err))
		}
	}
	if err := in.machine.Transition(State{Phase: Idle, Result: final.Result}); err != nil {
		return final, err
	}
	final.Kind = KindIngest
	return final, nil
}

func (in *Ingestor) fail(err error) (State, error) {
	if apierr.IsUnauthorized(err) && in.auth != nil {
		in.auth.ForceLogout(err)
	}
	in.logger.Error("ingest failed", zap.Error(err))
	st := State{Phase: Failed, Err: err}
	if terr := in.machine.Transition(st); terr != nil {
		return in.machine.Current(), errors.Join(err, terr)
	}
	return in.machine.Current(), err
}

func (in *Ingestor) abandon(cause error) (State, error) {
	in.logger.Info("ingest cancelled")
	_ = in.machine.Transition(State{Phase: Idle})
	return in.machine.Current(), cause
}
