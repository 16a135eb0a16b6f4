package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/queue"
)

// BatchResult is the outcome of one scoring batch.
type BatchResult struct {
	Scored    int
	Remaining int
	Elapsed   time.Duration
}

// ScoreBackend scores up to limit unscored messages per call.
type ScoreBackend interface {
	ScoreBatch(ctx context.Context, limit int) (BatchResult, error)
}

// Scorer runs scoring batches one at a time and keeps the store's unscored
// indicator in step with what the backend reports.
type Scorer struct {
	backend   ScoreBackend
	store     *queue.Store
	refresher Refresher
	auth      queue.LogoutSignaler
	machine   *Machine
	logger    *zap.Logger

	mu            sync.Mutex
	lastRemaining int
	known         bool
}

// NewScorer creates a scorer. refresher and auth may be nil.
func NewScorer(backend ScoreBackend, store *queue.Store, refresher Refresher, auth queue.LogoutSignaler, b *bus.Bus, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		backend:   backend,
		store:     store,
		refresher: refresher,
		auth:      auth,
		machine:   NewMachine(KindScore, b),
		logger:    logger,
	}
}

// State returns the current job state.
func (s *Scorer) State() State {
	return s.machine.Current()
}

// LastRemaining returns the most recent remaining count the backend
// reported, and whether any batch has completed yet.
func (s *Scorer) LastRemaining() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRemaining, s.known
}

// RunBatch scores one batch. Callers that want to drain the backlog repeat
// until Remaining reaches zero.
func (s *Scorer) RunBatch(ctx context.Context, limit int) (BatchResult, error) {
	if err := s.machine.Begin(); err != nil {
		return BatchResult{}, err
	}

	res, err := s.backend.ScoreBatch(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			_ = s.machine.Transition(State{Phase: Idle})
			return BatchResult{}, ctx.Err()
		}
		if apierr.IsUnauthorized(err) && s.auth != nil {
			s.auth.ForceLogout(err)
		}
		s.logger.Error("score batch failed", zap.Int("limit", limit), zap.Error(err))

		remaining, _ := s.LastRemaining()
		if terr := s.machine.Transition(State{Phase: Failed, Err: err}); terr != nil {
			err = errors.Join(err, terr)
		}
		return BatchResult{Remaining: remaining}, err
	}

	s.mu.Lock()
	s.lastRemaining = max(res.Remaining, 0)
	s.known = true
	s.mu.Unlock()

	if s.store != nil {
		s.store.SetUnscoredCount(res.Remaining)
	}
	s.logger.Info("score batch complete",
		zap.Int("scored", res.Scored),
		zap.Int("remaining", res.Remaining),
		zap.Duration("elapsed", res.Elapsed),
	)
	if err := s.machine.Transition(State{Phase: Complete, Result: res}); err != nil {
		return res, err
	}

	if res.Scored > 0 && s.refresher != nil {
		if err := s.refresher.Refetch(ctx); err != nil {
			s.logger.Warn("refetch after scoring failed", zap.Error(err))
		}
	}
	return res, nil
}
