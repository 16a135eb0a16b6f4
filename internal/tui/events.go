package tui

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/modq/internal/auth"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/jobs"
	"github.com/matheus3301/modq/internal/live"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/review"
)

// watch turns dashboard events into flash messages and redraws until the
// app stops.
func (a *App) watch() {
	events, unsubscribe := a.d.Bus.Subscribe("", 128)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-a.ctx.Done():
				return
			case evt := <-events:
				if fn := a.onEvent(evt); fn != nil {
					a.app.QueueUpdateDraw(fn)
				}
				a.draw()
			}
		}
	}()
}

// onEvent updates the flash for evt. It returns a UI change to run on the
// UI goroutine, if any.
func (a *App) onEvent(evt bus.Event) func() {
	switch evt.Kind {
	case bus.KindQueueChanged:
		if evt.Payload == "replace" {
			return a.failures.Reset
		}

	case bus.KindQueueFetchFailed:
		if err, ok := evt.Payload.(error); ok && !errors.Is(err, queue.ErrAuthExpired) {
			a.flash.Err(err)
		}

	case bus.KindJobState:
		if sc, ok := evt.Payload.(jobs.StateChange); ok {
			a.flashJob(sc.To)
		}

	case bus.KindLiveOpened:
		a.liveWaiting.Store(false)
		a.flash.Info("live updates on")
	case bus.KindLiveWaiting:
		a.liveWaiting.Store(true)
	case bus.KindLiveClosed:
		a.liveWaiting.Store(false)
		if c, ok := evt.Payload.(live.Closed); ok && c.Err != nil {
			a.flash.Warn("live updates stopped: " + c.Err.Error())
		} else {
			a.flash.Info("live updates off")
		}

	case bus.KindAuthLoggedOut:
		lo, _ := evt.Payload.(auth.LoggedOut)
		if lo.Reason != nil {
			a.flash.Warn("session expired, please log in again")
		}
		return func() { a.showLogin(lo.Username) }

	case bus.KindReviewSettled:
		res, ok := evt.Payload.(review.BulkResult)
		if !ok {
			return nil
		}
		if res.Partial() {
			a.flash.Warn(fmt.Sprintf("reviewed %d, %d failed (still selected)", len(res.Succeeded), len(res.Failed)))
		} else if len(res.Failed) > 0 {
			a.flash.Err(fmt.Errorf("review failed for %d message(s)", len(res.Failed)))
		} else {
			a.flash.Infof("reviewed %d message(s)", len(res.Succeeded))
		}
		return func() {
			a.failures.Settle(res.Succeeded, res.Failed)
			if a.pages.Current() == pageDetail {
				if _, found := slices.BinarySearch(res.Succeeded, a.detail.ID()); found {
					a.pages.Pop()
					a.focusCurrent()
				}
			}
		}
	}
	return nil
}

func (a *App) flashJob(st jobs.State) {
	switch st.Phase {
	case jobs.Succeeded:
		if r, ok := st.Result.(jobs.IngestReport); ok {
			a.flash.Infof("ingested %d new message(s) of %d fetched", r.IngestedCount, r.TotalFetched)
		}
	case jobs.TimedOut:
		a.flash.Warn(fmt.Sprintf("no new messages after %d checks", st.Attempt))
	case jobs.Failed:
		a.flash.Err(fmt.Errorf("%s failed: %w", st.Kind, st.Err))
	case jobs.Complete:
		if r, ok := st.Result.(jobs.BatchResult); ok {
			a.flash.Infof("scored %d, %d remaining (%s)", r.Scored, r.Remaining, r.Elapsed.Round(100*time.Millisecond))
		}
	}
}
