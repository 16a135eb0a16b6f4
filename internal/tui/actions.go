package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/apierr"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/jobs"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/tui/keys"
	"github.com/matheus3301/modq/internal/tui/ui"
)

func (a *App) setupBindings() {
	r := a.registry
	runeKey := func(ch rune, desc string, fn func()) *keys.Action {
		return &keys.Action{Key: tcell.KeyRune, Rune: ch, Description: desc, Handler: fn, Visible: true}
	}

	tab1 := runeKey('1', "Pending", func() { a.switchTab(filter.TabPending) })
	tab1.Numeric = true
	tab2 := runeKey('2', "Reviewed", func() { a.switchTab(filter.TabReviewed) })
	tab2.Numeric = true
	space := runeKey(' ', "Select", a.toggleSelection)
	space.Label = "space"
	enter := &keys.Action{Key: tcell.KeyEnter, Label: "enter", Description: "Detail", Handler: a.openDetail, Visible: true}

	for _, act := range []*keys.Action{
		tab1, tab2, enter, space,
		runeKey('a', "Select all", a.selectAll),
		runeKey('c', "Clear sel.", a.clearSelection),
		runeKey('R', "Review", a.reviewPrompt),
		runeKey('o', "Sort", a.cycleSort),
		runeKey('/', "Filter", func() { a.openPrompt(ui.PromptFilter, a.d.Dashboard.Filter().String()) }),
		runeKey('n', "Next page", func() { a.turnPage(1) }),
		runeKey('p', "Prev page", func() { a.turnPage(-1) }),
		runeKey('r', "Refresh", a.refetch),
		runeKey('i', "Ingest", a.startIngest),
		runeKey('s', "Score", a.scoreBatch),
	} {
		r.AddView(pageQueue, act)
	}

	r.AddView(pageDetail, runeKey('R', "Review", func() {
		a.pendingReview = []int64{a.detail.ID()}
		a.openPrompt(ui.PromptReason, "")
	}))

	r.AddGlobal(runeKey('L', "Live", a.toggleLive))
	r.AddGlobal(runeKey('S', "Share", a.showShare))
	r.AddGlobal(runeKey(':', "Command", func() { a.openPrompt(ui.PromptCommand, "") }))
	r.AddGlobal(runeKey('?', "Help", func() { a.pushPage(pageHelp) }))
	r.AddGlobal(runeKey('q', "Quit", a.Stop))
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "filter", "f":
		if cmd.Args == "" {
			a.openPrompt(ui.PromptFilter, a.d.Dashboard.Filter().String())
			return
		}
		a.applyQuery(cmd.Args)
	case "review":
		a.review(a.reviewTargets(), cmd.Args)
	case "clear-all":
		a.confirmThen("Delete every message in the queue?", a.clearAll)
	case "dedupe":
		a.dedupe()
	case "share":
		a.showShare()
	case "ingest":
		a.startIngest()
	case "score":
		a.scoreBatch()
	case "live":
		a.toggleLive()
	case "refresh", "r":
		a.refetch()
	case "logout":
		if err := a.d.Session.Logout(); err != nil {
			a.flash.Err(err)
		}
	case "help", "h":
		a.pushPage(pageHelp)
	case "quit", "q":
		a.Stop()
	case "":
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
	a.refresh()
}

func (a *App) pushPage(name string) {
	a.pages.Push(name)
	a.focusCurrent()
	a.refresh()
}

// background runs fn off the UI goroutine, flashing its error. Fetch
// failures are already reported on the bus and are only logged here.
func (a *App) background(what string, fn func(ctx context.Context) error) {
	go func() {
		err := fn(a.ctx)
		switch {
		case err == nil, a.ctx.Err() != nil:
		case errors.Is(err, queue.ErrFetchFailed), errors.Is(err, queue.ErrAuthExpired):
			a.logger.Debug(what+" fetch failed", zap.Error(err))
		default:
			a.logger.Warn(what+" failed", zap.Error(err))
			a.flash.Err(fmt.Errorf("%s: %w", what, err))
		}
		a.draw()
	}()
}

func (a *App) setFilter(f filter.Filter) {
	a.background("filter", func(ctx context.Context) error {
		_, err := a.d.Dashboard.SetFilter(ctx, f)
		return err
	})
}

func (a *App) switchTab(t filter.Tab) {
	a.setFilter(a.d.Dashboard.Filter().WithTab(t))
}

func (a *App) cycleSort() {
	f := a.d.Dashboard.Filter()
	next := f.WithSort(f.Sort.Next())
	a.flash.Info("sort: " + next.Sort.Label())
	a.setFilter(next)
}

func (a *App) applyQuery(raw string) {
	a.background("filter", func(ctx context.Context) error {
		_, err := a.d.Dashboard.ApplyQuery(ctx, raw)
		return err
	})
}

func (a *App) turnPage(delta int) {
	a.background("page", func(ctx context.Context) error {
		var err error
		if delta > 0 {
			_, err = a.d.Dashboard.NextPage(ctx)
		} else {
			_, err = a.d.Dashboard.PrevPage(ctx)
		}
		return err
	})
}

func (a *App) refetch() {
	a.background("refresh", a.d.Dashboard.Refetch)
}

func (a *App) openDetail() {
	id, ok := a.table.SelectedID()
	if !ok {
		return
	}
	if m, ok := a.d.Queue.Get(id); ok {
		a.detail.Update(m)
	}
	a.pushPage(pageDetail)

	a.background("message", func(ctx context.Context) error {
		m, err := a.d.Client.Message(ctx, id)
		if err != nil {
			return err
		}
		a.app.QueueUpdateDraw(func() {
			if a.pages.Current() == pageDetail && a.detail.ID() == id {
				a.detail.Update(m)
			}
		})
		return nil
	})
}

func (a *App) toggleSelection() {
	id, ok := a.table.SelectedID()
	if !ok {
		return
	}
	a.d.Review.Toggle(id)
	if row, _ := a.table.GetSelection(); row < a.table.Len() {
		a.table.Select(row+1, 0)
	}
	a.refresh()
}

func (a *App) selectAll() {
	n := a.d.Review.SelectAll()
	a.flash.Infof("%d selected", n)
	a.refresh()
}

func (a *App) clearSelection() {
	a.d.Review.Clear()
	a.refresh()
}

// reviewTargets is the bulk selection, or the row under the cursor when
// nothing is selected.
func (a *App) reviewTargets() []int64 {
	if ids := a.d.Review.Selected(); len(ids) > 0 {
		return ids
	}
	if id, ok := a.table.SelectedID(); ok {
		return []int64{id}
	}
	return nil
}

func (a *App) reviewPrompt() {
	ids := a.reviewTargets()
	if len(ids) == 0 {
		return
	}
	a.pendingReview = ids
	a.openPrompt(ui.PromptReason, "")
}

func (a *App) review(ids []int64, reasoning string) {
	if len(ids) == 0 {
		a.flash.Warn("nothing to review")
		return
	}
	a.flash.Infof("reviewing %d message(s)...", len(ids))
	go func() {
		// Outcome is reported through review.settled.
		a.d.Review.BulkReview(a.ctx, ids, reasoning)
	}()
}

func (a *App) startIngest() {
	switch err := a.d.Ingestor.Start(a.ctx); {
	case errors.Is(err, jobs.ErrJobAlreadyActive):
		a.flash.Warn("ingest already running")
	case err != nil:
		a.flash.Err(err)
	default:
		a.flash.Info("ingest started")
	}
	a.refresh()
}

func (a *App) scoreBatch() {
	if a.d.Scorer.State().Active() {
		a.flash.Warn("scoring already running")
		return
	}
	limit := a.d.Config.Scoring.BatchLimit
	go func() {
		_, err := a.d.Scorer.RunBatch(a.ctx, limit)
		if errors.Is(err, jobs.ErrJobAlreadyActive) {
			a.flash.Warn("scoring already running")
			a.draw()
		}
		// Other outcomes arrive as job state changes.
	}()
}

func (a *App) toggleLive() {
	if a.d.Live.IsOpen() {
		go func() {
			a.d.Live.Close()
			a.draw()
		}()
		return
	}
	a.background("live", a.d.Live.Open)
}

func (a *App) showShare() {
	link, err := a.d.Dashboard.ShareURL(a.d.Config.Queue.ShareURL)
	if err != nil {
		a.flash.Err(err)
		return
	}
	a.share.ShowLink(link)
	a.pushPage(pageShare)
}

func (a *App) confirmThen(question string, fn func()) {
	a.confirm.SetText(question)
	a.confirm.SetDoneFunc(func(_ int, label string) {
		a.pages.Pop()
		a.focusCurrent()
		if label == "Confirm" {
			fn()
		}
		a.refresh()
	})
	a.pushPage(pageConfirm)
}

func (a *App) clearAll() {
	a.background("clear", func(ctx context.Context) error {
		n, err := a.d.Client.ClearAll(ctx)
		if err != nil {
			return err
		}
		a.d.Review.Clear()
		a.flash.Infof("cleared %d message(s)", n)
		return a.d.Dashboard.Refetch(ctx)
	})
}

func (a *App) dedupe() {
	a.background("dedupe", func(ctx context.Context) error {
		res, err := a.d.Client.RemoveDuplicates(ctx)
		if err != nil {
			return err
		}
		a.flash.Infof("removed %d duplicate(s), %d remain", res.Removed, res.Remaining)
		return a.d.Dashboard.Refetch(ctx)
	})
}

// showLogin must run on the UI goroutine.
func (a *App) showLogin(username string) {
	a.login.Reset(username)
	a.pages.Push(pageLogin)
	a.focusCurrent()
}

func (a *App) doLogin(username, password string) {
	a.flash.Info("logging in...")
	a.background("login", func(ctx context.Context) error {
		if err := a.d.Session.Login(ctx, a.d.Client, username, password); err != nil {
			if apierr.IsUnauthorized(err) {
				return errors.New("invalid username or password")
			}
			return err
		}
		a.app.QueueUpdateDraw(func() {
			a.pages.Reset(pageQueue)
			a.focusCurrent()
		})
		if a.d.Config.Live.Enabled && !a.d.Live.IsOpen() {
			if err := a.d.Live.Open(ctx); err != nil {
				a.logger.Warn("live channel unavailable", zap.Error(err))
			}
		}
		return a.d.Dashboard.Refetch(ctx)
	})
}
