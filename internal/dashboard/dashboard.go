// Package dashboard wires the queue, jobs, live channel and review manager
// into one profile's dashboard and owns the current filter and page.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/store"
)

// ViewState persists the last view between runs.
type ViewState interface {
	SetViewState(key, value string) error
	GetViewState(key string) (string, bool, error)
}

// Dashboard holds the active filter and page and routes every change of
// them through the executor.
type Dashboard struct {
	exec    *queue.Executor
	store   *queue.Store
	views   ViewState
	perPage int
	logger  *zap.Logger

	mu     sync.Mutex
	filter filter.Filter
	page   int
}

// New creates a dashboard showing the default filter. views may be nil.
func New(exec *queue.Executor, st *queue.Store, views ViewState, perPage int, logger *zap.Logger) *Dashboard {
	if perPage < 1 {
		perPage = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		exec:    exec,
		store:   st,
		views:   views,
		perPage: perPage,
		logger:  logger,
		filter:  filter.Default(),
		page:    1,
	}
}

// Restore loads the persisted filter. A damaged value falls back field by
// field to defaults and is reported but not fatal.
func (d *Dashboard) Restore() error {
	if d.views == nil {
		return nil
	}
	raw, ok, err := d.views.GetViewState(store.KeyFilter)
	if err != nil {
		return fmt.Errorf("read view state: %w", err)
	}
	if !ok {
		return nil
	}

	f, perr := filter.Parse(raw)
	d.mu.Lock()
	d.filter = f
	d.page = 1
	d.mu.Unlock()

	if perr != nil {
		d.logger.Warn("persisted filter partly invalid, using defaults for bad fields",
			zap.String("filter", raw), zap.Error(perr))
		return perr
	}
	d.logger.Info("view restored", zap.String("filter", f.Describe()))
	return nil
}

// Filter returns the active filter.
func (d *Dashboard) Filter() filter.Filter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// Page returns the current 1-based page.
func (d *Dashboard) Page() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// Pages returns the number of pages the last snapshot spans.
func (d *Dashboard) Pages() int {
	total := d.store.Counts().Total
	return max((total+d.perPage-1)/d.perPage, 1)
}

// Query returns the query for the current view.
func (d *Dashboard) Query() queue.Query {
	d.mu.Lock()
	defer d.mu.Unlock()
	return queue.Query{Filter: d.filter, Page: d.page, PerPage: d.perPage}
}

// SetFilter switches to f, resets to the first page, persists the view and
// fetches it.
func (d *Dashboard) SetFilter(ctx context.Context, f filter.Filter) (queue.Result, error) {
	if err := f.Validate(); err != nil {
		return queue.Result{}, err
	}
	d.mu.Lock()
	d.filter = f
	d.page = 1
	d.mu.Unlock()

	d.persist(f)
	return d.exec.Fetch(ctx, d.Query())
}

// ApplyQuery parses raw in the shareable form and applies the result. An
// invalid raw still applies its valid fields; the returned error then
// matches filter.ErrInvalidFilter, joined with any fetch error.
func (d *Dashboard) ApplyQuery(ctx context.Context, raw string) (queue.Result, error) {
	f, perr := filter.Parse(raw)
	res, err := d.SetFilter(ctx, f)
	return res, errors.Join(perr, err)
}

// Refetch re-runs the current query.
func (d *Dashboard) Refetch(ctx context.Context) error {
	_, err := d.exec.Fetch(ctx, d.Query())
	return err
}

// NextPage moves forward one page if there is one.
func (d *Dashboard) NextPage(ctx context.Context) (queue.Result, error) {
	return d.turn(ctx, 1)
}

// PrevPage moves back one page if there is one.
func (d *Dashboard) PrevPage(ctx context.Context) (queue.Result, error) {
	return d.turn(ctx, -1)
}

func (d *Dashboard) turn(ctx context.Context, delta int) (queue.Result, error) {
	pages := d.Pages()
	d.mu.Lock()
	next := min(max(d.page+delta, 1), pages)
	changed := next != d.page
	d.page = next
	d.mu.Unlock()
	if !changed {
		return queue.Result{}, nil
	}
	return d.exec.Fetch(ctx, d.Query())
}

// ShareURL returns a link to the current view under base.
func (d *Dashboard) ShareURL(base string) (string, error) {
	return filter.ShareURL(base, d.Filter())
}

func (d *Dashboard) persist(f filter.Filter) {
	if d.views == nil {
		return
	}
	if err := d.views.SetViewState(store.KeyFilter, f.String()); err != nil {
		d.logger.Warn("failed to persist view", zap.Error(err))
	}
}

// watchAuth calls onLogout every time the credential is dropped.
func watchAuth(ctx context.Context, b *bus.Bus, onLogout func(), logger *zap.Logger) {
	ch, unsub := b.Subscribe("auth.", 8)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind == bus.KindAuthLoggedOut {
					logger.Info("credential dropped, closing live channel")
					onLogout()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
