// Package tui is the terminal front end of the dashboard.
package tui

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/dashboard"
	"github.com/matheus3301/modq/internal/tui/keys"
	"github.com/matheus3301/modq/internal/tui/ui"
	"github.com/matheus3301/modq/internal/tui/views"
)

// Page names.
const (
	pageQueue   = "queue"
	pageDetail  = "detail"
	pageShare   = "share"
	pageHelp    = "help"
	pageLogin   = "login"
	pageConfirm = "confirm"
)

const (
	headerHeight = 7
	promptHeight = 3
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	d        *dashboard.App
	logger   *zap.Logger
	theme    *ui.Theme
	pages    *ui.Pages
	registry *keys.Registry
	flash    *ui.FlashModel

	layout   *tview.Flex
	info     *ui.ProfileInfo
	menu     *ui.Menu
	logo     *ui.Logo
	crumbs   *ui.Crumbs
	prompt   *ui.Prompt
	flashBar *ui.FlashBar
	status   *views.StatusBar

	table   *views.QueueTable
	detail  *views.MessageDetail
	share   *views.ShareView
	login   *views.LoginView
	help    *views.HelpView
	confirm *tview.Modal

	failures *views.ReviewFailures

	// promptReturn is the page focused again when the prompt closes.
	promptReturn tview.Primitive
	// pendingReview holds the IDs a reason prompt will review.
	pendingReview []int64
	liveWaiting   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI for a started dashboard.
func NewApp(d *dashboard.App) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		d:        d,
		logger:   d.Logger.Named("tui"),
		theme:    theme,
		pages:    ui.NewPages(),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		info:     ui.NewProfileInfo(theme),
		menu:     ui.NewMenu(theme, headerHeight),
		logo:     ui.NewLogo(theme),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		status:   views.NewStatusBar(theme),
		table:    views.NewQueueTable(theme),
		detail:   views.NewMessageDetail(theme),
		share:    views.NewShareView(theme),
		login:    views.NewLoginView(theme),
		help:     views.NewHelpView(theme),
		confirm:  tview.NewModal(),
		failures: views.NewReviewFailures(),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.crumbs = ui.NewCrumbs(theme, a.pageTitle)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) pageTitle(page string) string {
	switch page {
	case pageQueue:
		return string(a.d.Dashboard.Filter().Tab)
	case pageDetail:
		return fmt.Sprintf("message %d", a.detail.ID())
	default:
		return page
	}
}

func (a *App) setupCallbacks() {
	a.table.SetFailures(a.failures.Err)
	a.detail.SetFailures(a.failures.Err)

	a.table.SetSelectedFunc(func(row, _ int) {
		a.openDetail()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.closePrompt()
		switch mode {
		case ui.PromptFilter:
			a.applyQuery(text)
		case ui.PromptReason:
			ids := a.pendingReview
			a.pendingReview = nil
			a.review(ids, text)
		default:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(func() {
		a.pendingReview = nil
		a.closePrompt()
	})

	a.login.SetOnSubmit(a.doLogin)

	a.confirm.AddButtons([]string{"Cancel", "Confirm"})
	a.confirm.SetBackgroundColor(a.theme.BgColor)

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageQueue, a.table, true, false)
	a.pages.AddPage(pageDetail, a.detail, true, false)
	a.pages.AddPage(pageShare, a.share, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageLogin, center(a.login, 50, 9), true, false)
	a.pages.AddPage(pageConfirm, a.confirm, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(a.logo, 16, 0, false)

	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.status, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.layout, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	current := a.pages.Current()

	// Text inputs and forms get every key; the prompt handles Esc itself.
	switch a.app.GetFocus().(type) {
	case *tview.InputField, *tview.Button:
		return event
	}
	if current == pageLogin || current == pageConfirm {
		return event
	}

	if event.Key() == tcell.KeyEscape {
		if a.pages.Pop() != "" {
			a.focusCurrent()
			a.refresh()
		}
		return nil
	}

	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

// center wraps p in a fixed-size box in the middle of the page.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageDetail:
		a.app.SetFocus(a.detail)
	case pageShare:
		a.app.SetFocus(a.share)
	case pageHelp:
		a.app.SetFocus(a.help)
	case pageLogin:
		a.app.SetFocus(a.login)
	case pageConfirm:
		a.app.SetFocus(a.confirm)
	default:
		a.app.SetFocus(a.table)
	}
}

func (a *App) openPrompt(mode ui.PromptMode, text string) {
	a.promptReturn = a.app.GetFocus()
	a.prompt.Activate(mode, text)
	a.layout.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) closePrompt() {
	a.layout.ResizeItem(a.prompt, 0, 0)
	if a.promptReturn != nil {
		a.app.SetFocus(a.promptReturn)
		a.promptReturn = nil
		return
	}
	a.focusCurrent()
}

// refresh redraws every widget from the dashboard state. It must run on the
// UI goroutine.
func (a *App) refresh() {
	d := a.d
	counts := d.Queue.Counts()
	f := d.Dashboard.Filter()

	a.table.Update(d.Queue.Messages(), counts, f, d.Queue.IsSelected)
	if a.pages.Current() == pageDetail {
		if m, ok := d.Queue.Get(a.detail.ID()); ok {
			a.detail.Update(m)
		}
	}

	data := &ui.ProfileData{
		Profile:   d.Profile,
		User:      d.Session.Username(),
		Backend:   d.Client.BaseURL(),
		Total:     counts.Total,
		Unscored:  counts.Unscored,
		Selected:  counts.Selected,
		Page:      d.Dashboard.Page(),
		Pages:     d.Dashboard.Pages(),
		LiveOpen:  d.Live.IsOpen(),
		FilterTag: f.Describe(),
	}
	if exp, ok := d.Session.ExpiresAt(); ok {
		data.Expires = exp
	}
	a.info.Update(data)

	remaining, known := d.Scorer.LastRemaining()
	a.status.Update(views.StatusData{
		Profile:        d.Profile,
		Ingest:         d.Ingestor.State(),
		MaxAttempts:    d.Config.Ingest.MaxAttempts,
		Score:          d.Scorer.State(),
		Remaining:      remaining,
		RemainingKnown: known,
		LiveOpen:       d.Live.IsOpen(),
		LiveWaiting:    a.liveWaiting.Load(),
		Unscored:       counts.Unscored,
	})
	a.flashBar.Update(a.flash.Current())
	a.menu.Update(a.registry.Hints(a.pages.Current()))
}

// draw schedules a refresh from a background goroutine.
func (a *App) draw() {
	if a.ctx.Err() != nil {
		return
	}
	a.app.QueueUpdateDraw(a.refresh)
}

// Run starts the TUI and blocks until the user quits.
func (a *App) Run() error {
	a.pages.Reset(pageQueue)
	if !a.d.Session.Authenticated() {
		a.showLogin(a.d.Session.Username())
	}
	a.focusCurrent()
	a.refresh()

	a.watch()
	a.tick()

	err := a.app.Run()
	a.cancel()
	return err
}

// tick redraws periodically so the clock and flash expiry stay current.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.draw()
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
