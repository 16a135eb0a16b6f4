package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/modq/internal/jobs"
	"github.com/matheus3301/modq/internal/tui/ui"
)

// StatusData is what the status bar shows about background work.
type StatusData struct {
	Profile        string
	Ingest         jobs.State
	MaxAttempts    int
	Score          jobs.State
	Remaining      int
	RemainingKnown bool
	LiveOpen       bool
	LiveWaiting    bool
	Unscored       int
}

// StatusBar is the one-line footer with job and live indicators.
type StatusBar struct {
	*tview.TextView
	theme *ui.Theme
	data  StatusData
	now   func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, now: time.Now}
}

// Update re-renders the bar.
func (sb *StatusBar) Update(data StatusData) {
	sb.data = data
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	d := sb.data
	parts := []string{fmt.Sprintf("[::b]%s[-:-:-]", tview.Escape(d.Profile))}

	switch d.Ingest.Phase {
	case jobs.Running:
		parts = append(parts, "ingest: starting")
	case jobs.Polling:
		parts = append(parts, fmt.Sprintf("ingest: polling %d/%d", d.Ingest.Attempt, d.MaxAttempts))
	default:
		parts = append(parts, "ingest: idle")
	}

	switch {
	case d.Score.Phase == jobs.Running:
		parts = append(parts, "score: running")
	case d.RemainingKnown:
		parts = append(parts, fmt.Sprintf("score: %d left", d.Remaining))
	default:
		parts = append(parts, fmt.Sprintf("unscored: %d", d.Unscored))
	}

	live := "live: off"
	switch {
	case d.LiveOpen && d.LiveWaiting:
		live = fmt.Sprintf("[%s]live: waiting[-]", ui.ColorTag(sb.theme.LiveOnColor))
	case d.LiveOpen:
		live = fmt.Sprintf("[%s]live: on[-]", ui.ColorTag(sb.theme.LiveOnColor))
	}
	parts = append(parts, live, sb.now().Format("15:04"))

	return " " + strings.Join(parts, " | ")
}
