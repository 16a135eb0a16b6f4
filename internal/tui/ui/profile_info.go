package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData is the header summary of the running dashboard.
type ProfileData struct {
	Profile   string
	User      string
	Backend   string
	Expires   time.Time // zero when unknown
	Total     int
	Unscored  int
	Selected  int
	Page      int
	Pages     int
	LiveOpen  bool
	FilterTag string
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fg := colorName(pi.theme.FgColor)
	counter := colorName(pi.theme.CounterColor)

	user := data.User
	if user == "" {
		user = "(logged out)"
	}
	if !data.Expires.IsZero() {
		user += " until " + data.Expires.Local().Format("15:04")
	}
	live := "off"
	if data.LiveOpen {
		live = fmt.Sprintf("[%s::b]on[-:-:-]", colorName(pi.theme.LiveOnColor))
	}

	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Backend:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Queue:[-:-:-]    [%s]%d total, %d unscored, %d selected[-]\n"+
			"[%s::b]Page:[-:-:-]     [%s]%d/%d[-]\n"+
			"[%s::b]Filter:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Live:[-:-:-]     %s",
		fg, counter, tview.Escape(data.Profile),
		fg, counter, tview.Escape(user),
		fg, counter, tview.Escape(data.Backend),
		fg, counter, data.Total, data.Unscored, data.Selected,
		fg, counter, data.Page, max(data.Pages, 1),
		fg, counter, tview.Escape(data.FilterTag),
		fg, live,
	)
}
