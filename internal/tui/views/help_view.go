package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/modq/internal/tui/ui"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

var helpSections = []struct {
	title string
	keys  [][2]string
}{
	{"Queue", [][2]string{
		{"1 / 2", "Pending / reviewed tab"},
		{"o", "Cycle sort order"},
		{"/", "Edit filter (scoreMin=30&sort=score_desc)"},
		{"n / p", "Next / previous page"},
		{"r", "Refresh"},
		{"Enter", "Message detail"},
		{"space", "Toggle selection"},
		{"a / c", "Select all / clear selection"},
		{"R", "Mark selected (or current) reviewed"},
	}},
	{"Jobs", [][2]string{
		{"i", "Ingest new messages"},
		{"s", "Score one batch"},
		{"L", "Toggle live score updates"},
	}},
	{"Global", [][2]string{
		{":", "Command mode"},
		{"S", "Share current view"},
		{"?", "This help"},
		{"Esc", "Back"},
		{"q", "Quit"},
	}},
	{"Commands", [][2]string{
		{":filter <query>", "Apply a filter string"},
		{":review [reason]", "Review selection with a reason"},
		{":clear-all", "Delete every queued message"},
		{":dedupe", "Remove duplicate messages"},
		{":share", "Share current view"},
		{":logout", "Forget the stored credential"},
		{":q", "Quit"},
	}},
}

func (hv *HelpView) render() {
	kc := ui.ColorTag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  [%s]%-18s[-:-:-] %s\n", kc, tview.Escape(k[0]), k[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
