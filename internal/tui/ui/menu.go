package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Menu lists the key hints of the current page in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
	rows  int
}

// NewMenu creates a menu that wraps into a new column every rows hints.
func NewMenu(theme *Theme, rows int) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
		rows:     max(rows, 1),
	}
}

// Update renders the hints column-major.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)

	cols := (len(hints) + m.rows - 1) / m.rows
	for r := range m.rows {
		for c := range cols {
			i := c*m.rows + r
			if i >= len(hints) {
				continue
			}
			h := hints[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			_, _ = fmt.Fprintf(m, "[%s::b]%-9s[-:-:-]%-16s", kc, "<"+h.Key+">", h.Description)
		}
		_, _ = fmt.Fprintln(m)
	}
}
