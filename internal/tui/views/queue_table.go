package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/modq/internal/filter"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/tui/ui"
)

const previewWidth = 80

// QueueTable is the main page: one row per message of the current page.
type QueueTable struct {
	*tview.Table
	theme    *ui.Theme
	msgs     []queue.Message
	selected func(id int64) bool
	failure  func(id int64) error
	now      func() time.Time
}

// NewQueueTable creates the queue table.
func NewQueueTable(theme *ui.Theme) *QueueTable {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Queue ")
	table.SetTitleColor(theme.TitleColor)

	return &QueueTable{
		Table:    table,
		theme:    theme,
		selected: func(int64) bool { return false },
		failure:  func(int64) error { return nil },
		now:      time.Now,
	}
}

// Update replaces the rows. selected reports whether an ID is in the bulk
// selection. The cursor stays on the same message when it is still listed.
func (qt *QueueTable) Update(msgs []queue.Message, counts queue.Counts, f filter.Filter, selected func(id int64) bool) {
	cursor, hasCursor := qt.SelectedID()

	qt.msgs = msgs
	if selected != nil {
		qt.selected = selected
	}
	qt.render(counts, f)

	row := 1
	if hasCursor {
		for i, m := range msgs {
			if m.ID == cursor {
				row = i + 1
				break
			}
		}
	}
	if len(msgs) > 0 {
		qt.Select(min(row, len(msgs)), 0)
	}
}

// SetFailures sets the lookup for messages whose last review failed. Those
// rows are flagged until the lookup stops reporting them.
func (qt *QueueTable) SetFailures(fn func(id int64) error) {
	qt.failure = fn
}

func (qt *QueueTable) render(counts queue.Counts, f filter.Filter) {
	qt.Clear()

	headers := []struct {
		text  string
		exp   int
		align int
	}{
		{" ", 0, tview.AlignLeft},
		{" ID", 0, tview.AlignLeft},
		{" TIME", 0, tview.AlignLeft},
		{" GROUP", 1, tview.AlignLeft},
		{" CLIENT", 1, tview.AlignLeft},
		{" SCORE", 0, tview.AlignRight},
		{" MESSAGE", 4, tview.AlignLeft},
	}
	for col, h := range headers {
		qt.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(qt.theme.TableHeaderFg).
			SetBackgroundColor(qt.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp).
			SetAlign(h.align))
	}

	now := qt.now()
	failed := 0
	for i, m := range qt.msgs {
		row := i + 1
		mark, markColor := " ", qt.theme.SelectedMarkColor
		if qt.selected(m.ID) {
			mark = "●"
		}
		if qt.failure(m.ID) != nil {
			mark, markColor = "✗", qt.theme.FlashErrColor
			failed++
		}
		group := m.GroupName
		if group == "" {
			group = m.GroupID
		}
		preview := strings.Join(strings.Fields(sanitizeForTerminal(displayText(m))), " ")

		qt.SetCell(row, 0, tview.NewTableCell(mark).SetTextColor(markColor))
		qt.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf(" %d", m.ID)).SetTextColor(qt.theme.FgColor))
		qt.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(m.DisplayTime(), now)).SetTextColor(qt.theme.FgColor))
		qt.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(group))).SetExpansion(1).SetTextColor(qt.theme.FgColor))
		qt.SetCell(row, 4, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(m.ClientName))).SetExpansion(1).SetTextColor(qt.theme.FgColor))
		qt.SetCell(row, 5, tview.NewTableCell(formatScore(m.ModerationScore)).
			SetAlign(tview.AlignRight).
			SetTextColor(qt.theme.ScoreColor(m.Score(), m.IsScored())))
		qt.SetCell(row, 6, tview.NewTableCell(" "+tview.Escape(truncate(preview, previewWidth))).SetExpansion(4).SetTextColor(qt.theme.FgColor))
	}

	title := fmt.Sprintf(" %s (%d/%d) ", tabTitle(f.Tab), counts.Visible, counts.Total)
	if counts.Selected > 0 {
		title += fmt.Sprintf("[%s]%d selected[-] ", ui.ColorTag(qt.theme.SelectedMarkColor), counts.Selected)
	}
	if failed > 0 {
		title += fmt.Sprintf("[%s]%d failed[-] ", ui.ColorTag(qt.theme.FlashErrColor), failed)
	}
	qt.SetTitle(title)
}

// SelectedID returns the ID under the cursor.
func (qt *QueueTable) SelectedID() (int64, bool) {
	row, _ := qt.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(qt.msgs) {
		return 0, false
	}
	return qt.msgs[idx].ID, true
}

// Len returns the number of rows shown.
func (qt *QueueTable) Len() int {
	return len(qt.msgs)
}

func tabTitle(t filter.Tab) string {
	if t == filter.TabReviewed {
		return "Reviewed"
	}
	return "Pending"
}
