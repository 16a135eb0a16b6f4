package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/tui/ui"
)

// MessageDetail shows every field of one message.
type MessageDetail struct {
	*tview.TextView
	theme   *ui.Theme
	id      int64
	failure func(id int64) error
}

// NewMessageDetail creates the detail page.
func NewMessageDetail(theme *ui.Theme) *MessageDetail {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Message ")
	tv.SetTitleColor(theme.TitleColor)

	return &MessageDetail{
		TextView: tv,
		theme:    theme,
		failure:  func(int64) error { return nil },
	}
}

// ID returns the message currently shown.
func (md *MessageDetail) ID() int64 {
	return md.id
}

// SetFailures sets the lookup for messages whose last review failed.
func (md *MessageDetail) SetFailures(fn func(id int64) error) {
	md.failure = fn
}

// Update renders m.
func (md *MessageDetail) Update(m queue.Message) {
	md.id = m.ID
	md.Clear()
	md.SetTitle(fmt.Sprintf(" Message %d ", m.ID))

	if err := md.failure(m.ID); err != nil {
		_, _ = fmt.Fprintf(md, "[%s::b]Review failed:[-:-:-] %s\n\n",
			ui.ColorTag(md.theme.FlashErrColor), tview.Escape(sanitizeForTerminal(err.Error())))
	}

	field := func(name, value string) {
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(md, "[::b]%-12s[-:-:-] %s\n", name+":", tview.Escape(sanitizeForTerminal(value)))
	}
	score := func(name string, v *float64) {
		c := md.theme.ScoreColor(0, false)
		if v != nil {
			c = md.theme.ScoreColor(*v, true)
		}
		_, _ = fmt.Fprintf(md, "[::b]%-12s[-:-:-] [%s]%s[-]\n", name+":", ui.ColorTag(c), formatScore(v))
	}

	field("Group", joinNonEmpty(m.GroupName, m.GroupID))
	field("Building", joinNonEmpty(m.BuildingName, m.BuildingID))
	field("Client", m.ClientName)
	field("Sender", m.SenderID)
	field("Sent", formatFull(m.MessageTimestamp))
	field("Ingested", formatFull(&m.CreatedAt))
	if m.IsReviewed {
		field("Reviewed", formatFull(m.ReviewedAt))
	}
	_, _ = fmt.Fprintln(md)

	score("Moderation", m.ModerationScore)
	score("Adversity", m.Adversity)
	score("Violence", m.Violence)
	score("Inappropriate", m.Inappropriate)
	score("Spam", m.Spam)
	_, _ = fmt.Fprintln(md)

	_, _ = fmt.Fprintf(md, "[::b]Original[-:-:-]\n%s\n", tview.Escape(sanitizeBlock(m.OriginalText)))
	if m.ProcessedText != "" && m.ProcessedText != m.OriginalText {
		_, _ = fmt.Fprintf(md, "\n[::b]Processed[-:-:-]\n%s\n", tview.Escape(sanitizeBlock(m.ProcessedText)))
	}
	md.ScrollToBeginning()
}

func formatFull(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func joinNonEmpty(name, id string) string {
	switch {
	case name == "":
		return id
	case id == "" || id == name:
		return name
	default:
		return fmt.Sprintf("%s (%s)", name, id)
	}
}

// Plain renders m without color tags, for the CLI.
func Plain(m queue.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id:         %d\n", m.ID)
	fmt.Fprintf(&b, "group:      %s\n", joinNonEmpty(m.GroupName, m.GroupID))
	fmt.Fprintf(&b, "client:     %s\n", m.ClientName)
	fmt.Fprintf(&b, "sent:       %s\n", formatFull(m.MessageTimestamp))
	fmt.Fprintf(&b, "reviewed:   %t\n", m.IsReviewed)
	fmt.Fprintf(&b, "moderation: %s\n", formatScore(m.ModerationScore))
	fmt.Fprintf(&b, "  adversity %s  violence %s  inappropriate %s  spam %s\n",
		formatScore(m.Adversity), formatScore(m.Violence), formatScore(m.Inappropriate), formatScore(m.Spam))
	fmt.Fprintf(&b, "\n%s\n", displayText(m))
	return b.String()
}
