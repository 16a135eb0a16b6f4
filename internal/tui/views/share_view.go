package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/matheus3301/modq/internal/tui/ui"
	"github.com/rivo/tview"
)

// ShareView shows the shareable link of the current filter as a QR code.
type ShareView struct {
	*tview.TextView
	theme *ui.Theme
	link  string
}

// NewShareView creates the share page.
func NewShareView(theme *ui.Theme) *ShareView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Share view ")
	tv.SetTitleColor(theme.TitleColor)

	return &ShareView{
		TextView: tv,
		theme:    theme,
	}
}

// Link returns the link currently shown.
func (sv *ShareView) Link() string {
	return sv.link
}

// ShowLink renders link and its QR code.
func (sv *ShareView) ShowLink(link string) {
	sv.link = link
	sv.Clear()
	_, _ = fmt.Fprintf(sv, "\n%s\n[::b]%s[-:-:-]\n\n[::d]Open on any device to see this filter.", RenderQR(link), tview.Escape(link))
}

// RenderQR converts content to a compact QR code using Unicode half-block
// characters, two bitmap rows per text line.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "(QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		for x := range cols {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
