package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/modq/internal/queue"
)

// formatScore renders a 0..1 score as a whole percentage.
func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

// formatTimestamp is clock time for today, month/day otherwise.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// displayText prefers the processed text, falling back to the original.
func displayText(m queue.Message) string {
	if m.ProcessedText != "" {
		return m.ProcessedText
	}
	return m.OriginalText
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
