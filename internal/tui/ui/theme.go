package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	SelectedMarkColor tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	ScoreLowColor     tcell.Color
	ScoreMidColor     tcell.Color
	ScoreHighColor    tcell.Color
	UnscoredColor     tcell.Color
	LiveOnColor       tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		SelectedMarkColor: tcell.ColorFuchsia,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		ScoreLowColor:     tcell.ColorMediumSeaGreen,
		ScoreMidColor:     tcell.ColorGold,
		ScoreHighColor:    tcell.ColorOrangeRed,
		UnscoredColor:     tcell.ColorGray,
		LiveOnColor:       tcell.ColorLime,
	}
}

// Score thresholds, as fractions of 1, for the low/mid/high colors.
const (
	ScoreMidThreshold  = 0.4
	ScoreHighThreshold = 0.7
)

// ScoreColor picks the color for an aggregate score. Unscored messages are
// drawn in the muted color.
func (t *Theme) ScoreColor(score float64, scored bool) tcell.Color {
	switch {
	case !scored:
		return t.UnscoredColor
	case score >= ScoreHighThreshold:
		return t.ScoreHighColor
	case score >= ScoreMidThreshold:
		return t.ScoreMidColor
	default:
		return t.ScoreLowColor
	}
}

// ColorTag returns the tview color tag name for c.
func ColorTag(c tcell.Color) string {
	return colorName(c)
}
