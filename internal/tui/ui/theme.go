package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	OnlineColor      tcell.Color
	OfflineColor     tcell.Color
	PendingColor     tcell.Color
	FlashInfoColor   tcell.Color
	FlashErrColor    tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableHeaderBg:    tcell.ColorBlack,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		OnlineColor:      tcell.ColorGreen,
		OfflineColor:     tcell.ColorGray,
		PendingColor:     tcell.ColorDarkGray,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashErrColor:    tcell.ColorOrangeRed,
	}
}
