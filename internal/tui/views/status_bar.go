package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/evently/courier/internal/state"
)

// StatusBar displays the session name, push-channel state, and flash notices.
type StatusBar struct {
	*tview.TextView
	session    string
	connected  bool
	flash      string
	flashLevel state.FlashLevel
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnected updates the push-channel indicator.
func (sb *StatusBar) SetConnected(connected bool) {
	sb.connected = connected
	sb.render()
}

// SetFlash sets a temporary notice.
func (sb *StatusBar) SetFlash(msg string, level state.FlashLevel) {
	sb.flash = msg
	sb.flashLevel = level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	link := "[gray]○ polling[-]"
	if sb.connected {
		link = "[green]● live[-]"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.session, link, clock)
	if sb.flash != "" {
		color := "yellow"
		if sb.flashLevel == state.FlashError {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
