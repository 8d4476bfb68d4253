package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/evently/courier/internal/service"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/store"
	"github.com/evently/courier/internal/tui/ui"
)

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme       *ui.Theme
	messages    *tview.TextView
	composer    *tview.InputField
	contactName string
	contactID   string
	onSend      func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if strings.TrimSpace(text) != "" {
				mt.onSend(text)
			}
			// Cleared regardless of the send outcome: a failed send removes
			// the optimistic record but does not refill the input.
			composer.SetText("")
		}
	})

	return mt
}

// SetContact updates the contact this thread renders.
func (mt *MessageThread) SetContact(id, name string) {
	mt.contactID = id
	mt.contactName = name
	if name == "" {
		name = id
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// ContactID returns the contact whose thread is shown.
func (mt *MessageThread) ContactID() string {
	return mt.contactID
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update refreshes the thread with new messages, oldest first. Own messages
// carry a delivery marker: one tick sent, two ticks read, an ellipsis while
// still pending confirmation.
func (mt *MessageThread) Update(organizerID string, msgs []store.Message) {
	mt.messages.Clear()

	now := time.Now()
	for _, m := range msgs {
		sender := mt.contactName
		if sender == "" {
			sender = m.SenderID
		}
		marker := ""
		if m.SenderID == organizerID {
			sender = "You"
			switch {
			case strings.HasPrefix(m.ID, service.TempIDPrefix):
				marker = " [::d]…[-:-:-]"
			case m.Read:
				marker = " [::d]✓✓[-:-:-]"
			default:
				marker = " [::d]✓[-:-:-]"
			}
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)),
			state.FormatTimestamp(m.CreatedAt, now),
			marker,
			tview.Escape(sanitizeForTerminal(m.Content)))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	mt.messages.ScrollToEnd()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
