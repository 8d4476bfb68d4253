package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/store"
	"github.com/evently/courier/internal/tui/ui"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	convs  []store.Conversation
	filter string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
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
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Update refreshes the conversation list with new data.
func (cl *ConversationList) Update(convs []store.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func (cl *ConversationList) matches(conv store.Conversation) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	return strings.Contains(strings.ToLower(conv.ContactName), f) ||
		strings.Contains(strings.ToLower(conv.LastMessage), f)
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" CONTACT", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	now := time.Now()
	row := 1
	for _, conv := range cl.convs {
		if !cl.matches(conv) {
			continue
		}

		name := conv.ContactName
		if name == "" {
			name = conv.ContactID
		}
		if conv.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", conv.UnreadCount, name)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(conv.LastMessage))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(state.FormatTimestamp(conv.LastMessageTime, now)).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		row++
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", row-1, len(cl.convs), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedContact returns the contact id of the currently selected row.
func (cl *ConversationList) SelectedContact() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx < 0 {
		return ""
	}

	visible := 0
	for _, conv := range cl.convs {
		if !cl.matches(conv) {
			continue
		}
		if visible == idx {
			return conv.ContactID
		}
		visible++
	}
	return ""
}
