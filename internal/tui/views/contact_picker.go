package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/store"
	"github.com/evently/courier/internal/tui/ui"
)

// ContactPicker lists connections for starting a new chat, with incremental
// filtering over name, company, and email.
type ContactPicker struct {
	*tview.Flex
	theme    *ui.Theme
	input    *tview.InputField
	results  *tview.Table
	contacts []store.Connection
	visible  []store.Connection
	onPick   func(contact store.Connection)
}

// NewContactPicker creates a new contact picker view.
func NewContactPicker(theme *ui.Theme) *ContactPicker {
	input := tview.NewInputField().
		SetLabel(" Contact: ").
		SetFieldWidth(0)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	results.SetTitle(" Connections ")
	results.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	cp := &ContactPicker{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}

	input.SetChangedFunc(func(text string) {
		cp.render()
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			cp.pickSelected()
		}
	})
	results.SetSelectedFunc(func(row, col int) {
		cp.pickSelected()
	})

	return cp
}

// SetOnPick sets the callback when a contact is chosen.
func (cp *ContactPicker) SetOnPick(fn func(contact store.Connection)) {
	cp.onPick = fn
}

// Update refreshes the contact directory.
func (cp *ContactPicker) Update(contacts []store.Connection) {
	cp.contacts = contacts
	cp.render()
}

func (cp *ContactPicker) render() {
	cp.visible = state.FilterConnections(cp.contacts, cp.input.GetText())
	cp.results.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" ROLE", 0},
		{" COMPANY", 1},
		{" STATUS", 0},
	}
	for col, h := range headers {
		cp.results.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cp.theme.TableHeaderFg).
			SetBackgroundColor(cp.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	for i, c := range cp.visible {
		row := i + 1
		status := "[gray]offline[-]"
		if c.Online {
			status = "[green]online[-]"
		}
		cp.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.Name))).SetExpansion(1).SetTextColor(cp.theme.FgColor))
		cp.results.SetCell(row, 1, tview.NewTableCell(" "+c.Role).SetTextColor(cp.theme.FgColor))
		cp.results.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.Company))).SetExpansion(1).SetTextColor(cp.theme.FgColor))
		cp.results.SetCell(row, 3, tview.NewTableCell(status).SetAlign(tview.AlignRight))
	}

	cp.results.SetTitle(fmt.Sprintf(" Connections (%d/%d) ", len(cp.visible), len(cp.contacts)))
	if len(cp.visible) > 0 {
		cp.results.Select(1, 0)
	}
}

func (cp *ContactPicker) pickSelected() {
	row, _ := cp.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cp.visible) || cp.onPick == nil {
		return
	}
	cp.onPick(cp.visible[idx])
}

// Reset clears the filter input.
func (cp *ContactPicker) Reset() {
	cp.input.SetText("")
	cp.render()
}

// Input returns the filter input field (for focus management).
func (cp *ContactPicker) Input() *tview.InputField {
	return cp.input
}

// Results returns the results table (for focus management).
func (cp *ContactPicker) Results() *tview.Table {
	return cp.results
}
