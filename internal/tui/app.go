package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/evently/courier/internal/bus"
	"github.com/evently/courier/internal/service"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/store"
	"github.com/evently/courier/internal/tui/ui"
	"github.com/evently/courier/internal/tui/views"
)

// App is the main TUI application shell. All data flows through the service
// and the view state; the shell only renders snapshots and forwards input.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	svc       *service.Service
	view      *state.View
	bus       *bus.Bus
	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.MessageThread
	picker    *views.ContactPicker
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(svc *service.Service, b *bus.Bus, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		svc:       svc,
		view:      svc.View(),
		bus:       b,
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		picker:    views.NewContactPicker(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if contactID := a.convList.SelectedContact(); contactID != "" {
			a.openThread(contactID)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			_ = a.svc.Send(a.ctx, text)
		}()
	})

	a.picker.SetOnPick(func(contact store.Connection) {
		go func() {
			if err := a.svc.StartChat(a.ctx, contact); err != nil {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.thread.SetContact(contact.ID, contact.Name)
				a.pages.SwitchToPage("thread")
				a.app.SetFocus(a.thread.Composer())
			})
		}()
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("thread", a.thread, true, false)
	a.pages.AddPage("contacts", a.picker, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "thread", "contacts":
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if event.Key() != tcell.KeyRune {
			return event
		}

		switch currentPage {
		case "conversations":
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 'n':
				a.showPicker()
				return nil
			case 'd':
				if contactID := a.convList.SelectedContact(); contactID != "" {
					go func() {
						_ = a.svc.DeleteConversation(a.ctx, contactID)
					}()
				}
				return nil
			}
		case "thread":
			switch event.Rune() {
			case 'i':
				a.app.SetFocus(a.thread.Composer())
				return nil
			case 'x':
				a.deleteLastOwnMessage()
				return nil
			}
		}

		return event
	})
}

func (a *App) openThread(contactID string) {
	name := contactID
	if conv, ok := a.view.ConversationByContact(contactID); ok && conv.ContactName != "" {
		name = conv.ContactName
	}
	a.thread.SetContact(contactID, name)
	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.thread.Messages())

	go func() {
		_ = a.svc.OpenThread(a.ctx, contactID)
	}()
}

func (a *App) showPicker() {
	a.picker.Reset()
	a.picker.Update(a.view.Contacts())
	a.pages.SwitchToPage("contacts")
	a.app.SetFocus(a.picker.Input())

	go func() {
		_ = a.svc.LoadConnections(a.ctx)
	}()
}

// deleteLastOwnMessage removes the newest of the organizer's own messages in
// the open thread. Messages from the counterpart are never offered.
func (a *App) deleteLastOwnMessage() {
	msgs := a.view.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].SenderID == a.svc.OrganizerID() {
			id := msgs[i].ID
			go func() {
				_ = a.svc.DeleteMessage(a.ctx, id)
			}()
			return
		}
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.watchBus()
	go a.tickClock()

	go func() {
		_ = a.svc.LoadConversations(a.ctx)
		_ = a.svc.LoadConnections(a.ctx)
	}()

	return a.app.Run()
}

// watchBus redraws on every state-changing event. Events are coalesced by
// tview's queue; rendering always reads fresh snapshots.
func (a *App) watchBus() {
	events, unsubscribe := a.bus.Subscribe("", 64)
	defer unsubscribe()

	for {
		select {
		case <-events:
			a.app.QueueUpdateDraw(a.redraw)
		case <-a.ctx.Done():
			return
		}
	}
}

// tickClock refreshes the status bar so the clock advances and expired
// flashes disappear without waiting for a data event.
func (a *App) tickClock() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.redrawStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) redraw() {
	a.convList.Update(a.view.Conversations())
	a.picker.Update(a.view.Contacts())

	if page, _ := a.pages.GetFrontPage(); page == "thread" {
		active := a.view.ActiveContact()
		if active == "" {
			// The open conversation was deleted out from under us.
			a.pages.SwitchToPage("conversations")
			a.app.SetFocus(a.convList)
		} else if active == a.thread.ContactID() {
			a.thread.Update(a.svc.OrganizerID(), a.view.Messages())
		}
	}

	a.redrawStatus()
}

func (a *App) redrawStatus() {
	a.statusBar.SetConnected(a.view.Connected())
	msg, level := a.view.Flash.Get()
	a.statusBar.SetFlash(msg, level)
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
