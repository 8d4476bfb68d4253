package state

import (
	"sync"

	"github.com/evently/courier/internal/store"
)

// View holds the in-memory client state the UI renders: the conversation
// list, the active thread, the contact directory, and the push-channel
// connected flag. Nothing here is persisted.
//
// Mutations replace slices rather than editing them in place, so a snapshot
// handed to a renderer is never changed underneath it.
type View struct {
	mu sync.RWMutex

	conversations []store.Conversation
	contacts      []store.Connection
	messages      []store.Message
	activeContact string
	connected     bool

	Flash Flash
}

// NewView creates an empty view state.
func NewView() *View {
	return &View{}
}

// Conversations returns the current conversation list snapshot.
func (v *View) Conversations() []store.Conversation {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.conversations
}

// SetConversations replaces the conversation list.
func (v *View) SetConversations(convs []store.Conversation) {
	v.mu.Lock()
	v.conversations = convs
	v.mu.Unlock()
}

// Contacts returns the current contact directory snapshot.
func (v *View) Contacts() []store.Connection {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.contacts
}

// SetContacts replaces the contact directory.
func (v *View) SetContacts(contacts []store.Connection) {
	v.mu.Lock()
	v.contacts = contacts
	v.mu.Unlock()
}

// Messages returns the active thread snapshot.
func (v *View) Messages() []store.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.messages
}

// ActiveContact returns the contact id of the open thread, or "".
func (v *View) ActiveContact() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.activeContact
}

// SetThread replaces the active thread with the given contact's messages.
func (v *View) SetThread(contactID string, msgs []store.Message) {
	v.mu.Lock()
	v.activeContact = contactID
	v.messages = msgs
	v.mu.Unlock()
}

// ClearThread drops the active selection and its messages.
func (v *View) ClearThread() {
	v.mu.Lock()
	v.activeContact = ""
	v.messages = nil
	v.mu.Unlock()
}

// AppendMessage adds a message to the end of the active thread.
func (v *View) AppendMessage(msg store.Message) {
	v.mu.Lock()
	next := make([]store.Message, 0, len(v.messages)+1)
	next = append(next, v.messages...)
	next = append(next, msg)
	v.messages = next
	v.mu.Unlock()
}

// ReplaceMessage swaps the message with the given id for the replacement,
// keeping its position. Reports whether a match was found.
func (v *View) ReplaceMessage(id string, replacement store.Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, m := range v.messages {
		if m.ID == id {
			next := make([]store.Message, len(v.messages))
			copy(next, v.messages)
			next[i] = replacement
			v.messages = next
			return true
		}
	}
	return false
}

// RemoveMessage deletes the message with the given id from the active
// thread. Reports whether a match was found.
func (v *View) RemoveMessage(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, m := range v.messages {
		if m.ID == id {
			next := make([]store.Message, 0, len(v.messages)-1)
			next = append(next, v.messages[:i]...)
			next = append(next, v.messages[i+1:]...)
			v.messages = next
			return true
		}
	}
	return false
}

// ContainsMessage reports whether the active thread holds the given id.
func (v *View) ContainsMessage(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, m := range v.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MessageByID returns the thread message with the given id.
func (v *View) MessageByID(id string) (store.Message, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, m := range v.messages {
		if m.ID == id {
			return m, true
		}
	}
	return store.Message{}, false
}

// MarkThreadRead flips the read flag on every thread message addressed to
// the organizer.
func (v *View) MarkThreadRead(organizerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make([]store.Message, len(v.messages))
	copy(next, v.messages)
	for i := range next {
		if next[i].ReceiverID == organizerID {
			next[i].Read = true
		}
	}
	v.messages = next
}

// MarkOwnMessagesRead flips the read flag on every thread message the
// organizer sent. Used when the counterpart reports having read the thread.
func (v *View) MarkOwnMessagesRead(organizerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make([]store.Message, len(v.messages))
	copy(next, v.messages)
	for i := range next {
		if next[i].SenderID == organizerID {
			next[i].Read = true
		}
	}
	v.messages = next
}

// ConversationByContact finds the conversation for a contact id.
func (v *View) ConversationByContact(contactID string) (store.Conversation, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, c := range v.conversations {
		if c.ContactID == contactID {
			return c, true
		}
	}
	return store.Conversation{}, false
}

// PrependConversation puts a conversation at the head of the list.
func (v *View) PrependConversation(conv store.Conversation) {
	v.mu.Lock()
	next := make([]store.Conversation, 0, len(v.conversations)+1)
	next = append(next, conv)
	next = append(next, v.conversations...)
	v.conversations = next
	v.mu.Unlock()
}

// RemoveConversation deletes the conversation for a contact id.
func (v *View) RemoveConversation(contactID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make([]store.Conversation, 0, len(v.conversations))
	for _, c := range v.conversations {
		if c.ContactID != contactID {
			next = append(next, c)
		}
	}
	v.conversations = next
}

// PatchConversation applies fn to the conversation for a contact id,
// replacing the stored copy with the result.
func (v *View) PatchConversation(contactID string, fn func(*store.Conversation)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := make([]store.Conversation, len(v.conversations))
	copy(next, v.conversations)
	for i := range next {
		if next[i].ContactID == contactID {
			fn(&next[i])
			break
		}
	}
	v.conversations = next
}

// Connected returns the push-channel health flag.
func (v *View) Connected() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.connected
}

// SetConnected updates the push-channel health flag.
func (v *View) SetConnected(connected bool) {
	v.mu.Lock()
	v.connected = connected
	v.mu.Unlock()
}
