package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evently/courier/internal/bus"
	"github.com/evently/courier/internal/metrics"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/store"
)

// Validation failures are rejected before any network call.
var (
	ErrEmptyMessage    = errors.New("message content is empty")
	ErrNoActiveContact = errors.New("no active contact selected")
)

// TempIDPrefix namespaces optimistic message ids. The store assigns opaque
// server ids and never produces this prefix, so reconciliation by id cannot
// collide with a real record.
const TempIDPrefix = "pending-"

const flashDuration = 5 * time.Second

// Broadcaster is the best-effort push side channel. Broadcasts are advisory
// only; every mutation also goes through the store directly.
type Broadcaster interface {
	Connected() bool
	BroadcastNewMessage(msg store.Message)
	BroadcastRead(contactID string)
}

// Service mediates between the view state and the conversation store,
// applying optimistic updates and reconciling them with server responses.
// Every store call is attempted exactly once per user action.
type Service struct {
	organizerID string
	store       store.Store
	view        *state.View
	bus         *bus.Bus
	logger      *zap.Logger

	mu          sync.Mutex
	broadcaster Broadcaster
	threadEpoch uint64
}

// New creates a message service.
func New(organizerID string, st store.Store, view *state.View, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		organizerID: organizerID,
		store:       st,
		view:        view,
		bus:         b,
		logger:      logger,
	}
}

// SetBroadcaster attaches the push channel once it exists. May be left unset;
// broadcasts are then skipped.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// OrganizerID returns the local organizer id.
func (s *Service) OrganizerID() string {
	return s.organizerID
}

// View returns the view state the service mutates.
func (s *Service) View() *state.View {
	return s.view
}

// LoadConversations replaces the conversation list from the store. On
// failure the prior list is left untouched and the user is notified.
func (s *Service) LoadConversations(ctx context.Context) error {
	convs, err := s.store.ListConversations(ctx, s.organizerID)
	if err != nil {
		metrics.IncStoreRequest("list_conversations", metrics.OutcomeError)
		s.flashError("Failed to load conversations")
		s.logger.Warn("list conversations failed", zap.Error(err))
		return err
	}
	metrics.IncStoreRequest("list_conversations", metrics.OutcomeOK)
	s.view.SetConversations(convs)
	s.bus.Emit(bus.KindConversationsUpdated, len(convs))
	return nil
}

// LoadConnections refreshes the contact directory used by the picker.
func (s *Service) LoadConnections(ctx context.Context) error {
	contacts, err := s.store.ListConnections(ctx, s.organizerID)
	if err != nil {
		metrics.IncStoreRequest("list_connections", metrics.OutcomeError)
		s.flashError("Failed to load contacts")
		s.logger.Warn("list connections failed", zap.Error(err))
		return err
	}
	metrics.IncStoreRequest("list_connections", metrics.OutcomeOK)
	s.view.SetContacts(contacts)
	s.bus.Emit(bus.KindContactsUpdated, len(contacts))
	return nil
}

// OpenThread makes the given contact active, loads its history, and then
// marks the thread read (fire-and-forget). Responses belonging to a
// selection the user has since navigated away from are discarded.
func (s *Service) OpenThread(ctx context.Context, contactID string) error {
	epoch := s.bumpEpoch()
	s.view.SetThread(contactID, nil)
	s.bus.Emit(bus.KindThreadUpdated, contactID)

	msgs, err := s.store.ListMessages(ctx, s.organizerID, contactID)
	if err != nil {
		metrics.IncStoreRequest("list_messages", metrics.OutcomeError)
		if s.epochCurrent(epoch) {
			s.flashError("Failed to load messages")
		}
		s.logger.Warn("list messages failed", zap.String("contact", contactID), zap.Error(err))
		return err
	}
	metrics.IncStoreRequest("list_messages", metrics.OutcomeOK)

	if !s.epochCurrent(epoch) {
		s.logger.Info("discarding stale thread response", zap.String("contact", contactID))
		return nil
	}
	s.view.SetThread(contactID, msgs)
	s.bus.Emit(bus.KindThreadUpdated, contactID)

	// Read receipts are issued only after the history is applied, so they
	// can never reference messages the client has not fetched.
	s.markRead(ctx, contactID, epoch)
	return nil
}

// MarkRead marks the active thread read. Failures are logged, never surfaced:
// read receipts are a best-effort affordance. Idempotent on a read thread.
func (s *Service) MarkRead(ctx context.Context) {
	contactID := s.view.ActiveContact()
	if contactID == "" {
		return
	}
	s.markRead(ctx, contactID, s.currentEpoch())
}

func (s *Service) markRead(ctx context.Context, contactID string, epoch uint64) {
	if err := s.store.MarkRead(ctx, s.organizerID, contactID); err != nil {
		metrics.IncStoreRequest("mark_read", metrics.OutcomeError)
		s.logger.Warn("mark read failed", zap.String("contact", contactID), zap.Error(err))
		return
	}
	metrics.IncStoreRequest("mark_read", metrics.OutcomeOK)

	if !s.epochCurrent(epoch) {
		return
	}
	s.view.MarkThreadRead(s.organizerID)
	s.view.PatchConversation(contactID, func(c *store.Conversation) {
		c.UnreadCount = 0
	})
	s.bus.Emit(bus.KindThreadUpdated, contactID)
	s.bus.Emit(bus.KindConversationsUpdated, nil)

	if b := s.currentBroadcaster(); b != nil && b.Connected() {
		b.BroadcastRead(contactID)
	}
}

// Send validates, optimistically appends, and persists a message to the
// active thread. On failure the optimistic record is removed; the composed
// text is not restored.
func (s *Service) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	contactID := s.view.ActiveContact()
	if contactID == "" {
		return ErrNoActiveContact
	}

	tempID := TempIDPrefix + uuid.NewString()
	now := time.Now()
	optimistic := store.Message{
		ID:         tempID,
		SenderID:   s.organizerID,
		ReceiverID: contactID,
		Content:    content,
		CreatedAt:  now,
	}
	s.view.AppendMessage(optimistic)
	s.patchPreview(contactID, content, now)
	s.bus.Emit(bus.KindMessagePending, tempID)
	s.bus.Emit(bus.KindThreadUpdated, contactID)

	msg, err := s.store.SendMessage(ctx, s.organizerID, contactID, content)
	if err != nil {
		metrics.IncStoreRequest("send_message", metrics.OutcomeError)
		metrics.IncSend(metrics.OutcomeError)
		s.view.RemoveMessage(tempID)
		s.flashError("Failed to send message")
		s.logger.Warn("send failed", zap.String("contact", contactID), zap.Error(err))
		s.bus.Emit(bus.KindMessageFailed, tempID)
		s.bus.Emit(bus.KindThreadUpdated, contactID)
		return err
	}
	metrics.IncStoreRequest("send_message", metrics.OutcomeOK)
	metrics.IncSend(metrics.OutcomeOK)

	s.view.ReplaceMessage(tempID, msg)
	s.patchPreview(contactID, msg.Content, msg.CreatedAt)
	s.bus.Emit(bus.KindMessageConfirmed, msg.ID)
	s.bus.Emit(bus.KindThreadUpdated, contactID)

	if b := s.currentBroadcaster(); b != nil && b.Connected() {
		b.BroadcastNewMessage(msg)
	}
	return nil
}

// DeleteMessage removes one of the organizer's own messages. Called with a
// foreign or unknown message it is a no-op: the UI never offers the control,
// and the service refuses regardless.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	msg, ok := s.view.MessageByID(messageID)
	if !ok || msg.SenderID != s.organizerID {
		s.logger.Info("refusing to delete foreign message", zap.String("message", messageID))
		return nil
	}

	if err := s.store.DeleteMessage(ctx, s.organizerID, messageID); err != nil {
		metrics.IncStoreRequest("delete_message", metrics.OutcomeError)
		s.flashError("Failed to delete message")
		s.logger.Warn("delete message failed", zap.String("message", messageID), zap.Error(err))
		return err
	}
	metrics.IncStoreRequest("delete_message", metrics.OutcomeOK)

	s.view.RemoveMessage(messageID)
	s.bus.Emit(bus.KindMessageDeleted, messageID)
	s.bus.Emit(bus.KindThreadUpdated, s.view.ActiveContact())

	// The deleted message may have been the conversation's preview line.
	return s.LoadConversations(ctx)
}

// DeleteConversation removes an entire thread. Deleting the active thread
// also clears the selection so nothing dangles.
func (s *Service) DeleteConversation(ctx context.Context, contactID string) error {
	if err := s.store.DeleteConversation(ctx, s.organizerID, contactID); err != nil {
		metrics.IncStoreRequest("delete_conversation", metrics.OutcomeError)
		s.flashError("Failed to delete conversation")
		s.logger.Warn("delete conversation failed", zap.String("contact", contactID), zap.Error(err))
		return err
	}
	metrics.IncStoreRequest("delete_conversation", metrics.OutcomeOK)

	s.view.RemoveConversation(contactID)
	if s.view.ActiveContact() == contactID {
		s.bumpEpoch()
		s.view.ClearThread()
		s.bus.Emit(bus.KindThreadUpdated, "")
	}
	s.bus.Emit(bus.KindConversationsUpdated, nil)
	return nil
}

// StartChat opens a thread with the given contact. An existing conversation
// is selected as-is; otherwise a zero-message placeholder is synthesized
// locally and no store call happens until the first send.
func (s *Service) StartChat(ctx context.Context, contact store.Connection) error {
	if _, ok := s.view.ConversationByContact(contact.ID); ok {
		return s.OpenThread(ctx, contact.ID)
	}

	s.view.PrependConversation(store.Conversation{
		ID:          store.ConversationID(s.organizerID, contact.ID),
		ContactID:   contact.ID,
		ContactName: contact.Name,
	})
	s.bumpEpoch()
	s.view.SetThread(contact.ID, nil)
	s.bus.Emit(bus.KindConversationsUpdated, nil)
	s.bus.Emit(bus.KindThreadUpdated, contact.ID)
	return nil
}

// HandleNewMessage applies a push-channel message notification. Frames are
// advisory: duplicates of records already confirmed through the store are
// ignored.
func (s *Service) HandleNewMessage(ctx context.Context, msg store.Message) {
	contactID := msg.SenderID
	if contactID == s.organizerID {
		contactID = msg.ReceiverID
	}

	if s.view.ActiveContact() == contactID {
		if !s.view.ContainsMessage(msg.ID) {
			s.view.AppendMessage(msg)
			s.patchPreview(contactID, msg.Content, msg.CreatedAt)
			s.bus.Emit(bus.KindThreadUpdated, contactID)
			// The thread is on screen, so the new message is read.
			s.markRead(ctx, contactID, s.currentEpoch())
		}
		return
	}

	if _, ok := s.view.ConversationByContact(contactID); ok {
		s.view.PatchConversation(contactID, func(c *store.Conversation) {
			c.LastMessage = msg.Content
			c.LastMessageTime = msg.CreatedAt
			c.UnreadCount++
		})
	} else {
		s.view.PrependConversation(store.Conversation{
			ID:              store.ConversationID(s.organizerID, contactID),
			ContactID:       contactID,
			LastMessage:     msg.Content,
			LastMessageTime: msg.CreatedAt,
			UnreadCount:     1,
		})
	}
	s.bus.Emit(bus.KindConversationsUpdated, nil)
}

// HandleMessagesRead applies a push-channel read receipt from the
// counterpart: the organizer's own messages in that thread become read.
func (s *Service) HandleMessagesRead(contactID string) {
	if s.view.ActiveContact() != contactID {
		return
	}
	s.view.MarkOwnMessagesRead(s.organizerID)
	s.bus.Emit(bus.KindThreadUpdated, contactID)
}

// Refresh is the fallback polling pass: re-fetch the conversation list and
// the active thread while the push channel is down.
func (s *Service) Refresh(ctx context.Context) {
	metrics.IncFallbackPoll()
	_ = s.LoadConversations(ctx)

	contactID := s.view.ActiveContact()
	if contactID == "" {
		return
	}
	epoch := s.currentEpoch()
	msgs, err := s.store.ListMessages(ctx, s.organizerID, contactID)
	if err != nil {
		metrics.IncStoreRequest("list_messages", metrics.OutcomeError)
		s.logger.Warn("fallback refresh failed", zap.String("contact", contactID), zap.Error(err))
		return
	}
	metrics.IncStoreRequest("list_messages", metrics.OutcomeOK)
	if !s.epochCurrent(epoch) {
		return
	}
	s.view.SetThread(contactID, msgs)
	s.bus.Emit(bus.KindThreadUpdated, contactID)

	for _, m := range msgs {
		if m.ReceiverID == s.organizerID && !m.Read {
			s.markRead(ctx, contactID, epoch)
			break
		}
	}
}

// flashError surfaces a user-visible failure notice and nudges the UI to
// redraw right away instead of waiting for the next data event.
func (s *Service) flashError(msg string) {
	s.view.Flash.SetError(msg, flashDuration)
	s.bus.Emit(bus.KindFlash, msg)
}

func (s *Service) patchPreview(contactID, content string, at time.Time) {
	if _, ok := s.view.ConversationByContact(contactID); !ok {
		s.view.PrependConversation(store.Conversation{
			ID:        store.ConversationID(s.organizerID, contactID),
			ContactID: contactID,
		})
	}
	s.view.PatchConversation(contactID, func(c *store.Conversation) {
		c.LastMessage = content
		c.LastMessageTime = at
	})
	s.bus.Emit(bus.KindConversationsUpdated, nil)
}

func (s *Service) bumpEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadEpoch++
	return s.threadEpoch
}

func (s *Service) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadEpoch
}

func (s *Service) epochCurrent(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadEpoch == epoch
}

func (s *Service) currentBroadcaster() Broadcaster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcaster
}
