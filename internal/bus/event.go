package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds used across the engine. Subscribers filter by prefix, so
// "thread." matches every thread event and "" matches everything.
const (
	KindConversationsUpdated = "store.conversations_updated"
	KindContactsUpdated      = "store.contacts_updated"
	KindThreadUpdated        = "thread.updated"
	KindMessagePending       = "message.pending"
	KindMessageConfirmed     = "message.confirmed"
	KindMessageFailed        = "message.failed"
	KindMessageDeleted       = "message.deleted"
	KindChannelConnecting    = "channel.connecting"
	KindChannelOpen          = "channel.open"
	KindChannelClosed        = "channel.closed"
	KindChannelDegraded      = "channel.degraded"
	KindFlash                = "ui.flash"
)
