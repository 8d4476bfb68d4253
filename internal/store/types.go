package store

import (
	"sort"
	"strings"
	"time"
)

// Connection is a platform user the organizer may message. Maintained by the
// connections service; read-only here.
type Connection struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email,omitempty"`
	Avatar   string     `json:"avatar,omitempty"`
	Role     string     `json:"role,omitempty"`
	Company  string     `json:"company,omitempty"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// Roles a connection may carry.
const (
	RoleOrganizer    = "organizer"
	RoleSpeaker      = "speaker"
	RoleAttendee     = "attendee"
	RoleExhibitor    = "exhibitor"
	RoleVenueManager = "venue-manager"
	RoleAdmin        = "admin"
)

// Conversation is the unique pairing of the organizer and one contact.
type Conversation struct {
	ID              string    `json:"id"`
	ContactID       string    `json:"contactId"`
	ContactName     string    `json:"contactName,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int       `json:"unreadCount"`
}

// Message is a single directed communication.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}

// ConversationID derives the deterministic conversation id for an unordered
// participant pair. Both orderings produce the same id, which is what keeps
// a pair from ever owning two conversations.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}
