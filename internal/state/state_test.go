package state

import (
	"testing"
	"time"

	"github.com/evently/courier/internal/store"
)

func TestReplaceMessageKeepsPosition(t *testing.T) {
	v := NewView()
	v.SetThread("u2", []store.Message{
		{ID: "m1", Content: "Hi"},
		{ID: "pending-x", Content: "How are you?"},
		{ID: "m3", Content: "later"},
	})

	ok := v.ReplaceMessage("pending-x", store.Message{ID: "m42", Content: "How are you?"})
	if !ok {
		t.Fatal("ReplaceMessage() = false, want true")
	}

	msgs := v.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[1].ID != "m42" {
		t.Errorf("messages[1].ID = %q, want m42", msgs[1].ID)
	}
}

func TestReplaceMessageMissing(t *testing.T) {
	v := NewView()
	v.SetThread("u2", []store.Message{{ID: "m1"}})
	if v.ReplaceMessage("nope", store.Message{ID: "m2"}) {
		t.Error("ReplaceMessage() = true for missing id")
	}
}

func TestRemoveMessage(t *testing.T) {
	v := NewView()
	v.SetThread("u2", []store.Message{{ID: "m1"}, {ID: "m2"}})
	if !v.RemoveMessage("m1") {
		t.Fatal("RemoveMessage() = false")
	}
	msgs := v.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestSnapshotsAreStable(t *testing.T) {
	v := NewView()
	v.SetThread("u2", []store.Message{{ID: "m1", Content: "Hi"}})
	snapshot := v.Messages()

	v.AppendMessage(store.Message{ID: "m2"})
	v.ReplaceMessage("m1", store.Message{ID: "m1", Content: "changed"})

	if len(snapshot) != 1 || snapshot[0].Content != "Hi" {
		t.Errorf("snapshot mutated: %+v", snapshot)
	}
}

func TestMarkThreadRead(t *testing.T) {
	v := NewView()
	v.SetThread("u2", []store.Message{
		{ID: "m1", SenderID: "u2", ReceiverID: "org-1"},
		{ID: "m2", SenderID: "org-1", ReceiverID: "u2"},
	})
	v.MarkThreadRead("org-1")

	msgs := v.Messages()
	if !msgs[0].Read {
		t.Error("inbound message not marked read")
	}
	if msgs[1].Read {
		t.Error("outbound message should be untouched")
	}
}

func TestPatchConversation(t *testing.T) {
	v := NewView()
	v.SetConversations([]store.Conversation{
		{ID: "a:b", ContactID: "b", UnreadCount: 3},
	})
	v.PatchConversation("b", func(c *store.Conversation) {
		c.UnreadCount = 0
		c.LastMessage = "ok"
	})

	conv, ok := v.ConversationByContact("b")
	if !ok {
		t.Fatal("conversation lost")
	}
	if conv.UnreadCount != 0 || conv.LastMessage != "ok" {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestRemoveConversation(t *testing.T) {
	v := NewView()
	v.SetConversations([]store.Conversation{
		{ContactID: "a"}, {ContactID: "b"},
	})
	v.RemoveConversation("a")
	convs := v.Conversations()
	if len(convs) != 1 || convs[0].ContactID != "b" {
		t.Errorf("conversations = %+v", convs)
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-time.Minute), "17:59"},
		{"this morning", now.Add(-10 * time.Hour), "08:00"},
		{"two days ago", now.Add(-48 * time.Hour), "Mar 8, 2026"},
		{"zero", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.t, now); got != tt.want {
				t.Errorf("FormatTimestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterConnections(t *testing.T) {
	contacts := []store.Connection{
		{ID: "1", Name: "Dana Velez", Company: "Skyline Events", Email: "dana@skyline.test"},
		{ID: "2", Name: "Omar Reed", Company: "Vertex AV", Email: "omar@vertex.test"},
	}

	if got := FilterConnections(contacts, ""); len(got) != 2 {
		t.Errorf("empty query matched %d, want 2", len(got))
	}
	if got := FilterConnections(contacts, "VELEZ"); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("name match = %+v", got)
	}
	if got := FilterConnections(contacts, "vertex"); len(got) != 1 || got[0].ID != "2" {
		t.Errorf("company match = %+v", got)
	}
	if got := FilterConnections(contacts, "skyline.test"); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("email match = %+v", got)
	}
	if got := FilterConnections(contacts, "nobody"); len(got) != 0 {
		t.Errorf("miss matched %d, want 0", len(got))
	}
}

func TestFlashExpiry(t *testing.T) {
	var f Flash
	f.SetError("boom", 20*time.Millisecond)

	msg, level := f.Get()
	if msg != "boom" || level != FlashError {
		t.Errorf("Get() = %q, %v", msg, level)
	}

	time.Sleep(40 * time.Millisecond)
	if msg, _ := f.Get(); msg != "" {
		t.Errorf("Get() after expiry = %q, want empty", msg)
	}
}
