package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response from the conversation store.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conversation store: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("conversation store: status %d", e.StatusCode)
}

// Store is the conversation-store contract the message service depends on.
// The backing implementation is the platform's REST API; tests substitute
// in-memory fakes.
type Store interface {
	ListConversations(ctx context.Context, organizerID string) ([]Conversation, error)
	ListMessages(ctx context.Context, organizerID, contactID string) ([]Message, error)
	SendMessage(ctx context.Context, organizerID, contactID, content string) (Message, error)
	MarkRead(ctx context.Context, organizerID, contactID string) error
	DeleteMessage(ctx context.Context, organizerID, messageID string) error
	DeleteConversation(ctx context.Context, organizerID, contactID string) error
	ListConnections(ctx context.Context, organizerID string) ([]Connection, error)
}

// Client talks to the conversation store over HTTP. Every call is attempted
// exactly once; failures are terminal for the action that issued them.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a store client for the given API base URL. timeout bounds
// each request; zero means no client-side bound.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListConversations returns all conversations for the organizer, in store
// order (most recent activity first).
func (c *Client) ListConversations(ctx context.Context, organizerID string) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	path := fmt.Sprintf("/api/organizers/%s/messages", url.PathEscape(organizerID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// ListMessages returns the full history for one thread, oldest first.
func (c *Client) ListMessages(ctx context.Context, organizerID, contactID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/organizers/%s/messages?contactId=%s",
		url.PathEscape(organizerID), url.QueryEscape(contactID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage persists a message and returns the canonical server record.
func (c *Client) SendMessage(ctx context.Context, organizerID, contactID, content string) (Message, error) {
	body := map[string]string{"contactId": contactID, "content": content}
	var resp struct {
		Message Message `json:"message"`
	}
	path := fmt.Sprintf("/api/organizers/%s/messages", url.PathEscape(organizerID))
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return Message{}, err
	}
	return resp.Message, nil
}

// MarkRead marks every message in the thread addressed to the organizer as
// read.
func (c *Client) MarkRead(ctx context.Context, organizerID, contactID string) error {
	body := map[string]string{"contactId": contactID}
	path := fmt.Sprintf("/api/organizers/%s/messages/read", url.PathEscape(organizerID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// DeleteMessage removes one message. The store is the final authority on
// ownership; the service additionally refuses foreign messages up front.
func (c *Client) DeleteMessage(ctx context.Context, organizerID, messageID string) error {
	path := fmt.Sprintf("/api/organizers/%s/messages/%s",
		url.PathEscape(organizerID), url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteConversation removes a thread and all its messages.
func (c *Client) DeleteConversation(ctx context.Context, organizerID, contactID string) error {
	path := fmt.Sprintf("/api/organizers/%s/messages?contactId=%s",
		url.PathEscape(organizerID), url.QueryEscape(contactID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListConnections returns the contacts the organizer may message.
func (c *Client) ListConnections(ctx context.Context, organizerID string) ([]Connection, error) {
	var resp struct {
		Connections []Connection `json:"connections"`
	}
	path := fmt.Sprintf("/api/users/%s/connections", url.PathEscape(organizerID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Connections, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readErrorMessage pulls the "error" field out of a failure body, if any.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}
