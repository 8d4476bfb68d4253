package state

import (
	"strings"
	"time"

	"github.com/evently/courier/internal/store"
)

// FormatTimestamp renders a message time for display: time of day for
// anything within the last 24 hours, calendar date otherwise.
func FormatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.Sub(t) < 24*time.Hour {
		return t.Format("15:04")
	}
	return t.Format("Jan 2, 2006")
}

// FilterConnections returns the contacts whose name, company, or email
// contains the query, case-insensitively. An empty query matches everyone.
func FilterConnections(contacts []store.Connection, query string) []store.Connection {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return contacts
	}
	var out []store.Connection
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Company), query) ||
			strings.Contains(strings.ToLower(c.Email), query) {
			out = append(out, c)
		}
	}
	return out
}
