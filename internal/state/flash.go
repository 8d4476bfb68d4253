package state

import (
	"sync"
	"time"
)

// FlashLevel distinguishes informational notices from errors.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashError
)

// Flash holds a transient notification message.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   FlashLevel
	expires time.Time
}

// Set stores an informational flash that expires after the given duration.
func (f *Flash) Set(msg string, d time.Duration) {
	f.set(msg, FlashInfo, d)
}

// SetError stores an error flash that expires after the given duration.
func (f *Flash) SetError(msg string, d time.Duration) {
	f.set(msg, FlashError, d)
}

func (f *Flash) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = time.Now().Add(d)
}

// Get returns the current flash message and level, or empty if expired.
func (f *Flash) Get() (string, FlashLevel) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", FlashInfo
	}
	return f.message, f.level
}
