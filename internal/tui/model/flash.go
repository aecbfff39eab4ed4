package model

import (
	"fmt"
	"sync"
	"time"
)

const (
	infoTTL  = 3 * time.Second
	errorTTL = 5 * time.Second
)

// Flash is a single transient status-bar message.
type Flash struct {
	mu      sync.RWMutex
	message string
	isErr   bool
	expires time.Time
}

// Set stores msg until d has elapsed.
func (f *Flash) Set(msg string, d time.Duration) {
	f.set(msg, false, d)
}

// Info shows msg for a few seconds.
func (f *Flash) Info(msg string) {
	f.set(msg, false, infoTTL)
}

// Error shows "what: err". A nil err is ignored.
func (f *Flash) Error(what string, err error) {
	if err == nil {
		return
	}
	f.set(fmt.Sprintf("%s: %v", what, err), true, errorTTL)
}

func (f *Flash) set(msg string, isErr bool, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.isErr = isErr
	f.expires = time.Now().Add(d)
}

// Get returns the current message, or "" once it has expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}

// IsError reports whether the current message came from Error.
func (f *Flash) IsError() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isErr && !time.Now().After(f.expires)
}

// Clear drops the current message.
func (f *Flash) Clear() {
	f.mu.Lock()
	f.message = ""
	f.isErr = false
	f.expires = time.Time{}
	f.mu.Unlock()
}
