// Package logring keeps a bounded in-memory buffer of recent log entries
// backing the server's operator console.
package logring

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCapacity = 128

// Entry is one captured log event.
type Entry struct {
	Tag     string
	Message string
	Time    time.Time
}

// Ring holds the most recent entries, evicting the oldest first. It is safe
// for concurrent appends; zerolog events can arrive from any goroutine.
type Ring struct {
	mu       sync.Mutex
	max      int
	entries  []Entry
	onAppend func([]Entry)
}

// New creates a ring keeping at most max entries.
func New(max int) *Ring {
	if max <= 0 {
		max = defaultCapacity
	}
	return &Ring{max: max}
}

// OnAppend registers a callback invoked with a snapshot after every append.
func (r *Ring) OnAppend(fn func([]Entry)) {
	r.mu.Lock()
	r.onAppend = fn
	r.mu.Unlock()
}

// Append records an entry, evicting the oldest if the ring is full.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	fn := r.onAppend
	r.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// Entries returns a snapshot of the current contents, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	return snapshot
}

// Hook returns a zerolog hook that mirrors every event into the ring.
func (r *Ring) Hook() zerolog.Hook {
	return ringHook{ring: r}
}

type ringHook struct {
	ring *Ring
}

func (h ringHook) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	if message == "" {
		return
	}
	h.ring.Append(Entry{Tag: level.String(), Message: message, Time: time.Now()})
}
