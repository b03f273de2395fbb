// Package store provides the persistence collaborator for rooms and
// messages. Every call is best-effort from the session engine's point of
// view: failures are logged by the caller and never affect delivery.
package store

import (
	"context"
	"time"
)

// RoomRecord identifies a persisted room.
type RoomRecord struct {
	ID        string
	Slug      string
	CreatedAt time.Time
}

// Store is implemented by each persistence backend.
type Store interface {
	// EnsureRoom finds or creates the room with the given slug.
	EnsureRoom(ctx context.Context, slug string) (RoomRecord, error)

	// AppendMessage records one chat message for a room.
	AppendMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error

	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// Nop discards everything. Used when no backend is configured.
type Nop struct{}

// EnsureRoom returns a synthetic record keyed by the slug itself.
func (Nop) EnsureRoom(_ context.Context, slug string) (RoomRecord, error) {
	return RoomRecord{ID: slug, Slug: slug}, nil
}

// AppendMessage drops the message.
func (Nop) AppendMessage(context.Context, string, string, string, time.Time) error {
	return nil
}

// Close is a no-op.
func (Nop) Close(context.Context) error { return nil }
