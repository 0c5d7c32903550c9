package watcher

import (
	"context"
	"errors"
)

// EventKind classifies a raw event delivered by the native watch service.
type EventKind int

const (
	EventCreate EventKind = iota
	EventDelete
	EventModify
	EventOverflow
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventDelete:
		return "delete"
	case EventModify:
		return "modify"
	case EventOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// RawEvent is one native event. Child is the entry name relative to the
// key's directory and is empty for overflow.
type RawEvent struct {
	Kind  EventKind
	Child string
}

// ErrServiceClosed is returned by Take and Register once the service is closed.
var ErrServiceClosed = errors.New("watch service closed")

// Key is a native registration on a single directory.
type Key interface {
	// Dir is the directory the key was registered on.
	Dir() string
	// PollEvents drains the events pending on the key.
	PollEvents() []RawEvent
	// Reset re-arms the key for signalling. It returns false when the key is
	// no longer valid.
	Reset() bool
	// Cancel drops the native registration. Cancelling twice is a no-op.
	Cancel()
	// Removed reports whether the key became invalid because its directory
	// was removed or moved away, as opposed to being cancelled. The path may
	// already exist again as a different directory.
	Removed() bool
}

// Service is a non-recursive, directory-level native watch primitive.
type Service interface {
	// Register watches dir for create, delete and modify events. Registering a
	// directory that already has a valid key returns that key.
	Register(dir string) (Key, error)
	// Take blocks until a key is signalled, ctx is done, or the service closes.
	Take(ctx context.Context) (Key, error)
	Close() error
}
