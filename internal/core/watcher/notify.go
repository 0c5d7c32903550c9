package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"devshell/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
)

// NotifyService adapts fsnotify's single event stream to per-directory keys.
// Events are routed to the key of the directory that contains them; a remove
// or rename naming a registered directory invalidates that key and signals it
// with an empty batch.
type NotifyService struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	mu     sync.Mutex
	keys   map[string]*notifyKey
	ready  []*notifyKey
	closed bool

	wake chan struct{}
	done chan struct{}
}

type notifyKey struct {
	svc       *NotifyService
	dir       string
	pending   []RawEvent
	signalled bool
	valid     bool
	removed   bool
}

var _ Service = (*NotifyService)(nil)

func NewNotifyService(logger *slog.Logger) (*NotifyService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	s := &NotifyService{
		fsw:    fsw,
		logger: logger,
		keys:   make(map[string]*notifyKey),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *NotifyService) Register(dir string) (Key, error) {
	dir = filepath.Clean(dir)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if k := s.keys[dir]; k != nil && k.valid {
		s.mu.Unlock()
		return k, nil
	}
	s.mu.Unlock()

	if err := s.fsw.Add(dir); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	if k := s.keys[dir]; k != nil && k.valid {
		return k, nil
	}
	k := &notifyKey{svc: s, dir: dir, valid: true}
	s.keys[dir] = k
	observability.WatcherKeys.Inc()
	return k, nil
}

func (s *NotifyService) Take(ctx context.Context) (Key, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrServiceClosed
		}
		if len(s.ready) > 0 {
			k := s.ready[0]
			s.ready[0] = nil
			s.ready = s.ready[1:]
			s.mu.Unlock()
			return k, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
		case <-s.wake:
		}
	}
}

func (s *NotifyService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, k := range s.keys {
		s.invalidateLocked(k)
	}
	s.ready = nil
	close(s.done)
	s.mu.Unlock()

	return s.fsw.Close()
}

func (s *NotifyService) pump() {
	for {
		select {
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.route(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.overflow()
				continue
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *NotifyService) route(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	kind, relevant := translateOp(ev.Op)

	s.mu.Lock()
	defer s.mu.Unlock()
	// The inode behind a removed or renamed directory is gone from this path
	// even when a new directory already sits there, and fsnotify has dropped
	// its watch. The path must be registered again to see the new one.
	if self := s.keys[name]; self != nil && self.valid && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
		self.removed = true
		s.invalidateLocked(self)
		s.signalLocked(self)
	}
	if relevant {
		parentDir := filepath.Dir(name)
		if parent := s.keys[parentDir]; parent != nil && parent.valid && parentDir != name {
			parent.pending = append(parent.pending, RawEvent{Kind: kind, Child: filepath.Base(name)})
			s.signalLocked(parent)
		}
	}
}

func (s *NotifyService) overflow() {
	observability.WatcherOverflowsTotal.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if !k.valid {
			continue
		}
		k.pending = append(k.pending, RawEvent{Kind: EventOverflow})
		s.signalLocked(k)
	}
}

func (s *NotifyService) signalLocked(k *notifyKey) {
	if k.signalled {
		return
	}
	k.signalled = true
	s.ready = append(s.ready, k)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *NotifyService) invalidateLocked(k *notifyKey) {
	if !k.valid {
		return
	}
	k.valid = false
	if s.keys[k.dir] == k {
		delete(s.keys, k.dir)
	}
	observability.WatcherKeys.Dec()
}

func translateOp(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventDelete, true
	case op.Has(fsnotify.Write):
		return EventModify, true
	default:
		return 0, false
	}
}

func (k *notifyKey) Dir() string {
	return k.dir
}

func (k *notifyKey) PollEvents() []RawEvent {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	events := k.pending
	k.pending = nil
	return events
}

func (k *notifyKey) Reset() bool {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	if !k.valid {
		return false
	}
	k.signalled = false
	if len(k.pending) > 0 {
		k.svc.signalLocked(k)
	}
	return true
}

func (k *notifyKey) Removed() bool {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	return k.removed
}

func (k *notifyKey) Cancel() {
	k.svc.mu.Lock()
	if !k.valid {
		k.svc.mu.Unlock()
		return
	}
	k.svc.invalidateLocked(k)
	closed := k.svc.closed
	k.svc.mu.Unlock()

	if !closed {
		_ = k.svc.fsw.Remove(k.dir)
	}
}
