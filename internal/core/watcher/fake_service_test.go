package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeService is an in-memory Service driven explicitly by tests.
type fakeService struct {
	mu     sync.Mutex
	keys   map[string]*fakeKey
	fail   map[string]error
	closed bool

	onRegister func(dir string)

	ready  chan *fakeKey
	resets chan *fakeKey
	done   chan struct{}
}

type fakeKey struct {
	svc       *fakeService
	dir       string
	pending   []RawEvent
	signalled bool
	valid     bool
	removed   bool
}

func newFakeService() *fakeService {
	return &fakeService{
		keys:   make(map[string]*fakeKey),
		fail:   make(map[string]error),
		ready:  make(chan *fakeKey, 256),
		resets: make(chan *fakeKey, 256),
		done:   make(chan struct{}),
	}
}

func (s *fakeService) Register(dir string) (Key, error) {
	k, err := s.register(dir)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	hook := s.onRegister
	s.mu.Unlock()
	if hook != nil {
		hook(k.Dir())
	}
	return k, nil
}

// setOnRegister installs a hook run after every successful registration.
func (s *fakeService) setOnRegister(hook func(dir string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRegister = hook
}

func (s *fakeService) register(dir string) (*fakeKey, error) {
	dir = filepath.Clean(dir)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	if err := s.fail[dir]; err != nil {
		return nil, err
	}
	if k := s.keys[dir]; k != nil && k.valid {
		return k, nil
	}
	k := &fakeKey{svc: s, dir: dir, valid: true}
	s.keys[dir] = k
	return k, nil
}

func (s *fakeService) Take(ctx context.Context) (Key, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrServiceClosed
	case k := <-s.ready:
		return k, nil
	}
}

func (s *fakeService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, k := range s.keys {
		k.valid = false
	}
	close(s.done)
	return nil
}

func (s *fakeService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeService) failOn(dir string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[filepath.Clean(dir)] = err
}

func (s *fakeService) key(t *testing.T, dir string) *fakeKey {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[filepath.Clean(dir)]
	if k == nil {
		t.Fatalf("no key registered for %s", dir)
	}
	return k
}

func (s *fakeService) hasLiveKey(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[filepath.Clean(dir)]
	return k != nil && k.valid
}

// emit queues events on the live key for dir and signals it.
func (s *fakeService) emit(t *testing.T, dir string, events ...RawEvent) *fakeKey {
	t.Helper()
	k := s.key(t, dir)
	s.mu.Lock()
	k.pending = append(k.pending, events...)
	s.signalLocked(k)
	s.mu.Unlock()
	return k
}

// invalidate mimics the native key going away because its directory was
// removed, and signals it with whatever is pending.
func (s *fakeService) invalidate(t *testing.T, dir string) *fakeKey {
	t.Helper()
	k := s.key(t, dir)
	s.mu.Lock()
	k.valid = false
	k.removed = true
	delete(s.keys, k.dir)
	s.signalLocked(k)
	s.mu.Unlock()
	return k
}

// cancel invalidates the key for dir as if its registration had been
// cancelled while the directory is still there.
func (s *fakeService) cancel(t *testing.T, dir string) *fakeKey {
	t.Helper()
	k := s.key(t, dir)
	s.mu.Lock()
	k.valid = false
	s.signalLocked(k)
	s.mu.Unlock()
	return k
}

func (s *fakeService) signalLocked(k *fakeKey) {
	if k.signalled {
		return
	}
	k.signalled = true
	s.ready <- k
}

func (k *fakeKey) Dir() string { return k.dir }

func (k *fakeKey) PollEvents() []RawEvent {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	events := k.pending
	k.pending = nil
	return events
}

func (k *fakeKey) Reset() bool {
	k.svc.mu.Lock()
	defer func() {
		k.svc.mu.Unlock()
		k.svc.resets <- k
	}()
	k.signalled = false
	if !k.valid {
		return false
	}
	if len(k.pending) > 0 {
		k.svc.signalLocked(k)
	}
	return true
}

func (k *fakeKey) Removed() bool {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	return k.removed
}

func (k *fakeKey) Cancel() {
	k.svc.mu.Lock()
	defer k.svc.mu.Unlock()
	k.valid = false
}

// waitReset blocks until the dispatch loop has finished a cycle for k.
func (s *fakeService) waitReset(t *testing.T, k *fakeKey) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-s.resets:
			if got == k {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for key %s to be processed", k.dir)
		}
	}
}

// countingListener records OnChange calls.
type countingListener struct {
	mu    sync.Mutex
	count int
	calls chan struct{}
}

func newCountingListener() *countingListener {
	return &countingListener{calls: make(chan struct{}, 64)}
}

func (l *countingListener) OnChange() {
	l.mu.Lock()
	l.count++
	l.mu.Unlock()
	l.calls <- struct{}{}
}

func (l *countingListener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *countingListener) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
