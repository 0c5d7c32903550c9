package watcher

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	domainerrors "devshell/internal/core/errors"

	"github.com/gobwas/glob"
)

// registry maps native keys to the entries sharing them. Only the dispatch
// goroutine adds entries after startup; the mutex covers snapshots and
// Unwatch clearing it from another goroutine.
type registry struct {
	service  Service
	excludes []glob.Glob
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[Key][]Entry
}

func newRegistry(service Service, excludes []glob.Glob, logger *slog.Logger) *registry {
	return &registry{
		service:  service,
		excludes: excludes,
		logger:   logger,
		entries:  make(map[Key][]Entry),
	}
}

// classify registers path according to what is on disk right now.
func (r *registry) classify(path string) (Key, Entry, error) {
	info, err := os.Lstat(path)
	switch {
	case err != nil && isNotExist(err):
		return r.registerAbsent(path)
	case err != nil:
		return nil, Entry{}, domainerrors.AddContext(
			domainerrors.Wrap(err, domainerrors.CodeInternal, "cannot inspect watch path"),
			domainerrors.CtxPath, path)
	case info.Mode()&fs.ModeSymlink != 0:
		return nil, Entry{}, domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeNotSupported, "symbolic links cannot be watched"),
			domainerrors.CtxPath, path)
	case info.Mode().IsRegular():
		return r.registerSingleFile(path)
	case info.IsDir():
		return r.registerTree(path)
	default:
		return nil, Entry{}, domainerrors.AddContext(
			domainerrors.Newf(domainerrors.CodeNotSupported, "%s is neither a file nor a directory", info.Mode().Type()),
			domainerrors.CtxPath, path)
	}
}

func (r *registry) registerDirectory(path string) (Key, Entry, error) {
	key, err := r.register(path, path)
	if err != nil {
		return nil, Entry{}, err
	}
	entry := directoryEntry(path)
	r.add(key, entry)
	return key, entry, nil
}

func (r *registry) registerSingleFile(path string) (Key, Entry, error) {
	key, err := r.register(filepath.Dir(path), path)
	if err != nil {
		return nil, Entry{}, err
	}
	entry := singleFileEntry(path)
	r.add(key, entry)
	return key, entry, nil
}

func (r *registry) registerAbsent(path string) (Key, Entry, error) {
	upstream, err := resolveUpstream(path)
	if err != nil {
		return nil, Entry{}, err
	}
	key, err := r.register(upstream, path)
	if err != nil {
		return nil, Entry{}, err
	}
	entry := absentEntry(path, upstream)
	r.add(key, entry)
	return key, entry, nil
}

// registerTree registers root and every sub-directory below it, pre-order,
// using an explicit stack. Failures below the root are collected and the walk
// continues; the returned key and entry belong to the root.
func (r *registry) registerTree(root string) (Key, Entry, error) {
	var (
		rootKey   Key
		rootEntry Entry
		errs      []error
	)

	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key, entry, err := r.registerDirectory(dir)
		if err != nil {
			if dir == root {
				return nil, Entry{}, err
			}
			errs = append(errs, err)
			continue
		}
		if dir == root {
			rootKey, rootEntry = key, entry
		}

		children, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeInternal, "cannot list directory"),
				domainerrors.CtxPath, dir))
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			if !child.IsDir() {
				continue
			}
			childPath := filepath.Join(dir, child.Name())
			if r.excluded(childPath) {
				r.logger.Debug("skipping excluded directory", "path", childPath)
				continue
			}
			stack = append(stack, childPath)
		}
	}

	return rootKey, rootEntry, errors.Join(errs...)
}

func (r *registry) register(dir, target string) (Key, error) {
	key, err := r.service.Register(dir)
	if err != nil {
		wrapped := domainerrors.Wrap(err, domainerrors.CodeInternal, "native watch registration failed")
		wrapped = domainerrors.AddContext(wrapped, domainerrors.CtxPath, target)
		if dir != target {
			wrapped = domainerrors.AddContext(wrapped, domainerrors.CtxUpstream, dir)
		}
		return nil, wrapped
	}
	return key, nil
}

func (r *registry) excluded(path string) bool {
	base := filepath.Base(path)
	for _, g := range r.excludes {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (r *registry) add(key Key, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries[key] {
		if existing == entry {
			return
		}
	}
	r.entries[key] = append(r.entries[key], entry)
}

func (r *registry) entriesFor(key Key) ([]Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), entries...), true
}

// removeEntry drops one entry from key, cancelling the key when nothing
// else is using it.
func (r *registry) removeEntry(key Key, entry Entry) {
	r.mu.Lock()
	entries, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	kept := entries[:0]
	for _, existing := range entries {
		if existing != entry {
			kept = append(kept, existing)
		}
	}
	if len(kept) > 0 {
		r.entries[key] = kept
		r.mu.Unlock()
		return
	}
	delete(r.entries, key)
	r.mu.Unlock()
	key.Cancel()
}

func (r *registry) removeKey(key Key) []Entry {
	r.mu.Lock()
	entries := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	key.Cancel()
	return entries
}

func (r *registry) clear() {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.entries = make(map[Key][]Entry)
	r.mu.Unlock()

	for _, key := range keys {
		key.Cancel()
	}
}

func (r *registry) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) == 0
}

func (r *registry) snapshot() []Entry {
	r.mu.Lock()
	all := make([]Entry, 0, len(r.entries))
	for _, entries := range r.entries {
		all = append(all, entries...)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Path != all[j].Path {
			return all[i].Path < all[j].Path
		}
		return all[i].Kind < all[j].Kind
	})
	return all
}

// resolveUpstream finds the nearest existing ancestor of path. An ancestor
// that exists but is not a directory cannot host a watch.
func resolveUpstream(path string) (string, error) {
	dir := filepath.Dir(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				e := domainerrors.New(domainerrors.CodeValidationError, "nearest existing ancestor is not a directory")
				e = domainerrors.AddContext(e, domainerrors.CtxPath, path)
				return "", domainerrors.AddContext(e, domainerrors.CtxUpstream, dir)
			}
			return dir, nil
		}
		if !isNotExist(err) {
			return "", domainerrors.AddContext(
				domainerrors.Wrap(err, domainerrors.CodeInternal, "cannot inspect ancestor"),
				domainerrors.CtxPath, dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", domainerrors.AddContext(
				domainerrors.New(domainerrors.CodeInternal, "no existing ancestor up to the filesystem root"),
				domainerrors.CtxPath, path)
		}
		dir = parent
	}
}

// isNotExist treats ENOTDIR like ENOENT: a path below a regular file is
// simply absent.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
