package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EntryKind says what a native watch registration is being used for.
type EntryKind int

const (
	// KindDirectory watches a directory for anything changing inside it.
	KindDirectory EntryKind = iota
	// KindSingleFile watches one file through its parent directory.
	KindSingleFile
	// KindAbsent watches the nearest existing ancestor of a missing path.
	KindAbsent
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindSingleFile:
		return "file"
	case KindAbsent:
		return "absent"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one watch target. Upstream is only set for KindAbsent and is the
// existing directory the native watch is placed on.
type Entry struct {
	Kind     EntryKind
	Path     string
	Upstream string
}

func directoryEntry(path string) Entry {
	return Entry{Kind: KindDirectory, Path: path}
}

func singleFileEntry(path string) Entry {
	return Entry{Kind: KindSingleFile, Path: path}
}

func absentEntry(path, upstream string) Entry {
	return Entry{Kind: KindAbsent, Path: path, Upstream: upstream}
}

func (e Entry) String() string {
	if e.Kind == KindAbsent {
		return fmt.Sprintf("%s %s (via %s)", e.Kind, e.Path, e.Upstream)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

// Matches reports whether ev, delivered on the key backing this entry, is
// about the entry. Overflow never matches.
func (e Entry) Matches(ev RawEvent) bool {
	if ev.Kind == EventOverflow {
		return false
	}
	switch e.Kind {
	case KindDirectory:
		return true
	case KindSingleFile:
		return ev.Child == filepath.Base(e.Path)
	case KindAbsent:
		if ev.Child == "" {
			return false
		}
		return isAncestorOrEqual(filepath.Join(e.Upstream, ev.Child), e.Path)
	default:
		return false
	}
}

// isAncestorOrEqual reports whether dir is path itself or one of its parents.
func isAncestorOrEqual(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// isStrictAncestor reports whether dir is a proper parent of path.
func isStrictAncestor(dir, path string) bool {
	return filepath.Clean(dir) != filepath.Clean(path) && isAncestorOrEqual(dir, path)
}
