package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	domainerrors "devshell/internal/core/errors"
	"devshell/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type dispatcher struct {
	service  Service
	reg      *registry
	listener Listener
	logger   *slog.Logger
}

// run processes one ready key per iteration until ctx is cancelled, the
// service closes, or nothing is left to watch.
func (d *dispatcher) run(ctx context.Context) {
	for {
		key, err := d.service.Take(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrServiceClosed) {
				d.logger.Debug("watch loop interrupted")
				return
			}
			d.logger.Error("watch service failed", "error", err)
			return
		}

		d.cycle(ctx, key)

		if d.reg.empty() {
			d.logger.Info("nothing left to watch, stopping watch loop")
			return
		}
	}
}

func (d *dispatcher) cycle(ctx context.Context, key Key) {
	start := time.Now()
	_, span := observability.Tracer.Start(ctx, "watcher.dispatch",
		trace.WithAttributes(attribute.String("watcher.dir", key.Dir())))
	defer func() {
		span.End()
		observability.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	entries, ok := d.reg.entriesFor(key)
	if !ok {
		d.logger.Warn("events for unknown watch key", "dir", key.Dir())
		return
	}

	events := key.PollEvents()
	changed := d.process(key, entries, events)
	span.SetAttributes(
		attribute.Int("watcher.events", len(events)),
		attribute.Bool("watcher.changed", changed),
	)

	if changed {
		d.notify()
	}

	if !key.Reset() {
		d.dropKey(key)
	}
}

// process matches the batch against the key's entries and applies the
// transitions. It reports whether any source change was observed.
func (d *dispatcher) process(key Key, entries []Entry, events []RawEvent) bool {
	matched := make([][]RawEvent, len(entries))
	for _, ev := range events {
		observability.WatcherEventsTotal.WithLabelValues(ev.Kind.String()).Inc()
		if ev.Kind == EventOverflow {
			d.logger.Warn("watch events may have been lost", "dir", key.Dir())
			continue
		}
		for i, entry := range entries {
			if entry.Matches(ev) {
				matched[i] = append(matched[i], ev)
			}
		}
	}

	// A directory removed while watched directly can leave its own key
	// signalled with nothing to report.
	if len(events) == 0 {
		for i, entry := range entries {
			if entry.Kind == KindDirectory && !isDir(entry.Path) {
				d.logger.Debug("watched directory vanished", "path", entry.Path)
				matched[i] = []RawEvent{{Kind: EventDelete}}
			}
		}
	}
	// A directory deleted and recreated before the removal was seen is still
	// a change, and the new directory is watched again once the key is dropped.
	if key.Removed() {
		for i, entry := range entries {
			if entry.Kind == KindDirectory && entry.Path == key.Dir() && len(matched[i]) == 0 {
				d.logger.Debug("watched directory replaced", "path", entry.Path)
				matched[i] = []RawEvent{{Kind: EventDelete}}
			}
		}
	}

	changed := false
	for i, entry := range entries {
		if len(matched[i]) == 0 {
			continue
		}
		if d.apply(key, entry, matched[i]) {
			changed = true
		}
	}
	return changed
}

func (d *dispatcher) apply(key Key, entry Entry, events []RawEvent) bool {
	switch entry.Kind {
	case KindDirectory:
		if !isDir(entry.Path) {
			d.replace(key, entry, "demote")
			return true
		}
		for _, ev := range events {
			if ev.Kind != EventCreate || ev.Child == "" {
				continue
			}
			child := filepath.Join(entry.Path, ev.Child)
			if !isDir(child) || d.reg.excluded(child) {
				continue
			}
			if _, _, err := d.reg.registerTree(child); err != nil {
				d.registrationFailed(child, err)
			}
			observability.WatcherTransitionsTotal.WithLabelValues("recurse").Inc()
		}
		return true

	case KindSingleFile:
		if !isDir(filepath.Dir(entry.Path)) {
			d.replace(key, entry, "demote")
		}
		return true

	case KindAbsent:
		info, err := os.Lstat(entry.Path)
		if err == nil {
			if !info.Mode().IsRegular() && !info.IsDir() {
				d.logger.Warn("watched path appeared but is neither a file nor a directory",
					"path", entry.Path, "mode", info.Mode().Type().String())
				return false
			}
			return d.replace(key, entry, "promote")
		}
		for _, ev := range events {
			if ev.Kind != EventCreate {
				continue
			}
			child := filepath.Join(entry.Upstream, ev.Child)
			if isDir(child) && isStrictAncestor(child, entry.Path) {
				// The target may already exist by the time the deeper
				// upstream is registered; that counts as a promotion.
				return d.replace(key, entry, "retarget")
			}
		}
		return false
	}
	return false
}

// replace re-registers entry.Path for whatever is on disk now and drops the
// old entry once the new registration exists. It reports whether the path
// ended up tracked as present.
func (d *dispatcher) replace(key Key, old Entry, transition string) bool {
	newKey, entry, err := d.reg.classify(old.Path)
	if newKey == nil {
		if domainerrors.IsCode(err, domainerrors.CodeNotSupported) {
			d.logger.Warn("cannot track watched path", "path", old.Path, "error", err)
		} else {
			d.registrationFailed(old.Path, err)
		}
		return false
	}
	if err != nil {
		d.registrationFailed(old.Path, err)
	}

	if newKey != key || entry != old {
		d.reg.removeEntry(key, old)
	}
	if entry.Kind != KindAbsent && transition == "retarget" {
		transition = "promote"
	}
	observability.WatcherTransitionsTotal.WithLabelValues(transition).Inc()
	d.logger.Debug("watch entry replaced", "transition", transition, "from", old.String(), "to", entry.String())
	return entry.Kind != KindAbsent || transition == "demote"
}

// dropKey removes a key that can no longer deliver events. If its directory
// was removed, the entries it carried are classified again against what is on
// disk now, even when the path already exists again. A key cancelled under a
// live directory is just dropped.
func (d *dispatcher) dropKey(key Key) {
	orphans := d.reg.removeKey(key)
	if !key.Removed() && isDir(key.Dir()) {
		d.logger.Debug("watch key cancelled", "dir", key.Dir(), "entries", len(orphans))
		return
	}
	for _, entry := range orphans {
		if _, _, err := d.reg.classify(entry.Path); err != nil {
			d.registrationFailed(entry.Path, err)
			continue
		}
		observability.WatcherTransitionsTotal.WithLabelValues("rehome").Inc()
	}
}

func (d *dispatcher) notify() {
	observability.WatcherNotificationsTotal.Inc()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("change listener panicked", "panic", r)
		}
	}()
	d.listener.OnChange()
}

func (d *dispatcher) registrationFailed(path string, err error) {
	observability.WatcherRegistrationFailuresTotal.Inc()
	d.logger.Warn("failed to watch path, it will no longer be tracked", "path", path, "error", err)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
