// Package drift watches the deployed manifest file and reports when its
// record set no longer matches the canonical conn-tracer grant.
package drift

import (
	"context"
	"crypto/rand"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

// EventType classifies a drift observation.
type EventType string

const (
	// ManifestDrifted means the file parses but differs from the canonical grant.
	ManifestDrifted EventType = "manifest.drifted"
	// ManifestInvalid means the file no longer parses as the three records.
	ManifestInvalid EventType = "manifest.invalid"
	// ManifestRemoved means the file was deleted or renamed away.
	ManifestRemoved EventType = "manifest.removed"
	// ManifestRestored means the file matches the canonical grant again.
	ManifestRestored EventType = "manifest.restored"
)

// Event is a single drift observation.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Path      string    `json:"path"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(typ EventType, path, detail string) Event {
	now := time.Now().UTC()
	return Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:      typ,
		Path:      path,
		Detail:    detail,
		Timestamp: now,
	}
}

// Watcher monitors one manifest file.
type Watcher struct {
	path   string
	logger *slog.Logger

	// drifted tracks the last reported state so restorations are emitted
	// exactly once.
	drifted bool
}

// New creates a Watcher for the manifest at path.
func New(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger}
}

// Watch starts watching and returns a channel of events. The channel is
// closed when the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors and kubelet volume mounts replace files
	// rather than writing them in place.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan Event)

	go func() {
		defer close(out)
		defer fsw.Close()

		w.logger.Info("starting manifest drift watch", "path", w.path)

		// Report the starting state before any file events arrive.
		if ev, changed := w.check(); changed {
			w.emit(ctx, out, ev)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case fe, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(fe.Name) != filepath.Clean(w.path) {
					continue
				}
				if fe.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if !w.drifted {
						w.drifted = true
						w.emit(ctx, out, newEvent(ManifestRemoved, w.path, "manifest file removed"))
					}
					continue
				}
				if fe.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if ev, changed := w.check(); changed {
						w.emit(ctx, out, ev)
					}
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("drift watch error", "error", err)
			}
		}
	}()

	return out, nil
}

// check re-reads the manifest and compares it to the canonical grant,
// returning an event when the drift state changed since the last check.
func (w *Watcher) check() (Event, bool) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			if w.drifted {
				return Event{}, false
			}
			w.drifted = true
			return newEvent(ManifestRemoved, w.path, "manifest file missing"), true
		}
		w.logger.Error("read manifest", "path", w.path, "error", err)
		return Event{}, false
	}

	m, err := rbac.Parse(data)
	if err != nil {
		if w.drifted {
			return Event{}, false
		}
		w.drifted = true
		return newEvent(ManifestInvalid, w.path, err.Error()), true
	}

	if err := m.Validate(); err != nil {
		if w.drifted {
			return Event{}, false
		}
		w.drifted = true
		return newEvent(ManifestDrifted, w.path, err.Error()), true
	}

	if w.drifted {
		w.drifted = false
		return newEvent(ManifestRestored, w.path, ""), true
	}
	return Event{}, false
}

func (w *Watcher) emit(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case <-ctx.Done():
	case out <- ev:
	}
}
