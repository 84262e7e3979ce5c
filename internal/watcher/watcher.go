// Package watcher implements the File Watcher (spec §4.6): it samples
// file size and a prefix fingerprint at a fixed cadence and classifies
// observed changes as Unchanged, Append, or Truncate/Rotate. It is
// grounded on original_source/RustBackend's open_file.rs watcher thread
// (thread::sleep poll loop) and file_processor.rs's refresh_if_needed,
// with a fsnotify-driven fast path layered on top the way the corpus's
// tchow-twistedxcom-agent-deck internal/session/hook_watcher.go wires
// fsnotify, rate-limited via golang.org/x/time/rate so the fast path can
// never trigger checks faster than the configured debounce window.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/Marabii/fatfile/internal/logging"
)

// ChangeKind is the sum type described in spec §3's ChangeEvent entity.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Append
	Truncate
)

// Change carries the fields needed to update the Session and notify the
// client, covering every ChangeEvent variant in spec §3.
type Change struct {
	Kind         ChangeKind
	OldLength    int64
	NewLength    int64
	OldLineCount int64
	NewLineCount int64
}

// Prober is the minimal surface the watcher needs from a Session to
// decide what happened and to update it: current size/fingerprint
// compared against the last observation, and a way to apply the result.
type Prober interface {
	// Sample returns the current on-disk length and prefix fingerprint.
	Sample() (length int64, fingerprint string, err error)
	// LastObserved returns the length/fingerprint recorded at the last
	// successful tick (or at OpenFile for the first tick).
	LastObserved() (length int64, fingerprint string)
	// ApplyAppend extends the index incrementally and returns the new
	// line count.
	ApplyAppend(oldLength, newLength int64) (newLineCount int64, err error)
	// ApplyRebuild performs a full rebuild and returns the new line count.
	ApplyRebuild() (newLineCount int64, err error)
	// LineCount returns the current line count, used to report
	// old_line_count before an append/rebuild is applied.
	LineCount() int64
	// Path returns the file path being watched.
	Path() string
}

// Watcher polls a Prober at a fixed cadence and emits Change events on a
// channel drained by the dispatcher, per §5's "watcher thread posts
// ChangeEvents to a bounded queue" model.
type Watcher struct {
	prober   Prober
	interval time.Duration
	debounce time.Duration
	events   chan Change
	errs     chan error

	fsWatcher *fsnotify.Watcher
	limiter   *rate.Limiter

	log *slog.Logger
}

// New creates a watcher for prober, ticking every interval and
// debouncing fsnotify-triggered extra checks to at most one per
// debounce window, per SPEC_FULL.md §A.1/§B.
func New(prober Prober, interval, debounce time.Duration) *Watcher {
	w := &Watcher{
		prober:   prober,
		interval: interval,
		debounce: debounce,
		events:   make(chan Change, 16),
		errs:     make(chan error, 4),
		log:      logging.ForComponent(logging.CompWatcher),
	}

	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	w.limiter = rate.NewLimiter(rate.Every(debounce), 1)

	if fw, err := fsnotify.NewWatcher(); err == nil {
		if err := fw.Add(filepath.Dir(prober.Path())); err == nil {
			w.fsWatcher = fw
		} else {
			fw.Close()
		}
	}

	return w
}

// Events returns the channel the dispatcher drains ChangeEvents from.
func (w *Watcher) Events() <-chan Change { return w.events }

// Errors returns the channel the dispatcher drains watcher-side IoErrors
// from; per spec §7, IoError during watching is reported as Info and
// never terminates the session.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Run blocks, ticking at w.interval (and reacting to fsnotify events,
// rate-limited) until ctx is cancelled. Call it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	if w.fsWatcher != nil {
		defer w.fsWatcher.Close()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		case ev, ok := <-w.fsNotifyChan():
			if !ok {
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.prober.Path()) {
				continue
			}
			if !w.limiter.Allow() {
				continue
			}
			w.tick()
		}
	}
}

// fsNotifyChan returns the fsnotify event channel, or a nil channel
// (which blocks forever in a select) when fsnotify setup failed — the
// ticker remains the required, always-present path per spec §4.6.
func (w *Watcher) fsNotifyChan() <-chan fsnotify.Event {
	if w.fsWatcher == nil {
		return nil
	}
	return w.fsWatcher.Events
}

// tick implements the classification rule of spec §4.6.
func (w *Watcher) tick() {
	length, fingerprint, err := w.prober.Sample()
	if err != nil {
		w.log.Warn("sample_failed", slog.String("error", err.Error()))
		select {
		case w.errs <- err:
		default:
		}
		return
	}

	oldLength, oldFingerprint := w.prober.LastObserved()

	switch {
	case length == oldLength && fingerprint == oldFingerprint:
		return // Unchanged: emit nothing.

	case length > oldLength && fingerprint == oldFingerprint:
		oldLineCount := w.prober.LineCount()
		newLineCount, err := w.prober.ApplyAppend(oldLength, length)
		if err != nil {
			w.log.Warn("append_failed", slog.String("error", err.Error()))
			select {
			case w.errs <- err:
			default:
			}
			return
		}
		w.log.Info("appended",
			slog.String("grew_by", humanize.Bytes(uint64(length-oldLength))),
			slog.Int64("new_lines", newLineCount-oldLineCount))
		w.emit(Change{
			Kind:         Append,
			OldLength:    oldLength,
			NewLength:    length,
			OldLineCount: oldLineCount,
			NewLineCount: newLineCount,
		})

	default: // length decreased, or fingerprint changed: Truncate/Rotate.
		oldLineCount := w.prober.LineCount()
		newLineCount, err := w.prober.ApplyRebuild()
		if err != nil {
			w.log.Warn("rebuild_failed", slog.String("error", err.Error()))
			select {
			case w.errs <- err:
			default:
			}
			return
		}
		w.emit(Change{
			Kind:         Truncate,
			OldLength:    oldLength,
			NewLength:    length,
			OldLineCount: oldLineCount,
			NewLineCount: newLineCount,
		})
	}
}

func (w *Watcher) emit(c Change) {
	select {
	case w.events <- c:
	default:
		// Bounded queue full: drop rather than block the watcher tick,
		// the dispatcher will catch up to the file's true state on its
		// next GetChunk/Search anyway since the Session itself (not
		// just the event) already reflects the new index.
		w.log.Warn("event_queue_full")
	}
}
