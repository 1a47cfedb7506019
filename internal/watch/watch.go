// Package watch extracts embedded videos from photos as they land in a
// directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maauso/motionphoto/internal/motion"
)

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 1500 * time.Millisecond

// Engine is the part of *motion.Engine the watcher needs.
type Engine interface {
	Detect(path string) (bool, error)
	Extract(path string) (*motion.ExtractionResult, error)
}

// Event reports the outcome for one settled file. Result is nil when the
// photo has no embedded video.
type Event struct {
	Path   string
	Result *motion.ExtractionResult
	Err    error
}

// Watcher watches a single directory (not its subdirectories).
type Watcher struct {
	engine Engine
	settle time.Duration
	logger *slog.Logger
	notify func(Event)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period. Values below 1ms are ignored.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= time.Millisecond {
			w.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithNotify registers a callback invoked after every processed file.
func WithNotify(fn func(Event)) Option {
	return func(w *Watcher) {
		w.notify = fn
	}
}

// New creates a Watcher. The engine must read from the OS filesystem.
func New(engine Engine, opts ...Option) *Watcher {
	w := &Watcher{
		engine: engine,
		settle: DefaultSettle,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches dir until ctx is done. Create and write events are debounced
// per path; a file is processed once it has been quiet for the settle
// period. Files are processed one at a time.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.logger.Info("watching directory",
		slog.String("dir", dir),
		slog.Duration("settle", w.settle),
	)

	deb := newDebouncer(ctx, w.settle)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped", slog.String("dir", dir))
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if motion.IsOutputName(ev.Name) || !motion.IsSupported(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				deb.touch(ev.Name)
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				deb.forget(ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case f := <-deb.ready:
			if deb.settled(f) {
				w.process(f.name)
			}
		}
	}
}

func (w *Watcher) process(path string) {
	ev := Event{Path: path}
	defer func() {
		if w.notify != nil {
			w.notify(ev)
		}
	}()

	ok, err := w.engine.Detect(path)
	if err != nil {
		ev.Err = err
		w.logger.Warn("detect failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if !ok {
		w.logger.Debug("no embedded video", slog.String("path", path))
		return
	}

	res, err := w.engine.Extract(path)
	if err != nil {
		ev.Err = err
		w.logger.Warn("extraction failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	ev.Result = res
	if res != nil {
		w.logger.Info("video extracted",
			slog.String("path", path),
			slog.String("output", res.OutputPath),
			slog.Int64("bytes", res.BytesWritten),
		)
	}
}
