// Package watch loads workflow files into a viewer as they appear or change
// in a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/logging"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Defaults for New.
const (
	DefaultPattern  = "**/*.{png,json}"
	DefaultDebounce = 250 * time.Millisecond
)

// Loader is what the watcher feeds; *graphlens.Viewer satisfies it.
type Loader interface {
	Load(ctx context.Context, filename string, data []byte) (*graphlens.Snapshot, error)
}

// Watcher reloads matching files after a quiet period following their last
// write.
type Watcher struct {
	dir         string
	pattern     string
	debounce    time.Duration
	initialScan bool
	loader      Loader
	logger      *slog.Logger
}

type Option func(*Watcher)

// WithPattern sets the doublestar glob matched against slash-separated
// paths relative to the watched directory.
func WithPattern(pattern string) Option {
	return func(w *Watcher) {
		w.pattern = pattern
	}
}

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithInitialScan loads the files already present when Run starts, oldest
// first, so the most recently modified one ends up current.
func WithInitialScan(enabled bool) Option {
	return func(w *Watcher) {
		w.initialScan = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New validates the configuration without touching the filesystem.
func New(dir string, loader Loader, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		dir:      dir,
		pattern:  DefaultPattern,
		debounce: DefaultDebounce,
		loader:   loader,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	if !doublestar.ValidatePattern(w.pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", w.pattern)
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	return w, nil
}

// Run watches until ctx is done. Load failures are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.dir); err != nil {
		return err
	}
	if w.initialScan {
		w.scan(ctx)
	}
	w.logger.Info("Watching for workflows", "dir", w.dir, "pattern", w.pattern)

	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if _, ok := w.match(event.Name); !ok {
				continue
			}
			pending[event.Name] = struct{}{}
			debounce.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)

		case <-debounce.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = map[string]struct{}{}
			for _, p := range paths {
				w.load(ctx, p)
			}
		}
	}
}

// addTree adds dir and every subdirectory; fsnotify is not recursive.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) scan(ctx context.Context) {
	type found struct {
		path string
		mod  time.Time
	}
	var files []found
	_ = filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := w.match(path); !ok {
			return nil
		}
		if info, err := d.Info(); err == nil {
			files = append(files, found{path: path, mod: info.ModTime()})
		}
		return nil
	})
	sort.SliceStable(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	for _, f := range files {
		w.load(ctx, f.path)
	}
}

// match returns the slash-separated path relative to the watched directory
// and whether it matches the pattern.
func (w *Watcher) match(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	ok, err := doublestar.Match(w.pattern, rel)
	return rel, err == nil && ok
}

func (w *Watcher) load(ctx context.Context, path string) {
	rel, _ := w.match(path)
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("Failed to read workflow file", "file", rel, "error", err)
		return
	}
	if _, err := w.loader.Load(ctx, rel, data); err != nil {
		w.logger.Warn("Failed to load workflow file", "file", rel, "error", err)
		return
	}
	w.logger.Debug("Workflow reloaded", "file", rel)
}
