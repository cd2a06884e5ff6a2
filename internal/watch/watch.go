// Package watch implements continuous build triggering: it watches project
// directories and reports debounced batches of changed files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/buildgrid/internal/ctxlog"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 300 * time.Millisecond

// DefaultIgnore lists directory names that never trigger a rebuild.
var DefaultIgnore = []string{"build", ".git", ".idea", "node_modules"}

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively.
	Dirs     []string
	Debounce time.Duration
	// Ignore holds directory base names excluded from watching. Nil means
	// DefaultIgnore.
	Ignore []string
}

// ChangeFunc receives the sorted, de-duplicated paths changed since the last
// call.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher batches filesystem events from a set of directory trees.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	ignore   map[string]bool
}

// New creates a watcher over every directory in opts.Dirs and their
// subdirectories.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, debounce: opts.Debounce, ignore: make(map[string]bool)}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	for _, name := range ignore {
		w.ignore[name] = true
	}

	for _, dir := range opts.Dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving %s: %w", dir, err)
		}
		w.roots = append(w.roots, abs)
		if err := w.addTree(abs); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	sort.Strings(list)
	return list
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A project directory may not exist yet.
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// ignored reports whether any path element below a watched root is an
// ignored name.
func (w *Watcher) ignored(path string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if w.ignore[part] {
				return true
			}
		}
	}
	return false
}

// Run delivers change batches to onChange until ctx is cancelled, then closes
// the watcher. onChange runs on the Run goroutine, so events arriving during a
// build are batched for the next call.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	logger := ctxlog.FromContext(ctx)
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("File watcher stopped.")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || w.ignored(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("Could not watch new directory.", "path", event.Name, "error", err)
					}
				}
			}
			logger.Debug("File change detected.", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(ctx, changed)
		}
	}
}
