// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds a project when its package descriptors change.
//
// A Watcher monitors the project tree for files matching descriptor patterns
// and calls a rebuild function once the tree has been quiet for the debounce
// period. Events inside the window are coalesced into a single rebuild.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by Run when the watcher has been started before.
var ErrAlreadyRunning = errors.New("watch: already running")

// alwaysIgnored lists noise that never triggers a rebuild.
var alwaysIgnored = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

type (
	// RebuildFunc is invoked with the changed paths, relative to the root and
	// slash separated, sorted.
	RebuildFunc func(ctx context.Context, changed []string) error

	// Options configures a Watcher.
	Options struct {
		// Root is the directory tree to watch.
		Root string
		// Patterns select the files that trigger a rebuild. Empty means all.
		Patterns []string
		// Ignore lists extra patterns excluded on top of the built-in ones.
		// Directories matching an ignore pattern are not descended into.
		Ignore []string
		Debounce time.Duration
		Logger   *log.Logger
		OnChange RebuildFunc
	}

	// Watcher monitors a project tree. Run may be called only once.
	Watcher struct {
		root     string
		patterns []string
		ignore   []string
		debounce time.Duration
		logger   *log.Logger
		onChange RebuildFunc
		fsw      *fsnotify.Watcher
		started  atomic.Bool
	}
)

// New validates the patterns and registers every non-ignored directory under
// opts.Root.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" {
		return nil, errors.New("watch: root directory is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	if err := validatePatterns(opts.Patterns); err != nil {
		return nil, err
	}
	if err := validatePatterns(opts.Ignore); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		patterns: opts.Patterns,
		ignore:   append(slices.Clone(alwaysIgnored), opts.Ignore...),
		debounce: debounce,
		logger:   logger.WithPrefix("watch"),
		onChange: opts.OnChange,
		fsw:      fsw,
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled and returns nil on cancellation.
// A rebuild that is still running when the next one is due is deferred by one
// debounce period instead of running concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	var (
		mu      sync.Mutex
		pending = map[string]struct{}{}
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.onChange == nil {
			return
		}

		w.logger.Debug("rebuilding", "changed", changed)
		if err := w.onChange(ctx, changed); err != nil {
			w.logger.Error("rebuild failed", "err", err)
		}
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			rel, ok := w.relevant(evt.Name)
			if !ok {
				continue
			}
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// relevant reports the root-relative path of name when it should trigger a
// rebuild.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if matchAny(w.ignore, rel) {
		return "", false
	}
	if len(w.patterns) > 0 && !matchAny(w.patterns, rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %q: %w", dir, err)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup, such as
// a freshly vendored package.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("watch new directory", "path", path, "err", err)
	}
}

func (w *Watcher) ignoredDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	return matchAny(w.ignore, rel) || matchAny(w.ignore, rel+"/")
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}
	return nil
}
