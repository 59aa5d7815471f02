// Package watch keeps a worktree pulled: pointer files that appear or
// change are replaced with their real content shortly after.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lfspull/internal/pull"
)

// defaultDebounce delays the pull until writes to a file have settled.
const defaultDebounce = 500 * time.Millisecond

type Watcher struct {
	root       string
	puller     *pull.Puller
	token      string
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool

	mu     sync.Mutex
	timers map[string]*time.Timer
	due    chan string

	logger *zap.Logger
}

// NewWatcher prepares a watcher over the tree rooted at root. A
// non-positive debounce picks the default.
func NewWatcher(root string, puller *pull.Puller, token string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		root:     root,
		puller:   puller,
		token:    token,
		debounce: debounce,
		watcher:  fsWatcher,
		ignoreDirs: map[string]bool{
			".git":         true,
			"node_modules": true,
			"vendor":       true,
		},
		timers: make(map[string]*time.Timer),
		due:    make(chan string, 64),
		logger: logger,
	}, nil
}

// Watch registers the tree and blocks processing events until ctx is
// cancelled. Failed pulls are logged and watching continues.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addTree(); err != nil {
		return err
	}
	w.logger.Info("watching worktree", zap.String("root", w.root))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.watchLoop(ctx) })
	group.Go(func() error { return w.pullLoop(ctx) })
	return group.Wait()
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// addTree registers every directory under the root, skipping ignored
// ones.
func (w *Watcher) addTree() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule arms the per-file debounce timer, pushing the deadline on
// every further event for the same file.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.due <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) pullLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-w.due:
			w.pullOne(ctx, path)
		}
	}
}

// pullOne pulls a settled file. Pulling fires one more event for the
// same path, which then settles as already-present.
func (w *Watcher) pullOne(ctx context.Context, path string) {
	mode, err := w.puller.PullOne(ctx, path, w.token)
	if err != nil {
		w.logger.Error("pull failed",
			zap.String("file", path),
			zap.Error(err))
		return
	}
	if mode == pull.WasAlreadyPresent {
		return
	}
	w.logger.Info("pulled file",
		zap.String("file", path),
		zap.String("mode", mode.String()))
}

func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignoreDirs[part] || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
