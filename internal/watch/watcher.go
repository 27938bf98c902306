// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watch emits debounced change notifications for suite files so
// the run command can re-evaluate on edit.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses editor save bursts into one notification.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors suite files and reports changes on a channel.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger
	debounce  time.Duration

	// watched holds the absolute paths of the suite files.
	watched map[string]bool

	// changes carries one pending notification; further changes collapse
	// into it until the consumer drains.
	changes chan string

	mu       sync.Mutex
	pending  *time.Timer
	lastPath string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config configures the suite watcher.
type Config struct {
	// Paths are the suite files to watch. Required.
	Paths []string

	// Debounce is the settle delay after the last change. Defaults to
	// DefaultDebounce.
	Debounce time.Duration

	// Logger receives watch events. Defaults to slog.Default().
	Logger *slog.Logger
}

// New creates a watcher for the given suite files.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher: fsWatcher,
		logger:    logger,
		debounce:  debounce,
		watched:   make(map[string]bool),
		changes:   make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	// Editors commonly replace a file instead of writing it in place,
	// which drops a watch on the file itself. Watching the parent
	// directory and filtering by name survives the rename.
	dirs := make(map[string]bool)
	for _, path := range cfg.Paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			fsWatcher.Close()
			cancel()
			return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
		}
		w.watched[absPath] = true
		dirs[filepath.Dir(absPath)] = true
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			fsWatcher.Close()
			cancel()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Debug("watching directory for suite changes", "dir", dir)
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Changes returns the notification channel. Each receive means at least
// one watched suite changed since the last receive.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// processEvents filters filesystem events down to watched suites.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil || !w.watched[absPath] {
				continue
			}
			w.scheduleNotify(absPath)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

// scheduleNotify (re)arms the debounce timer for a changed suite.
func (w *Watcher) scheduleNotify(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastPath = path
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.notify)
}

// notify delivers the pending change without blocking; an undrained
// notification already tells the consumer to re-run.
func (w *Watcher) notify() {
	w.mu.Lock()
	path := w.lastPath
	w.pending = nil
	w.mu.Unlock()

	w.logger.Info("suite changed", "path", path)

	select {
	case w.changes <- path:
	default:
	}
}

// Close shuts down the watcher and its event loop.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}
