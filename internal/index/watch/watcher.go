// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package watch wraps fsnotify as C4's raw filesystem event source
// (spec.md §4.4 "A file watcher produces raw events"; SPEC_FULL.md §6
// "the file watcher interface is implemented by
// github.com/fsnotify/fsnotify").
package watch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/coderunner/engine/internal/obslog"
)

// RawEvent is a single filesystem change notification, normalized away
// from fsnotify's own event-type bitmask.
type RawEvent struct {
	Path string
	Op   Op
}

// Op classifies what happened to Path.
type Op int

const (
	OpWrite Op = iota
	OpCreate
	OpRemove
	OpRename
)

// Watcher recursively watches a root directory and emits RawEvents.
type Watcher struct {
	fsw  *fsnotify.Watcher
	root string
}

// New starts watching root (and every subdirectory present at startup;
// directories created later are added as their parent's Create event
// arrives).
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, root: root}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if adderr := w.fsw.Add(path); adderr != nil {
				obslog.Warn("watcher add failed", zap.String("path", path), zap.Error(adderr))
			}
		}
		return nil
	})
}

// Run starts forwarding normalized events and returns their channel,
// which is closed when ctx is cancelled or the fsnotify watcher closes.
func (w *Watcher) Run(ctx context.Context) <-chan RawEvent {
	out := make(chan RawEvent, 256)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				normalized, ok := normalize(ev)
				if !ok {
					continue
				}
				if normalized.Op == OpCreate {
					_ = w.fsw.Add(ev.Name) // best-effort: watch newly created subdirectories too
				}
				select {
				case out <- normalized:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				obslog.Warn("filesystem watcher error", zap.Error(err))
			}
		}
	}()
	return out
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

func normalize(ev fsnotify.Event) (RawEvent, bool) {
	switch {
	case ev.Has(fsnotify.Write):
		return RawEvent{Path: ev.Name, Op: OpWrite}, true
	case ev.Has(fsnotify.Create):
		return RawEvent{Path: ev.Name, Op: OpCreate}, true
	case ev.Has(fsnotify.Remove):
		return RawEvent{Path: ev.Name, Op: OpRemove}, true
	case ev.Has(fsnotify.Rename):
		return RawEvent{Path: ev.Name, Op: OpRename}, true
	default:
		return RawEvent{}, false
	}
}
