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
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/coderunner/engine/internal/index/embed"
	"github.com/coderunner/engine/internal/index/event"
	"github.com/coderunner/engine/internal/index/store"
	"github.com/coderunner/engine/internal/index/walk"
	"github.com/coderunner/engine/internal/index/watch"
	"github.com/coderunner/engine/internal/obslog"
	"github.com/coderunner/engine/internal/runtimeconfig"
)

// Open opens (or creates) the index database for workspace/branch per
// cfg, selecting an embedding provider by the presence of an OpenAI key
// (spec.md §6 "Embedding provider interface"; falls back to the
// deterministic test double so retrieval still works with no embedding
// credentials configured, matching offline/dev runs).
func Open(cfg runtimeconfig.RetrievalConfig, openAIKey, workspace, branch string) (*Index, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "coderunner-index.db"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	var provider embed.Provider
	if openAIKey != "" {
		provider = embed.NewOpenAIProvider("", openAIKey, cfg.EmbeddingModel)
	} else {
		provider = embed.NewDeterministicTestProvider(0)
	}
	pipeline := embed.New(st, provider)

	return New(workspace, branch, st, pipeline, cfg.MaxChunkTokens).WithWorkerCount(cfg.WorkerCount), nil
}

// Close releases the underlying store handle.
func (idx *Index) Close() error { return idx.Store.Close() }

// pathChange is the value type carried through the incremental event
// queue, keyed by workspace-relative path but carrying the absolute
// path fsnotify reported so the handler can still read the file.
type pathChange struct {
	AbsPath string
	Remove  bool
}

// Watch runs SessionStart's full scan, then switches to the incremental
// event pipeline for as long as ctx is live: a fsnotify-backed watcher
// feeds a deduplicating queue, drained by a WorkerPool of cfg.WorkerCount
// workers (default 4), each re-indexing one changed file under its own
// per-file lock (spec.md §4.4 "Incremental event pipeline"). Returns
// once the initial scan completes; the incremental pipeline keeps
// running in the background until ctx is cancelled.
func (idx *Index) Watch(ctx context.Context, root string, walkOpts walk.Options) error {
	if err := idx.Reindex(ctx, root, walkOpts); err != nil {
		return err
	}

	w, err := watch.New(root)
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}

	queue := event.NewQueue[pathChange]()
	handler := event.Handler[pathChange](func(ctx context.Context, relPath string, v pathChange) error {
		if v.Remove {
			return idx.Store.DeleteCatalogRow(ctx, idx.Workspace, idx.Branch, relPath)
		}
		data, err := os.ReadFile(v.AbsPath)
		if err != nil {
			obslog.Warn("incremental index read failed, dropping from catalog", zap.String("path", relPath), zap.Error(err))
			return idx.Store.DeleteCatalogRow(ctx, idx.Workspace, idx.Branch, relPath)
		}
		_, _, err = idx.indexFile(ctx, relPath, string(data))
		return err
	})
	pool := event.NewWorkerPool(cfgWorkerCount(idx), queue, handler)

	go pool.Run(ctx)
	go func() {
		for raw := range w.Run(ctx) {
			rel, err := filepath.Rel(root, raw.Path)
			if err != nil {
				rel = raw.Path
			}
			switch raw.Op {
			case watch.OpRemove, watch.OpRename:
				queue.Push(rel, pathChange{AbsPath: raw.Path, Remove: true}, "")
			default:
				queue.Push(rel, pathChange{AbsPath: raw.Path}, "")
			}
		}
		w.Close()
	}()
	return nil
}

func cfgWorkerCount(idx *Index) int {
	if idx.workerCount > 0 {
		return idx.workerCount
	}
	return 4
}
