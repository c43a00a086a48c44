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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/coderunner/engine/internal/index/chunk"
	"github.com/coderunner/engine/internal/index/embed"
	"github.com/coderunner/engine/internal/index/graph"
	"github.com/coderunner/engine/internal/index/model"
	"github.com/coderunner/engine/internal/index/query"
	"github.com/coderunner/engine/internal/index/store"
	"github.com/coderunner/engine/internal/index/tag"
	"github.com/coderunner/engine/internal/index/walk"
	"github.com/coderunner/engine/internal/obslog"
	"github.com/coderunner/engine/internal/tools"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultResultCap and floor implement spec.md §4.4's result-fusion
// bound: "cap at a default of 20 results; floor of 1".
const defaultResultCap = 20

// tokensPerChunkEstimate is the divisor used against the reserved
// context budget to decide how many results fit.
const tokensPerChunkEstimate = 150

// lockTTL / lockRefresh are spec.md §4.4's stated defaults (30s hold,
// 15s refresh).
const lockTTL = 30 * time.Second
const lockRefreshInterval = 15 * time.Second

// Index is C4's composition root: it owns the store, chunker, tagger,
// embedding pipeline, and dependency graph, and answers hybrid queries.
// It implements tools.RetrievalBackend directly so C3's retrieval tools
// can dispatch into it without an adapter shim.
type Index struct {
	Workspace string
	Branch    string
	Store     *store.Store
	Embedder  *embed.Pipeline
	MaxChunkTokens int

	g         *graph.Graph
	chatFiles map[string]bool
	holder    string // advisory-lock identity for this process's Index instance
	workerCount int
}

// New constructs an Index bound to a workspace's store and embedding
// pipeline.
func New(workspace, branch string, st *store.Store, embedder *embed.Pipeline, maxChunkTokens int) *Index {
	if maxChunkTokens <= 0 {
		maxChunkTokens = chunk.DefaultMaxChunkTokens
	}
	return &Index{
		Workspace: workspace, Branch: branch, Store: st, Embedder: embedder,
		MaxChunkTokens: maxChunkTokens, g: graph.New(), chatFiles: make(map[string]bool),
		holder: uuid.NewString(),
	}
}

// WithWorkerCount overrides the incremental pipeline's worker count
// (spec.md §5 "retrieval workers: configurable, default 4").
func (idx *Index) WithWorkerCount(n int) *Index {
	idx.workerCount = n
	return idx
}

// MarkChatFile records filepath as part of the current conversation
// context, biasing PageRank's personalization vector toward it (spec.md
// §4.4 "chat-files boost ... applied at the edge level").
func (idx *Index) MarkChatFile(filepath string) { idx.chatFiles[filepath] = true }

// Reindex walks the workspace, diffs against the catalog, and
// (re)indexes every added/modified file; deleted files are purged.
// Unreadable files are logged and removed from the catalog rather than
// aborting the scan (spec.md §4.4 "Failure semantics"). The scan runs
// under the workspace's advisory lock so two processes never race a
// rescan of the same workspace concurrently.
func (idx *Index) Reindex(ctx context.Context, root string, walkOpts walk.Options) error {
	acquired, err := idx.Store.AcquireLock(ctx, idx.Workspace, idx.holder, lockTTL)
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("workspace %s is being indexed by another holder", idx.Workspace)
	}
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	go idx.refreshLockPeriodically(refreshCtx)
	defer func() {
		if err := idx.Store.ReleaseLock(context.Background(), idx.Workspace, idx.holder); err != nil {
			obslog.Warn("release index lock failed", zap.Error(err))
		}
	}()

	return idx.reindexLocked(ctx, root, walkOpts)
}

func (idx *Index) refreshLockPeriodically(ctx context.Context) {
	ticker := time.NewTicker(lockRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := idx.Store.RefreshLock(ctx, idx.Workspace, idx.holder, lockTTL); err != nil {
				obslog.Warn("refresh index lock failed", zap.Error(err))
			}
		}
	}
}

func (idx *Index) reindexLocked(ctx context.Context, root string, walkOpts walk.Options) error {
	candidates, err := walk.Walk(root, walkOpts)
	if err != nil {
		return fmt.Errorf("walk workspace: %w", err)
	}

	walked := make(map[string]string, len(candidates))
	content := make(map[string]string, len(candidates))
	for _, c := range candidates {
		data, err := os.ReadFile(c.AbsPath)
		if err != nil {
			obslog.Warn("unreadable file during scan", zap.String("path", c.RelPath), zap.Error(err))
			continue
		}
		text := string(data)
		walked[c.RelPath] = fileHash(text)
		content[c.RelPath] = text
	}

	changes, err := idx.Store.Diff(ctx, idx.Workspace, idx.Branch, walked)
	if err != nil {
		return fmt.Errorf("diff catalog: %w", err)
	}

	var defs []graph.Definition
	var refs []graph.Reference

	for _, ch := range changes {
		switch ch.Kind {
		case model.ChangeDeleted:
			if err := idx.Store.DeleteCatalogRow(ctx, idx.Workspace, idx.Branch, ch.Filepath); err != nil {
				obslog.Error("delete catalog row", zap.String("path", ch.Filepath), zap.Error(err))
			}
		case model.ChangeAdded, model.ChangeModified:
			text, ok := content[ch.Filepath]
			if !ok {
				continue
			}
			fDefs, fRefs, err := idx.indexFile(ctx, ch.Filepath, text)
			if err != nil {
				obslog.Error("index file failed", zap.String("path", ch.Filepath), zap.Error(err))
				continue
			}
			defs = append(defs, fDefs...)
			refs = append(refs, fRefs...)
		}
	}

	idx.g = graph.BuildEdges(defs, refs, idx.chatFiles, graph.DefaultWeights())
	return nil
}

func fileHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// indexFile chunks, tags, and embeds one file, writing chunks into the
// FTS tables and the catalog, and returns the symbol definitions/
// references it contributed to the dependency graph.
func (idx *Index) indexFile(ctx context.Context, relPath, content string) ([]graph.Definition, []graph.Reference, error) {
	if err := idx.Store.DeleteChunksForFile(ctx, relPath); err != nil {
		return nil, nil, err
	}

	chunks := chunk.ChunkFile(relPath, content, idx.MaxChunkTokens)
	codeChunks := make([]model.CodeChunk, len(chunks))
	for i, c := range chunks {
		codeChunks[i] = model.CodeChunk{
			ID: fmt.Sprintf("%s:%s:%d", idx.Workspace, relPath, i),
			Workspace: idx.Workspace, Filepath: relPath, Language: c.Language,
			Content: c.Content, StartLine: c.StartLine, EndLine: c.EndLine,
			IndexedAt: time.Now(), IsOverview: c.IsOverview,
			Tags: tag.Extract(c.Language, c.Content, c.StartLine),
		}
	}

	var failed int
	embedded := codeChunks
	var embedErr error
	if idx.Embedder != nil {
		embedded, embedErr = idx.Embedder.Run(ctx, idx.Workspace, codeChunks)
		if embedErr != nil {
			obslog.Warn("embedding batch failed, chunks indexed without vectors", zap.String("path", relPath), zap.Error(embedErr))
			embedded = codeChunks
		}
		for _, c := range embedded {
			if len(c.Embedding) == 0 {
				failed++
			}
		}
	}

	var defs []graph.Definition
	var refs []graph.Reference
	for _, c := range embedded {
		if err := idx.Store.IndexChunk(ctx, c); err != nil {
			return nil, nil, err
		}
		for _, t := range c.Tags {
			if err := idx.Store.IndexSymbol(ctx, c.ID, relPath, t); err != nil {
				return nil, nil, err
			}
			if t.IsDef {
				defs = append(defs, graph.Definition{Symbol: t.Name, File: relPath})
			} else {
				refs = append(refs, graph.Reference{Symbol: t.Name, File: relPath, ExactMention: true})
			}
		}
	}

	row := model.CatalogRow{
		Workspace: idx.Workspace, Branch: idx.Branch, Filepath: relPath,
		ContentHash: fileHash(content), MTime: time.Now(),
		ChunksCount: len(embedded), ChunksFailed: failed, IndexedAt: time.Now(),
	}
	if err := idx.Store.UpsertCatalogRow(ctx, row); err != nil {
		return nil, nil, err
	}
	return defs, refs, nil
}

// Search implements tools.RetrievalBackend: it runs the BM25 leg over
// chunk text and the file-level PageRank leg and fuses them with
// reciprocal rank fusion, bounded by contextLengthHint. No vector-cosine
// leg is run: stored chunk embeddings are not consulted at query time.
func (idx *Index) Search(ctx context.Context, q string, contextLengthHint int) ([]tools.SearchHit, error) {
	return idx.hybridSearch(ctx, q, contextLengthHint, false)
}

// SymbolSearch is the same fusion with the BM25 leg run over the symbol
// FTS table (name, signature, docs) instead of chunk text. Callers choose
// between Search and SymbolSearch; the detected query kind does not.
func (idx *Index) SymbolSearch(ctx context.Context, q string, contextLengthHint int) ([]tools.SearchHit, error) {
	return idx.hybridSearch(ctx, q, contextLengthHint, true)
}

func (idx *Index) hybridSearch(ctx context.Context, q string, contextLengthHint int, symbolsOnly bool) ([]tools.SearchHit, error) {
	pre := query.Preprocess(q)
	cap := resultCap(contextLengthHint)

	ftsQuery := ftsMatchExpr(pre)
	var bm25Hits []store.BM25Hit
	var err error
	if symbolsOnly {
		bm25Hits, err = idx.Store.SearchSymbolsBM25(ctx, ftsQuery, cap*4)
	} else {
		bm25Hits, err = idx.Store.SearchChunksBM25(ctx, idx.Workspace, ftsQuery, cap*4)
	}
	if err != nil {
		obslog.Warn("bm25 search failed", zap.Error(err))
	}

	ranks := idx.g.PageRank(0.85, 30, idx.chatFiles)

	fused := fuseReciprocalRank(bm25Hits, ranks)
	if len(fused) > cap {
		fused = fused[:cap]
	}

	out := make([]tools.SearchHit, len(fused))
	for i, h := range fused {
		out[i] = tools.SearchHit{FilePath: h.Filepath, StartLine: h.StartLine, EndLine: h.EndLine, Snippet: h.Content, Score: h.Score}
	}
	return out, nil
}

// resultCap applies spec.md §4.4's context-length-hint bound: reserve
// 50% of the context window, divide remaining by a tokens-per-chunk
// estimate, cap at 20, floor of 1. Zero or negative hints use the
// default cap (spec.md §8 boundary behaviors).
func resultCap(contextLengthHint int) int {
	if contextLengthHint <= 0 {
		return defaultResultCap
	}
	reserved := contextLengthHint / 2
	n := reserved / tokensPerChunkEstimate
	if n > defaultResultCap {
		n = defaultResultCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

func ftsMatchExpr(pre query.Preprocessed) string {
	terms := pre.Tokens
	if len(terms) == 0 {
		terms = pre.Trigrams
	}
	if len(terms) == 0 {
		return `""`
	}
	expr := ""
	for i, t := range terms {
		if i > 0 {
			expr += " OR "
		}
		expr += fmt.Sprintf("%q", t)
	}
	return expr
}

type fusedHit struct {
	Filepath  string
	StartLine int
	EndLine   int
	Content   string
	Score     float64
}

// fuseReciprocalRank combines the BM25 leg and the file-level PageRank
// leg with reciprocal rank fusion (1/(k+rank)), per spec.md §4.4
// "Result fusion applies reciprocal rank fusion across legs".
func fuseReciprocalRank(bm25 []store.BM25Hit, pageRank map[string]float64) []fusedHit {
	const k = 60.0
	scores := make(map[string]float64)
	info := make(map[string]fusedHit)

	for i, h := range bm25 {
		key := h.ChunkID
		scores[key] += 1.0 / (k + float64(i+1))
		info[key] = fusedHit{Filepath: h.Filepath, StartLine: h.StartLine, EndLine: h.EndLine, Content: h.Content}
	}

	fileRankOrder := rankedFiles(pageRank)
	for i, f := range fileRankOrder {
		for key, fh := range info {
			if fh.Filepath == f {
				scores[key] += 1.0 / (k + float64(i+1))
			}
		}
	}

	out := make([]fusedHit, 0, len(info))
	for key, fh := range info {
		fh.Score = scores[key]
		out = append(out, fh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func rankedFiles(pageRank map[string]float64) []string {
	files := make([]string, 0, len(pageRank))
	for f := range pageRank {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return pageRank[files[i]] > pageRank[files[j]] })
	return files
}
