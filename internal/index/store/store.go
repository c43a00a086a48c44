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

// Package store implements the catalog, embedding cache, FTS5 symbol
// index, and advisory locks backing C4 on a single SQLite database
// (spec.md §4.4, §6 "Storage").
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "github.com/coderunner/engine/internal/sqlitedriver"
	"github.com/coderunner/engine/internal/index/model"
)

// Store wraps a SQLite handle with the schema C4 needs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the index database at path, running schema
// migrations idempotently.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: single-writer, avoids "database is locked"
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog (
			workspace TEXT NOT NULL,
			branch TEXT NOT NULL DEFAULT '',
			filepath TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			mtime INTEGER NOT NULL,
			chunks_count INTEGER NOT NULL DEFAULT 0,
			chunks_failed INTEGER NOT NULL DEFAULT 0,
			indexed_at INTEGER NOT NULL,
			PRIMARY KEY (workspace, branch, filepath)
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			filepath TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (filepath, content_hash, artifact_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_cache_filepath ON embedding_cache(filepath)`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_cache_artifact ON embedding_cache(artifact_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
			chunk_id UNINDEXED, workspace UNINDEXED, filepath UNINDEXED,
			start_line UNINDEXED, end_line UNINDEXED, content
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS symbol_fts USING fts5(
			chunk_id UNINDEXED, filepath UNINDEXED, name, kind UNINDEXED,
			start_line UNINDEXED, end_line UNINDEXED, signature, docs
		)`,
		`CREATE TABLE IF NOT EXISTS advisory_locks (
			workspace TEXT PRIMARY KEY,
			holder TEXT NOT NULL,
			acquired_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate index schema: %w", err)
		}
	}
	return nil
}

// --- Catalog ---

// CatalogRows returns every catalog row for (workspace, branch).
func (s *Store) CatalogRows(ctx context.Context, workspace, branch string) (map[string]model.CatalogRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filepath, content_hash, mtime, chunks_count, chunks_failed, indexed_at
		FROM catalog WHERE workspace = ? AND branch = ?`, workspace, branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]model.CatalogRow)
	for rows.Next() {
		var r model.CatalogRow
		var mtime, indexedAt int64
		if err := rows.Scan(&r.Filepath, &r.ContentHash, &mtime, &r.ChunksCount, &r.ChunksFailed, &indexedAt); err != nil {
			return nil, err
		}
		r.Workspace, r.Branch = workspace, branch
		r.MTime = time.Unix(mtime, 0)
		r.IndexedAt = time.Unix(indexedAt, 0)
		out[r.Filepath] = r
	}
	return out, rows.Err()
}

// UpsertCatalogRow writes or replaces one catalog row.
func (s *Store) UpsertCatalogRow(ctx context.Context, r model.CatalogRow) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO catalog
		(workspace, branch, filepath, content_hash, mtime, chunks_count, chunks_failed, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace, branch, filepath) DO UPDATE SET
			content_hash=excluded.content_hash, mtime=excluded.mtime,
			chunks_count=excluded.chunks_count, chunks_failed=excluded.chunks_failed,
			indexed_at=excluded.indexed_at`,
		r.Workspace, r.Branch, r.Filepath, r.ContentHash, r.MTime.Unix(), r.ChunksCount, r.ChunksFailed, r.IndexedAt.Unix())
	return err
}

// DeleteCatalogRow removes one file from the catalog, and every chunk_fts
// / symbol_fts / embedding_cache row for it — deleting a filepath deletes
// every embedding row for that filepath regardless of content_hash
// (spec.md §3 EmbeddingCache invariant).
func (s *Store) DeleteCatalogRow(ctx context.Context, workspace, branch, filepath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog WHERE workspace=? AND branch=? AND filepath=?`, workspace, branch, filepath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM embedding_cache WHERE filepath=?`, filepath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_fts WHERE filepath=?`, filepath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_fts WHERE filepath=?`, filepath); err != nil {
		return err
	}
	return tx.Commit()
}

// Diff compares a fresh walk's (filepath -> content_hash) map
// against the catalog, yielding Added/Modified/Deleted changes.
func (s *Store) Diff(ctx context.Context, workspace, branch string, walked map[string]string) ([]model.Change, error) {
	existing, err := s.CatalogRows(ctx, workspace, branch)
	if err != nil {
		return nil, err
	}
	var changes []model.Change
	for fp, hash := range walked {
		row, ok := existing[fp]
		switch {
		case !ok:
			changes = append(changes, model.Change{Filepath: fp, Kind: model.ChangeAdded})
		case row.ContentHash != hash:
			changes = append(changes, model.Change{Filepath: fp, Kind: model.ChangeModified})
		}
	}
	for fp := range existing {
		if _, ok := walked[fp]; !ok {
			changes = append(changes, model.Change{Filepath: fp, Kind: model.ChangeDeleted})
		}
	}
	return changes, nil
}

// --- Embedding cache ---

// BulkGetEmbeddings looks up every (filepath, content_hash, artifact_id)
// key in one query, returning found rows keyed by "filepath\x00hash" and
// the subset of keys that missed (spec.md §4.4 "Bulk lookup must be a
// single store query").
func (s *Store) BulkGetEmbeddings(ctx context.Context, artifactID string, keys []struct{ Filepath, ContentHash string }) (hits map[string]model.EmbeddingCacheRow, misses []struct{ Filepath, ContentHash string }, err error) {
	hits = make(map[string]model.EmbeddingCacheRow)
	if len(keys) == 0 {
		return hits, nil, nil
	}
	placeholders := ""
	args := make([]any, 0, len(keys)*2+1)
	args = append(args, artifactID)
	for i, k := range keys {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "(?,?)"
		args = append(args, k.Filepath, k.ContentHash)
	}
	query := fmt.Sprintf(`SELECT filepath, content_hash, embedding, created_at FROM embedding_cache
		WHERE artifact_id = ? AND (filepath, content_hash) IN (VALUES %s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var fp, hash string
		var blob []byte
		var createdAt int64
		if err := rows.Scan(&fp, &hash, &blob, &createdAt); err != nil {
			return nil, nil, err
		}
		row := model.EmbeddingCacheRow{Filepath: fp, ContentHash: hash, ArtifactID: artifactID, Embedding: decodeEmbedding(blob), CreatedAt: time.Unix(createdAt, 0)}
		hits[fp+"\x00"+hash] = row
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	for _, k := range keys {
		if _, ok := hits[k.Filepath+"\x00"+k.ContentHash]; !ok {
			misses = append(misses, k)
		}
	}
	return hits, misses, nil
}

// PutEmbeddings bulk-inserts freshly computed embeddings in one
// transaction.
func (s *Store) PutEmbeddings(ctx context.Context, rows []model.EmbeddingCacheRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO embedding_cache
		(filepath, content_hash, artifact_id, embedding, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Filepath, r.ContentHash, r.ArtifactID, encodeEmbedding(r.Embedding), r.CreatedAt.Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PruneStaleEmbeddings removes cache rows whose artifact_id is not
// currentArtifactID (spec.md §4.4 "Stale cache rows ... pruned on
// demand").
func (s *Store) PruneStaleEmbeddings(ctx context.Context, currentArtifactID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE artifact_id != ?`, currentArtifactID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// --- FTS (chunk text + symbol docs) ---

// IndexChunk upserts a chunk's text into the BM25 FTS table.
func (s *Store) IndexChunk(ctx context.Context, c model.CodeChunk) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunk_fts WHERE chunk_id = ?`, c.ID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO chunk_fts (chunk_id, workspace, filepath, start_line, end_line, content)
		VALUES (?, ?, ?, ?, ?, ?)`, c.ID, c.Workspace, c.Filepath, c.StartLine, c.EndLine, c.Content)
	return err
}

// IndexSymbol upserts one extracted tag into the symbol FTS table.
func (s *Store) IndexSymbol(ctx context.Context, chunkID, filepath string, t model.CodeTag) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO symbol_fts (chunk_id, filepath, name, kind, start_line, end_line, signature, docs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, chunkID, filepath, t.Name, string(t.Kind), t.StartLine, t.EndLine, t.Signature, t.Docs)
	return err
}

// DeleteChunksForFile removes every chunk_fts/symbol_fts row for filepath,
// used ahead of re-indexing a modified file.
func (s *Store) DeleteChunksForFile(ctx context.Context, filepath string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunk_fts WHERE filepath = ?`, filepath); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM symbol_fts WHERE filepath = ?`, filepath)
	return err
}

// BM25Hit is one ranked row from a BM25 full-text query.
type BM25Hit struct {
	ChunkID   string
	Filepath  string
	StartLine int
	EndLine   int
	Content   string
	Score     float64 // higher is better (negated FTS5 bm25(), which is ascending-better)
}

// SearchChunksBM25 runs an FTS5 MATCH query over chunk content, ranked by
// bm25().
func (s *Store) SearchChunksBM25(ctx context.Context, workspace, query string, limit int) ([]BM25Hit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, filepath, start_line, end_line, content, bm25(chunk_fts)
		FROM chunk_fts WHERE chunk_fts MATCH ? AND workspace = ? ORDER BY bm25(chunk_fts) LIMIT ?`, query, workspace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []BM25Hit
	for rows.Next() {
		var h BM25Hit
		var rawScore float64
		if err := rows.Scan(&h.ChunkID, &h.Filepath, &h.StartLine, &h.EndLine, &h.Content, &rawScore); err != nil {
			return nil, err
		}
		h.Score = -rawScore
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchSymbolsBM25 runs an FTS5 MATCH query over symbol name/signature/
// docs.
func (s *Store) SearchSymbolsBM25(ctx context.Context, query string, limit int) ([]BM25Hit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, filepath, start_line, end_line, name, bm25(symbol_fts)
		FROM symbol_fts WHERE symbol_fts MATCH ? ORDER BY bm25(symbol_fts) LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []BM25Hit
	for rows.Next() {
		var h BM25Hit
		var rawScore float64
		if err := rows.Scan(&h.ChunkID, &h.Filepath, &h.StartLine, &h.EndLine, &h.Content, &rawScore); err != nil {
			return nil, err
		}
		h.Score = -rawScore
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// --- Advisory locks ---

// AcquireLock tries to take the workspace's indexer lock for holder,
// bounded by ttl (default 30s per spec.md §4.4). Returns false if another
// holder's lock has not yet expired.
func (s *Store) AcquireLock(ctx context.Context, workspace, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existingHolder string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT holder, expires_at FROM advisory_locks WHERE workspace = ?`, workspace).Scan(&existingHolder, &expiresAt)
	if err == nil && existingHolder != holder && time.Unix(expiresAt, 0).After(now) {
		return false, tx.Commit()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO advisory_locks (workspace, holder, acquired_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(workspace) DO UPDATE SET holder=excluded.holder, acquired_at=excluded.acquired_at, expires_at=excluded.expires_at`,
		workspace, holder, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// RefreshLock extends an already-held lock's expiry (spec.md §4.4
// "refreshes periodically").
func (s *Store) RefreshLock(ctx context.Context, workspace, holder string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE advisory_locks SET expires_at = ? WHERE workspace = ? AND holder = ?`,
		time.Now().Add(ttl).Unix(), workspace, holder)
	return err
}

// ReleaseLock drops the lock row for (workspace, holder).
func (s *Store) ReleaseLock(ctx context.Context, workspace, holder string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM advisory_locks WHERE workspace = ? AND holder = ?`, workspace, holder)
	return err
}
