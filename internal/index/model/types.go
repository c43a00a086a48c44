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

// Package model holds the data types shared across C4's sub-packages
// (store, chunk, tag, embed) so that none of them needs to import the
// top-level orchestrator package, which would cycle back into them
// (spec.md §3 data model).
package model

import "time"

// TagKind classifies an extracted symbol (spec.md §3 CodeTag).
type TagKind string

const (
	TagFunction  TagKind = "function"
	TagMethod    TagKind = "method"
	TagClass     TagKind = "class"
	TagStruct    TagKind = "struct"
	TagTrait     TagKind = "trait"
	TagInterface TagKind = "interface"
	TagEnum      TagKind = "enum"
	TagConstant  TagKind = "constant"
	TagVariable  TagKind = "variable"
)

// CodeTag is a symbol extracted from a chunk (spec.md §3).
type CodeTag struct {
	Name      string
	Kind      TagKind
	StartLine int
	EndLine   int
	Signature string
	Docs      string
	IsDef     bool // false for references
}

// CodeChunk is one indexed unit of source content (spec.md §3).
type CodeChunk struct {
	ID           string
	Workspace    string
	Filepath     string
	Language     string
	Content      string
	StartLine    int
	EndLine      int
	Embedding    []float32
	ContentHash  string
	IndexedAt    time.Time
	ParentSymbol string
	IsOverview   bool
	Tags         []CodeTag
}

// CatalogRow records what is currently indexed for one file (spec.md §3).
type CatalogRow struct {
	Workspace    string
	Branch       string
	Filepath     string
	ContentHash  string
	MTime        time.Time
	ChunksCount  int
	ChunksFailed int
	IndexedAt    time.Time
}

// EmbeddingCacheRow is a content-addressed cached embedding (spec.md §3).
type EmbeddingCacheRow struct {
	Filepath    string
	ContentHash string
	ArtifactID  string
	Embedding   []float32
	CreatedAt   time.Time
}

// ChangeKind classifies a catalog-vs-walk diff entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one entry in a rescan diff.
type Change struct {
	Filepath string
	Kind     ChangeKind
}
