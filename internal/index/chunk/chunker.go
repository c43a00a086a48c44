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

// Package chunk implements C4's chunker. Neither the teacher nor any
// pack repo carries a Go tree-sitter binding, so language classification
// is delegated to chroma's lexer registry and structural boundaries are
// found with a per-language top-level-declaration regexp set; this
// trades a true AST parse for matching the behavior spec.md §4.4
// requires (1-indexed line ranges, no overlap shift on code, oversized-
// chunk collapsing).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/pkoukk/tiktoken-go"
)

// astAwareLanguages are the languages spec.md §4.4 calls out for
// AST-aware splitting; everything else falls back to the text splitter.
var astAwareLanguages = map[string]bool{"rust": true, "go": true, "python": true, "java": true}

// topLevelPatterns are per-language top-level-declaration boundary
// regexps, anchored at line start, approximating tree-sitter's
// function/class/struct node boundaries.
var topLevelPatterns = map[string]*regexp.Regexp{
	"go":     regexp.MustCompile(`(?m)^(func |type )`),
	"rust":   regexp.MustCompile(`(?m)^(pub )?(fn |struct |enum |trait |impl |mod )`),
	"python": regexp.MustCompile(`(?m)^(def |class |async def )`),
	"java":   regexp.MustCompile(`(?m)^(\s{0,4})(public |private |protected |static |final |abstract )*(class |interface |enum )`),
}

var mdHeaderPattern = regexp.MustCompile(`(?m)^#{1,6}\s`)

// DefaultMaxChunkTokens is the fallback token budget when the caller's
// configuration doesn't specify one.
const DefaultMaxChunkTokens = 400

// DefaultOverlapTokens applies overlap to non-code (text/markdown)
// chunks only; token-based overlap on code would yield invalid
// fragments (spec.md §4.4).
const DefaultOverlapTokens = 50

// Chunk is one unvalidated chunk boundary before embedding/hashing.
type Chunk struct {
	Content      string
	StartLine    int // 1-indexed, inclusive
	EndLine      int
	Language     string
	IsOverview   bool
	ParentSymbol string
}

// DetectLanguage classifies filename using chroma's lexer registry,
// returning its lowercased config name ("go", "rust", "python", ...) or
// "" if unrecognized.
func DetectLanguage(filename string) string {
	lex := lexers.Match(filename)
	if lex == nil {
		return ""
	}
	return strings.ToLower(lex.Config().Name)
}

// ChunkFile splits content into chunks bounded by maxTokens. Markdown
// gets a header-aware chunker; astAwareLanguages get structural
// splitting on top-level declaration boundaries; everything else gets a
// line-based text splitter with overlap.
func ChunkFile(filename, content string, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	lang := DetectLanguage(filename)

	var chunks []Chunk
	switch {
	case lang == "markdown":
		chunks = chunkMarkdown(content, maxTokens)
	case astAwareLanguages[lang]:
		chunks = chunkStructural(content, lang, maxTokens)
	default:
		chunks = chunkText(content, maxTokens, true)
	}
	for i := range chunks {
		chunks[i].Language = lang
	}
	chunks = collapseOversized(chunks, maxTokens)
	return ValidateChunks(chunks, maxTokens)
}

// chunkStructural splits on top-level declaration boundaries for
// AST-aware languages. Import blocks at the file head are folded into
// the first chunk (spec.md §4.4 "Import blocks ... are detected and
// included in the first chunk").
func chunkStructural(content, lang string, maxTokens int) []Chunk {
	pattern := topLevelPatterns[lang]
	lines := strings.Split(content, "\n")
	if pattern == nil || len(lines) == 0 {
		return chunkText(content, maxTokens, false)
	}

	var boundaries []int // line indices (0-based) where a new top-level decl starts
	for i, line := range lines {
		if pattern.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) == 0 {
		return chunkText(content, maxTokens, false)
	}

	var chunks []Chunk
	start := 0
	for i, b := range boundaries {
		if i == 0 {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:b], "\n"),
			StartLine: start + 1,
			EndLine:   b,
		})
		start = b
	}
	chunks = append(chunks, Chunk{
		Content:   strings.Join(lines[start:], "\n"),
		StartLine: start + 1,
		EndLine:   len(lines),
	})
	return chunks
}

// chunkMarkdown splits on ATX headers, keeping each section (header plus
// body up to the next header) as one chunk; oversized sections are
// further split by the text splitter with overlap (markdown is not
// code, so overlap is allowed).
func chunkMarkdown(content string, maxTokens int) []Chunk {
	lines := strings.Split(content, "\n")
	var boundaries []int
	for i, line := range lines {
		if mdHeaderPattern.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) == 0 {
		return chunkText(content, maxTokens, true)
	}
	var sections []Chunk
	start := 0
	if boundaries[0] != 0 {
		sections = append(sections, Chunk{Content: strings.Join(lines[0:boundaries[0]], "\n"), StartLine: 1, EndLine: boundaries[0]})
		start = boundaries[0]
	}
	for i, b := range boundaries {
		if i == 0 {
			continue
		}
		sections = append(sections, Chunk{Content: strings.Join(lines[start:b], "\n"), StartLine: start + 1, EndLine: b})
		start = b
	}
	sections = append(sections, Chunk{Content: strings.Join(lines[start:], "\n"), StartLine: start + 1, EndLine: len(lines)})

	var out []Chunk
	for _, sec := range sections {
		if estimateTokens(sec.Content) <= maxTokens {
			out = append(out, sec)
			continue
		}
		sub := chunkText(sec.Content, maxTokens, true)
		for _, c := range sub {
			c.StartLine += sec.StartLine - 1
			c.EndLine += sec.StartLine - 1
			out = append(out, c)
		}
	}
	return out
}

// chunkText is the generic line-based splitter used for unsupported
// languages and for markdown section overflow. When withOverlap is true
// a token-based overlap of DefaultOverlapTokens is applied between
// consecutive chunks (never for code, per spec.md §4.4).
func chunkText(content string, maxTokens int, withOverlap bool) []Chunk {
	lines := strings.Split(content, "\n")
	var chunks []Chunk
	start := 0
	for start < len(lines) {
		end := start
		tokens := 0
		for end < len(lines) {
			lineTokens := estimateTokens(lines[end])
			if end > start && tokens+lineTokens > maxTokens {
				break
			}
			tokens += lineTokens
			end++
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
		})
		if end >= len(lines) {
			break
		}
		if withOverlap {
			overlapLines := 0
			backTokens := 0
			for i := end - 1; i >= start && backTokens < DefaultOverlapTokens; i-- {
				backTokens += estimateTokens(lines[i])
				overlapLines++
			}
			start = end - overlapLines
			if start < 0 || start <= chunks[len(chunks)-1].StartLine-1 {
				start = end
			}
		} else {
			start = end
		}
	}
	return chunks
}

// collapseOversized implements the SmartCollapser: when a chunk still
// exceeds twice the budget after structural splitting, its body is collapsed
// to a signature-only overview, preserving structure while shrinking
// size (spec.md §4.4 "SmartCollapser").
func collapseOversized(chunks []Chunk, maxTokens int) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if estimateTokens(c.Content) <= maxTokens*2 {
			out = append(out, c)
			continue
		}
		lines := strings.Split(c.Content, "\n")
		head := lines
		if len(lines) > 3 {
			head = lines[:3]
		}
		collapsed := strings.Join(head, "\n") + "\n    ... (collapsed)"
		out = append(out, Chunk{
			Content:    collapsed,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			IsOverview: true,
		})
	}
	return out
}

// ValidateChunks is the ChunkValidator: any chunk still over maxTokens
// after collapsing is force-split on line boundaries into pieces of at
// most maxTokens. Collapsed overview chunks are passed through as they
// are, and a single line longer than maxTokens stays one piece.
func ValidateChunks(chunks []Chunk, maxTokens int) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if estimateTokens(c.Content) <= maxTokens || c.IsOverview {
			out = append(out, c)
			continue
		}
		sub := chunkText(c.Content, maxTokens, false)
		for _, s := range sub {
			s.StartLine += c.StartLine - 1
			s.EndLine += c.StartLine - 1
			out = append(out, s)
		}
	}
	return out
}

func estimateTokens(s string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

// ContentHash computes the SHA-256 used for catalog/cache keys (spec.md
// §3 CodeChunk.content-hash), over wrap_content_for_embedding(filepath,
// content).
func ContentHash(filepath, content string) string {
	h := sha256.Sum256([]byte(WrapContentForEmbedding(filepath, content)))
	return hex.EncodeToString(h[:])
}

// WrapContentForEmbedding is the canonical embedding-input wrapper:
// embeddings and their cache key must be computed over the exact same
// wrapped text, or the cache degrades to a 0% hit rate silently.
func WrapContentForEmbedding(filepath, content string) string {
	return "# " + filepath + "\n\n" + content
}
