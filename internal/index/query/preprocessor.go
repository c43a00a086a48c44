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

// Package query implements C4's query preprocessor: auto-detecting a
// query's type and producing the token/trigram sets each leg of hybrid
// search consumes (spec.md §4.4 "Query pipeline").
package query

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind classifies a preprocessed query (spec.md §4.4).
type Kind string

const (
	KindCodeIdentifier Kind = "code_identifier"
	KindSymbolSearch   Kind = "symbol_search"
	KindNaturalLanguage Kind = "natural_language"
)

// Preprocessed is the output of Preprocess: the detected kind plus the
// term sets each search leg needs.
type Preprocessed struct {
	Kind     Kind
	Tokens   []string
	Trigrams []string
	// SymbolFilters holds prefix:value pairs extracted from a
	// SymbolSearch query (type:, name:, file:, path:).
	SymbolFilters map[string]string
}

var camelOrPascal = regexp.MustCompile(`^[A-Za-z][a-zA-Z0-9]*$`)
var symbolPrefixRE = regexp.MustCompile(`\b(type|name|file|path):(\S+)`)

// Preprocess detects the query's Kind and builds its token/trigram sets.
func Preprocess(q string) Preprocessed {
	q = strings.TrimSpace(q)
	if isCodeIdentifier(q) {
		return preprocessCodeIdentifier(q)
	}
	if symbolPrefixRE.MatchString(q) {
		return preprocessSymbolSearch(q)
	}
	return preprocessNaturalLanguage(q)
}

// isCodeIdentifier matches spec.md's detection rule: no spaces, and
// either contains '_' or is camelCase/PascalCase.
func isCodeIdentifier(q string) bool {
	if q == "" || strings.Contains(q, " ") {
		return false
	}
	if strings.Contains(q, "_") {
		return true
	}
	if !camelOrPascal.MatchString(q) {
		return false
	}
	return isCamelOrPascal(q)
}

func isCamelOrPascal(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

// preprocessCodeIdentifier splits a code identifier into sub-tokens and
// keeps the original; no stemming, no stopword removal (spec.md §4.4, S4).
func preprocessCodeIdentifier(q string) Preprocessed {
	subtokens := splitIdentifier(q)
	tokens := append([]string{q}, subtokens...)
	return Preprocessed{Kind: KindCodeIdentifier, Tokens: tokens, Trigrams: trigrams(q)}
}

// splitIdentifier breaks snake_case and camelCase/PascalCase boundaries
// into sub-tokens, e.g. "getUserById" -> ["get","User","By","Id"].
func splitIdentifier(s string) []string {
	var parts []string
	for _, piece := range strings.Split(s, "_") {
		parts = append(parts, splitCamel(piece)...)
	}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCamel(s string) []string {
	var tokens []string
	var cur []rune
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			tokens = append(tokens, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		tokens = append(tokens, string(cur))
	}
	return tokens
}

// trigrams generates overlapping character 3-grams of s (used for code
// friendliness across all query kinds).
func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	var out []string
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

// preprocessSymbolSearch extracts type:/name:/file:/path: prefix values
// as terms and generates trigrams from them (spec.md §4.4, S4's sibling
// scenario for SymbolSearch detection).
func preprocessSymbolSearch(q string) Preprocessed {
	filters := make(map[string]string)
	var tokens, allTrigrams []string
	for _, m := range symbolPrefixRE.FindAllStringSubmatch(q, -1) {
		filters[m[1]] = m[2]
		tokens = append(tokens, m[2])
		allTrigrams = append(allTrigrams, trigrams(m[2])...)
	}
	return Preprocessed{Kind: KindSymbolSearch, Tokens: tokens, Trigrams: allTrigrams, SymbolFilters: filters}
}

// englishStopwords is a minimal English stopword list; chinese stopwords
// are matched via a small common-character set since no pack library
// carries CJK tokenization.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "and": true, "or": true,
	"it": true, "this": true, "that": true, "with": true, "as": true, "at": true, "by": true,
	"be": true, "how": true, "what": true, "do": true, "does": true, "did": true,
}

var chineseStopwords = map[rune]bool{
	'的': true, '了': true, '是': true, '在': true, '我': true, '有': true, '和': true, '就': true,
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// preprocessNaturalLanguage tokenizes, removes stopwords, stems ASCII
// tokens with a Porter-style stemmer, deduplicates, and also generates
// trigrams for code friendliness (spec.md §4.4).
func preprocessNaturalLanguage(q string) Preprocessed {
	raw := wordRE.FindAllString(strings.ToLower(q), -1)
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range raw {
		if englishStopwords[w] || isAllChineseStopwords(w) {
			continue
		}
		stemmed := w
		if isASCIIAlpha(w) {
			stemmed = stem(w)
		}
		if seen[stemmed] {
			continue
		}
		seen[stemmed] = true
		tokens = append(tokens, stemmed)
	}
	var allTrigrams []string
	for _, w := range raw {
		allTrigrams = append(allTrigrams, trigrams(w)...)
	}
	return Preprocessed{Kind: KindNaturalLanguage, Tokens: tokens, Trigrams: allTrigrams}
}

func isAllChineseStopwords(w string) bool {
	for _, r := range w {
		if !chineseStopwords[r] {
			return false
		}
	}
	return len(w) > 0
}

func isASCIIAlpha(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}

// stem applies a small Porter-style suffix-stripping heuristic. No
// stemming library exists in the pack, so this hand-rolled subset
// (plurals, -ing, -ed, -ly, -ation) is the justified stdlib fallback
// recorded in DESIGN.md.
func stem(w string) string {
	suffixes := []struct {
		suffix string
		min    int
	}{
		{"ational", 8}, {"ization", 8}, {"ation", 6}, {"ing", 5}, {"edly", 6},
		{"ed", 4}, {"ly", 4}, {"ies", 4}, {"es", 4}, {"s", 3},
	}
	for _, suf := range suffixes {
		if len(w) >= suf.min && strings.HasSuffix(w, suf.suffix) {
			return w[:len(w)-len(suf.suffix)]
		}
	}
	return w
}
