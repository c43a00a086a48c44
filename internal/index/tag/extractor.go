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

// Package tag implements C4's symbol tag extractor. Lacking a
// tree-sitter binding (see internal/index/chunk), symbol queries are
// approximated with per-language declaration/reference regexps over the
// same line ranges the chunker already established.
package tag

import (
	"regexp"
	"strings"

	"github.com/coderunner/engine/internal/index/model"
)

type defPattern struct {
	re   *regexp.Regexp
	kind model.TagKind
}

var defPatterns = map[string][]defPattern{
	"go": {
		{regexp.MustCompile(`^func\s+\([^)]*\)\s*(\w+)`), model.TagMethod},
		{regexp.MustCompile(`^func\s+(\w+)`), model.TagFunction},
		{regexp.MustCompile(`^type\s+(\w+)\s+struct`), model.TagStruct},
		{regexp.MustCompile(`^type\s+(\w+)\s+interface`), model.TagInterface},
		{regexp.MustCompile(`^type\s+(\w+)`), model.TagVariable},
		{regexp.MustCompile(`^const\s+(\w+)`), model.TagConstant},
		{regexp.MustCompile(`^var\s+(\w+)`), model.TagVariable},
	},
	"rust": {
		{regexp.MustCompile(`^(?:pub\s+)?fn\s+(\w+)`), model.TagFunction},
		{regexp.MustCompile(`^(?:pub\s+)?struct\s+(\w+)`), model.TagStruct},
		{regexp.MustCompile(`^(?:pub\s+)?enum\s+(\w+)`), model.TagEnum},
		{regexp.MustCompile(`^(?:pub\s+)?trait\s+(\w+)`), model.TagTrait},
		{regexp.MustCompile(`^const\s+(\w+)`), model.TagConstant},
	},
	"python": {
		{regexp.MustCompile(`^(?:\s*)(?:async\s+)?def\s+(\w+)`), model.TagFunction},
		{regexp.MustCompile(`^(?:\s*)class\s+(\w+)`), model.TagClass},
	},
	"java": {
		{regexp.MustCompile(`(?:public|private|protected|static|final|abstract|\s)*class\s+(\w+)`), model.TagClass},
		{regexp.MustCompile(`(?:public|private|protected|static|final|abstract|\s)*interface\s+(\w+)`), model.TagInterface},
		{regexp.MustCompile(`(?:public|private|protected|static|final|abstract|\s)+\w[\w<>\[\]]*\s+(\w+)\s*\(`), model.TagMethod},
	},
}

// identRE finds bare identifier tokens for reference extraction.
var identRE = regexp.MustCompile(`\b[A-Za-z_]\w*\b`)

// Extract runs the per-language pattern set over content, returning
// CodeTags with lines numbered relative to startLine (so callers can
// pass a chunk's own content and get absolute file line numbers back).
func Extract(language, content string, startLine int) []model.CodeTag {
	patterns := defPatterns[language]
	lines := strings.Split(content, "\n")
	definedOnLine := make(map[int]map[string]bool)

	var tags []model.CodeTag
	if patterns != nil {
		for i, line := range lines {
			for _, dp := range patterns {
				m := dp.re.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				name := m[1]
				if definedOnLine[i] == nil {
					definedOnLine[i] = make(map[string]bool)
				}
				definedOnLine[i][name] = true
				tags = append(tags, model.CodeTag{
					Name:      name,
					Kind:      dp.kind,
					StartLine: startLine + i,
					EndLine:   startLine + i,
					Signature: strings.TrimSpace(line),
					IsDef:     true,
				})
			}
		}
	}

	// References: any identifier token that isn't itself a definition on
	// that line, deduplicated per line to avoid overcounting.
	for i, line := range lines {
		seen := make(map[string]bool)
		for _, name := range identRE.FindAllString(line, -1) {
			if seen[name] || isKeyword(name) {
				continue
			}
			seen[name] = true
			if definedOnLine[i][name] {
				continue // a reference on its own definition line is noise
			}
			tags = append(tags, model.CodeTag{Name: name, StartLine: startLine + i, EndLine: startLine + i, IsDef: false})
		}
	}
	return tags
}

var keywords = map[string]bool{
	"func": true, "type": true, "struct": true, "interface": true, "const": true, "var": true,
	"return": true, "if": true, "else": true, "for": true, "range": true, "package": true, "import": true,
	"fn": true, "pub": true, "enum": true, "trait": true, "impl": true, "mod": true, "let": true, "mut": true,
	"def": true, "class": true, "self": true, "async": true, "await": true,
	"public": true, "private": true, "protected": true, "static": true, "final": true, "abstract": true, "void": true,
}

func isKeyword(s string) bool { return keywords[s] }
