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
package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestScenarioS4RetrievalPreprocessor covers the literal S4 scenario:
// "getUserById" is detected as a code identifier, split into exactly
// {"getUserById","get","User","By","Id"}, with no stemming or stopword
// removal, and the stated trigram set.
func TestScenarioS4RetrievalPreprocessor(t *testing.T) {
	got := Preprocess("getUserById")

	assert.Equal(t, KindCodeIdentifier, got.Kind)
	assert.ElementsMatch(t, []string{"getUserById", "get", "User", "By", "Id"}, got.Tokens)
	assert.ElementsMatch(t,
		[]string{"get", "etU", "tUs", "Use", "ser", "erB", "rBy", "ByI", "yId"},
		got.Trigrams)
}

func TestSymbolSearchExtractsPrefixFilters(t *testing.T) {
	got := Preprocess("type:struct name:Parser")
	assert.Equal(t, KindSymbolSearch, got.Kind)
	assert.Equal(t, map[string]string{"type": "struct", "name": "Parser"}, got.SymbolFilters)
	assert.Contains(t, got.Tokens, "struct")
	assert.Contains(t, got.Tokens, "Parser")
}

func TestNaturalLanguageDropsStopwordsAndStems(t *testing.T) {
	got := Preprocess("how are the connections retried")
	assert.Equal(t, KindNaturalLanguage, got.Kind)
	assert.NotContains(t, got.Tokens, "how")
	assert.NotContains(t, got.Tokens, "are")
	assert.NotContains(t, got.Tokens, "the")
	assert.Contains(t, got.Tokens, "connection")
	assert.Contains(t, got.Tokens, "retri")
}

func TestSnakeCaseIsDetectedAsCodeIdentifier(t *testing.T) {
	got := Preprocess("max_retry_count")
	assert.Equal(t, KindCodeIdentifier, got.Kind)
	assert.Contains(t, got.Tokens, "max")
	assert.Contains(t, got.Tokens, "retry")
	assert.Contains(t, got.Tokens, "count")
}
