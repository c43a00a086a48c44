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
package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScenarioS5EmptyQueryReturnsOriginalOrderCapped(t *testing.T) {
	candidates := []string{"a.go", "b.go", "c.go", "d.go"}

	out := Rank("", candidates, 2)

	assert.Equal(t, []string{"a.go", "b.go"}, out)
}

func TestScenarioS5EmptyQueryUnderLimitReturnsAll(t *testing.T) {
	candidates := []string{"a.go", "b.go"}

	out := Rank("", candidates, DefaultLimit)

	assert.Equal(t, candidates, out)
}

func TestScenarioS5FuzzyRankPrefersBetterMatch(t *testing.T) {
	candidates := []string{"internal/tools/registry.go", "internal/tui/model.go", "README.md"}

	out := Rank("tui", candidates, DefaultLimit)

	assert.NotEmpty(t, out)
	assert.Equal(t, "internal/tui/model.go", out[0])
}

func TestScenarioS5FuzzyRankHonorsLimit(t *testing.T) {
	candidates := []string{"foo1.go", "foo2.go", "foo3.go", "foo4.go"}

	out := Rank("foo", candidates, 2)

	assert.Len(t, out, 2)
}

func TestScenarioS5FuzzyRankExcludesNonMatches(t *testing.T) {
	candidates := []string{"apple.go", "banana.go"}

	out := Rank("zzz", candidates, DefaultLimit)

	assert.Empty(t, out)
}
