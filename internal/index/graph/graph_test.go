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
package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPageRankEdgeAccumulation is the literal S5 scenario from spec.md
// §8: two symbols both defined in parser.rs and both referenced in
// main.rs collapse to exactly one edge whose symbol set contains both
// names and whose weight is the sum of the per-symbol weights.
func TestPageRankEdgeAccumulation(t *testing.T) {
	w := DefaultWeights()
	defs := []Definition{
		{Symbol: "parse", File: "parser.rs"},
		{Symbol: "lex", File: "parser.rs"},
	}
	refs := []Reference{
		{Symbol: "parse", File: "main.rs", ExactMention: true},
		{Symbol: "lex", File: "main.rs", ExactMention: true},
	}

	g := BuildEdges(defs, refs, nil, w)
	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "main.rs", edges[0].Src)
	assert.Equal(t, "parser.rs", edges[0].Dst)

	symbols := g.SymbolsOf("main.rs", "parser.rs")
	assert.ElementsMatch(t, []string{"parse", "lex"}, symbols)

	expectedWeight := symbolWeight(SymbolDef{Name: "parse", DefCount: 1, ReferenceCount: 1}, true, 0, w) +
		symbolWeight(SymbolDef{Name: "lex", DefCount: 1, ReferenceCount: 1}, true, 0, w)
	assert.InDelta(t, expectedWeight, edges[0].Weight, 1e-9)
}

func TestAddEdgeNeverOverwritesAccumulates(t *testing.T) {
	w := DefaultWeights()
	g := New()
	g.AddEdge("a.go", "b.go", "Foo", 1.0, false, w)
	g.AddEdge("a.go", "b.go", "Bar", 2.0, false, w)
	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.InDelta(t, 3.0, edges[0].Weight, 1e-9)
	assert.ElementsMatch(t, []string{"Foo", "Bar"}, g.SymbolsOf("a.go", "b.go"))
}

func TestPageRankFavorsReferencedFile(t *testing.T) {
	w := DefaultWeights()
	g := New()
	g.AddEdge("a.go", "b.go", "Foo", 10, false, w)
	ranks := g.PageRank(0.85, 50, nil)
	require.NotNil(t, ranks)
	assert.Greater(t, ranks["b.go"], ranks["a.go"])
}
