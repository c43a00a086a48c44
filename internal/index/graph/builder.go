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

// Definition is one symbol's definition site, collected across all
// indexed files before BuildEdges runs.
type Definition struct {
	Symbol string
	File   string
}

// Reference is one symbol mention in a file that is not itself a
// definition there.
type Reference struct {
	Symbol       string
	File         string
	ExactMention bool
	FuzzyBoost   float64
}

// BuildEdges constructs the dependency graph from a file's worth of
// definitions and references: for every reference to a symbol defined
// in a different file, an edge referencing_file -> defining_file is
// added, carrying the symbol name and the computed weight. When a
// symbol is referenced and defined in the same file no edge is added
// (spec.md §4.4 edges are between distinct files).
func BuildEdges(defs []Definition, refs []Reference, chatFiles map[string]bool, w Weights) *Graph {
	defFiles := make(map[string]map[string]bool) // symbol -> set of defining files
	for _, d := range defs {
		if defFiles[d.Symbol] == nil {
			defFiles[d.Symbol] = make(map[string]bool)
		}
		defFiles[d.Symbol][d.File] = true
	}

	refFiles := make(map[string]map[string]bool) // symbol -> set of referencing files
	for _, r := range refs {
		if refFiles[r.Symbol] == nil {
			refFiles[r.Symbol] = make(map[string]bool)
		}
		refFiles[r.Symbol][r.File] = true
	}

	g := New()
	for _, r := range refs {
		dFiles := defFiles[r.Symbol]
		if len(dFiles) == 0 {
			continue
		}
		sym := SymbolDef{
			Name:           r.Symbol,
			DefCount:       len(dFiles),
			ReferenceCount: len(refFiles[r.Symbol]),
		}
		weight := symbolWeight(sym, r.ExactMention, r.FuzzyBoost, w)
		for dFile := range dFiles {
			if dFile == r.File {
				continue
			}
			g.AddEdge(r.File, dFile, r.Symbol, weight, chatFiles[r.File], w)
		}
	}
	return g
}
