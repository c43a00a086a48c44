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

// Package suggest ranks candidate completions for the @-token suggestion
// menus (file, agent, symbol) by fuzzy match against the open query.
package suggest

import "github.com/sahilm/fuzzy"

// DefaultLimit bounds how many ranked candidates a caller should render;
// the menu only ever shows the first page, so ranking more is wasted
// work.
const DefaultLimit = 20

// Rank orders candidates by fuzzy-match quality against query, best
// first. An empty query returns candidates in their given order, capped
// at limit, so an @-token with nothing typed yet still shows something.
func Rank(query string, candidates []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if query == "" {
		if len(candidates) > limit {
			return append([]string{}, candidates[:limit]...)
		}
		return append([]string{}, candidates...)
	}

	matches := fuzzy.Find(query, candidates)
	out := make([]string, 0, min(limit, len(matches)))
	for i, m := range matches {
		if i >= limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
