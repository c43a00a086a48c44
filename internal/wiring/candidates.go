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
package wiring

import (
	"context"
	"strings"

	"github.com/coderunner/engine/internal/fsext"
	"github.com/coderunner/engine/internal/tui/event"
)

// FileCandidates implements tui.CandidateSource over the workspace
// filesystem and a static agent-name list, satisfying the @-token
// routing rule (file/agent/symbol) with C4's index backing symbol
// lookups when present.
type FileCandidates struct {
	Workspace  string
	AgentNames []string
	SymbolSearch func(ctx context.Context, query string) []string
}

func (f *FileCandidates) Candidates(ctx context.Context, kind event.SuggestionKind, query string) []string {
	switch kind {
	case event.SuggestionAgent:
		return f.AgentNames
	case event.SuggestionSymbol:
		if f.SymbolSearch != nil {
			return f.SymbolSearch(ctx, query)
		}
		return nil
	case event.SuggestionFile:
		files, _, err := fsext.ListDirectory(f.Workspace, []string{".git", "node_modules"}, 6, 500)
		if err != nil {
			return nil
		}
		out := make([]string, 0, len(files))
		for _, p := range files {
			rel := strings.TrimPrefix(p, f.Workspace+"/")
			out = append(out, rel)
		}
		return out
	default:
		return nil
	}
}
