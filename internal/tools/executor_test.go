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
package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorDispatchRunsReadOnlyCallsConcurrently(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	reg := NewRegistry()
	reg.Register(NewReadTool())
	ev := NewEvaluator(nil)
	ev.SetSkipRequests(true)
	ex := NewExecutor(reg, ev)

	input, _ := json.Marshal(map[string]string{"file_path": filepath.Join(dir, "a.txt")})
	calls := []Call{{ID: "1", Name: "read", Input: input}, {ID: "2", Name: "read", Input: input}}

	results := ex.Dispatch(context.Background(), &ExecContext{WorkingDir: dir, FileTracker: NewFileTracker()}, calls)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Output.IsError)
		assert.Equal(t, "a", r.Output.Content)
	}
}

func TestExecutorUnsafeToolDeniedByRuleNeverExecutes(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewBashTool(NewTaskRegistry()))
	ev := NewEvaluator([]Rule{{Source: SourceProject, ToolPattern: "bash", Action: ActionDeny}})
	ex := NewExecutor(reg, ev)

	input, _ := json.Marshal(BashParams{Command: "echo hi"})
	results := ex.Dispatch(context.Background(), &ExecContext{}, []Call{{ID: "1", Name: "bash", Input: input}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Output.IsError)
	assert.Contains(t, results[0].Output.Content, "denied")
}
