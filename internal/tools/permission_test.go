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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPermissionPrecedence verifies the source order of spec.md §8
// property 8: Session > Policy > Project > Local > User. Deny beating
// Allow within one source and Ask deferring to the tool are covered by
// the two tests that follow.
func TestPermissionPrecedence(t *testing.T) {
	ev := NewEvaluator([]Rule{
		{Source: SourceUser, ToolPattern: "bash", Action: ActionDeny},
		{Source: SourceProject, ToolPattern: "bash", Action: ActionAllow},
	})
	action, ok := ev.Evaluate("bash", "")
	require.True(t, ok)
	assert.Equal(t, ActionAllow, action, "Project outranks User")

	ev.AddRule(Rule{Source: SourceSession, ToolPattern: "bash", Action: ActionDeny})
	action, ok = ev.Evaluate("bash", "")
	require.True(t, ok)
	assert.Equal(t, ActionDeny, action, "Session outranks everything")
}

func TestPermissionPrecedenceDenyBeatsAllowWithinSameSource(t *testing.T) {
	ev := NewEvaluator([]Rule{
		{Source: SourceProject, ToolPattern: "bash", Action: ActionAllow},
		{Source: SourceProject, ToolPattern: "*", Action: ActionDeny},
	})
	action, ok := ev.Evaluate("bash", "")
	require.True(t, ok)
	assert.Equal(t, ActionDeny, action)
}

func TestPermissionAskNeverIndependentlyBlocks(t *testing.T) {
	ev := NewEvaluator([]Rule{{Source: SourceUser, ToolPattern: "edit", Action: ActionAsk}})
	action, ok := ev.Evaluate("edit", "foo.txt")
	require.True(t, ok)
	assert.Equal(t, ActionAsk, action)
	// An evaluator result of Ask is the executor's cue to defer to the
	// tool's own check_permission rather than treat Ask as terminal.
}

func TestBashPatternMatchesCommandPrefix(t *testing.T) {
	ev := NewEvaluator([]Rule{{Source: SourceProject, ToolPattern: "Bash:git *", Action: ActionAllow}})
	action, ok := ev.Evaluate("bash:git status", "")
	require.True(t, ok)
	assert.Equal(t, ActionAllow, action)

	_, ok = ev.Evaluate("bash:rm -rf /", "")
	assert.False(t, ok)
}
