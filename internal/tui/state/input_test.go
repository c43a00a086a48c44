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
package state

import (
	"testing"

	"github.com/coderunner/engine/internal/tui/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeString(in *InputState, s string) {
	for _, r := range s {
		in.InsertChar(r)
	}
}

func TestScenarioS5AtTokenOpensAtStartOfInput(t *testing.T) {
	in := NewInputState()
	typeString(&in, "@foo")

	kind, query, ok := in.AtQuery()
	require.True(t, ok)
	assert.Equal(t, event.SuggestionFile, kind)
	assert.Equal(t, "foo", query)
}

func TestScenarioS5AtTokenRequiresPrecedingWhitespace(t *testing.T) {
	in := NewInputState()
	typeString(&in, "foo@bar")

	_, _, ok := in.AtQuery()
	assert.False(t, ok, "an '@' embedded mid-word must not open a suggestion query")
}

func TestScenarioS5AtTokenClosesOnSpace(t *testing.T) {
	in := NewInputState()
	typeString(&in, "@foo bar")

	_, _, ok := in.AtQuery()
	assert.False(t, ok, "a space must close the open @-token")
}

func TestScenarioS5AtTokenRoutesAgentSuggestion(t *testing.T) {
	in := NewInputState()
	typeString(&in, "@agent-reviewer")

	kind, query, ok := in.AtQuery()
	require.True(t, ok)
	assert.Equal(t, event.SuggestionAgent, kind)
	assert.Equal(t, "agent-reviewer", query)
}

func TestScenarioS5AtTokenRoutesSymbolSuggestion(t *testing.T) {
	in := NewInputState()
	typeString(&in, "@#Handler")

	kind, query, ok := in.AtQuery()
	require.True(t, ok)
	assert.Equal(t, event.SuggestionSymbol, kind)
	assert.Equal(t, "Handler", query)
}

func TestScenarioS5AcceptAtSuggestionSplicesPath(t *testing.T) {
	in := NewInputState()
	typeString(&in, "see @rea")
	in.AcceptAtSuggestion("README.md")

	assert.Equal(t, "see @README.md ", in.Text())
	_, _, ok := in.AtQuery()
	assert.False(t, ok, "accepting a suggestion must close the token")
}

func TestScenarioS5DeleteBackwardClosesTokenPastItsStart(t *testing.T) {
	in := NewInputState()
	typeString(&in, "@x")
	in.DeleteBackward()
	in.DeleteBackward()

	_, _, ok := in.AtQuery()
	assert.False(t, ok, "deleting the '@' itself must close the token")
}

func TestScenarioS5WordNavigationSkipsWhitespaceRuns(t *testing.T) {
	in := NewInputState()
	typeString(&in, "one   two")
	in.CursorHome()
	in.WordRight()

	assert.Equal(t, len("one   "), in.Cursor)
}

func TestScenarioS5DeleteWordBackwardRemovesTrailingWhitespaceAndWord(t *testing.T) {
	in := NewInputState()
	typeString(&in, "one two ")
	in.DeleteWordBackward()

	assert.Equal(t, "one ", in.Text())
}
