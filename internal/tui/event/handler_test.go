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
package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Dispatch itself is exercised end-to-end through internal/tui/model.go's
// Update, not here: the pack carries no example of constructing a
// tea.KeyPressMsg literal, so these tests stick to the bubbletea-
// independent key-string classifiers Dispatch's tables build on.

func TestPlainRuneAcceptsAnySingleRune(t *testing.T) {
	r, ok := plainRune("a")
	assert.True(t, ok)
	assert.Equal(t, 'a', r)

	r, ok = plainRune("@")
	assert.True(t, ok)
	assert.Equal(t, '@', r)
}

func TestPlainRuneRejectsMultiRuneKeyStrings(t *testing.T) {
	_, ok := plainRune("ctrl+c")
	assert.False(t, ok)

	_, ok = plainRune("enter")
	assert.False(t, ok)
}

func TestPlainLetterAcceptsLettersAndDigits(t *testing.T) {
	for _, s := range []string{"a", "Z", "5"} {
		r, ok := plainLetter(s)
		assert.True(t, ok, s)
		assert.Equal(t, rune(s[0]), r)
	}
}

func TestPlainLetterRejectsSymbolsAndMultiRuneKeys(t *testing.T) {
	for _, s := range []string{"@", "-", "ctrl+c", "esc"} {
		_, ok := plainLetter(s)
		assert.False(t, ok, s)
	}
}

func TestDispatchSuggestionNavigationKeys(t *testing.T) {
	d, ok := dispatchSuggestion("up", SuggestionFile)
	assert.True(t, ok)
	assert.Equal(t, SelectPrevSuggestion, d.Command)

	d, ok = dispatchSuggestion("tab", SuggestionAgent)
	assert.True(t, ok)
	assert.Equal(t, AcceptSuggestion, d.Command)

	_, ok = dispatchSuggestion("x", SuggestionFile)
	assert.False(t, ok, "a plain letter must fall through to global/input dispatch")
}

func TestDispatchGlobalKnownShortcuts(t *testing.T) {
	d, ok := dispatchGlobal("ctrl+p")
	assert.True(t, ok)
	assert.Equal(t, ShowCommandPalette, d.Command)

	d, ok = dispatchGlobal("?")
	assert.True(t, ok)
	assert.Equal(t, ShowHelp, d.Command)

	_, ok = dispatchGlobal("a")
	assert.False(t, ok, "a plain letter must fall through to input editing")
}

func TestDispatchInputEditingStreamingEnterQueues(t *testing.T) {
	d := dispatchInputEditing("enter", true)
	assert.Equal(t, QueueInput, d.Command)

	d = dispatchInputEditing("enter", false)
	assert.Equal(t, SubmitInput, d.Command)
}

func TestDispatchInputEditingFallsThroughToInsertChar(t *testing.T) {
	d := dispatchInputEditing("q", false)
	assert.Equal(t, InsertChar, d.Command)
	assert.Equal(t, 'q', d.Char)
}

func TestDispatchOverlayRestrictsInsertToLettersAndDigits(t *testing.T) {
	d := dispatchOverlay("5")
	assert.Equal(t, InsertChar, d.Command)

	d = dispatchOverlay("@")
	assert.Equal(t, CommandNone, d.Command, "overlays only accept letters/digits as literal input")
}
