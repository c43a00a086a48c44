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
	"strings"
	"unicode"

	"github.com/coderunner/engine/internal/tui/event"
)

// InputState is the editor's text buffer plus the @-token tracking state
// used to drive file/agent/symbol suggestions (spec.md §4.5 "@-token
// detection").
type InputState struct {
	Runes  []rune
	Cursor int

	// atStart is the rune index of an open @-token's '@', or -1 when no
	// suggestion query is being tracked.
	atStart int
}

// NewInputState returns an empty editor buffer with no open @-token.
func NewInputState() InputState {
	return InputState{atStart: -1}
}

func (in *InputState) clampCursor() {
	if in.Cursor < 0 {
		in.Cursor = 0
	}
	if in.Cursor > len(in.Runes) {
		in.Cursor = len(in.Runes)
	}
}

// InsertChar inserts r at the cursor and updates @-token tracking.
func (in *InputState) InsertChar(r rune) {
	in.Runes = append(in.Runes[:in.Cursor:in.Cursor], append([]rune{r}, in.Runes[in.Cursor:]...)...)
	precedingWhitespace := in.Cursor == 0 || unicode.IsSpace(in.Runes[in.Cursor-1])
	in.Cursor++

	switch {
	case r == '@' && precedingWhitespace:
		in.atStart = in.Cursor - 1
	case in.atStart >= 0 && r == ' ':
		in.atStart = -1
	}
}

// InsertNewline inserts a literal newline at the cursor, closing any open
// @-token (a suggestion query never spans a line break).
func (in *InputState) InsertNewline() {
	in.InsertChar('\n')
	in.atStart = -1
}

func (in *InputState) closeIfCursorBeforeToken() {
	if in.atStart >= 0 && in.Cursor <= in.atStart {
		in.atStart = -1
	}
}

// DeleteBackward removes the rune before the cursor.
func (in *InputState) DeleteBackward() {
	if in.Cursor == 0 {
		return
	}
	in.Runes = append(in.Runes[:in.Cursor-1], in.Runes[in.Cursor:]...)
	in.Cursor--
	in.closeIfCursorBeforeToken()
}

// DeleteForward removes the rune at the cursor.
func (in *InputState) DeleteForward() {
	if in.Cursor >= len(in.Runes) {
		return
	}
	in.Runes = append(in.Runes[:in.Cursor], in.Runes[in.Cursor+1:]...)
}

// DeleteWordBackward removes any whitespace immediately before the cursor,
// then the run of non-whitespace before that.
func (in *InputState) DeleteWordBackward() {
	end := in.Cursor
	i := in.Cursor
	for i > 0 && unicode.IsSpace(in.Runes[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(in.Runes[i-1]) {
		i--
	}
	in.Runes = append(in.Runes[:i], in.Runes[end:]...)
	in.Cursor = i
	in.closeIfCursorBeforeToken()
}

// DeleteWordForward removes any whitespace immediately after the cursor,
// then the run of non-whitespace after that.
func (in *InputState) DeleteWordForward() {
	start := in.Cursor
	i := in.Cursor
	n := len(in.Runes)
	for i < n && unicode.IsSpace(in.Runes[i]) {
		i++
	}
	for i < n && !unicode.IsSpace(in.Runes[i]) {
		i++
	}
	in.Runes = append(in.Runes[:start], in.Runes[i:]...)
}

// CursorLeft/Right/Home/End move the cursor without touching the buffer.
func (in *InputState) CursorLeft() {
	if in.Cursor > 0 {
		in.Cursor--
	}
	in.closeIfCursorBeforeToken()
}

func (in *InputState) CursorRight() {
	if in.Cursor < len(in.Runes) {
		in.Cursor++
	}
}

func (in *InputState) CursorHome() {
	in.Cursor = 0
	in.closeIfCursorBeforeToken()
}

func (in *InputState) CursorEnd() { in.Cursor = len(in.Runes) }

// WordLeft moves the cursor to the start of the previous word.
func (in *InputState) WordLeft() {
	i := in.Cursor
	for i > 0 && unicode.IsSpace(in.Runes[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(in.Runes[i-1]) {
		i--
	}
	in.Cursor = i
	in.closeIfCursorBeforeToken()
}

// WordRight moves the cursor to the start of the next word.
func (in *InputState) WordRight() {
	i := in.Cursor
	n := len(in.Runes)
	for i < n && !unicode.IsSpace(in.Runes[i]) {
		i++
	}
	for i < n && unicode.IsSpace(in.Runes[i]) {
		i++
	}
	in.Cursor = i
}

// Text returns the full buffer contents.
func (in *InputState) Text() string { return string(in.Runes) }

// Clear resets the buffer to empty, closing any open @-token.
func (in *InputState) Clear() {
	in.Runes = nil
	in.Cursor = 0
	in.atStart = -1
}

// AtQuery reports the currently open @-token, if any: its suggestion
// kind (derived from the text following '@') and the query text itself
// (spec.md §4.5: "@agent-*" or exactly "@agent" routes to agent
// suggestions; "@#..." routes to symbol suggestions; otherwise file
// suggestions).
func (in *InputState) AtQuery() (kind event.SuggestionKind, query string, ok bool) {
	if in.atStart < 0 || in.atStart >= in.Cursor {
		return event.SuggestionNone, "", false
	}
	body := string(in.Runes[in.atStart+1 : in.Cursor])
	switch {
	case body == "agent" || strings.HasPrefix(body, "agent-"):
		return event.SuggestionAgent, body, true
	case strings.HasPrefix(body, "#"):
		return event.SuggestionSymbol, strings.TrimPrefix(body, "#"), true
	default:
		return event.SuggestionFile, body, true
	}
}

// AcceptAtSuggestion replaces the open "@query" with "@{path} " and moves
// the cursor just after the inserted space.
func (in *InputState) AcceptAtSuggestion(path string) {
	if in.atStart < 0 {
		return
	}
	replacement := []rune("@" + path + " ")
	tail := append([]rune{}, in.Runes[in.Cursor:]...)
	head := append([]rune{}, in.Runes[:in.atStart]...)
	in.Runes = append(head, append(replacement, tail...)...)
	in.Cursor = in.atStart + len(replacement)
	in.atStart = -1
}
