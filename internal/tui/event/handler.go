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
	tea "charm.land/bubbletea/v2"
)

// Context is the narrow view of UI state the dispatcher needs to decide
// priority: is an overlay showing, is a suggestion menu open, is a turn
// currently streaming (spec.md §4.5 "Dispatch priority").
type Context interface {
	OverlayActive() bool
	ActiveSuggestion() SuggestionKind
	Streaming() bool
}

// Dispatch maps one key event to an abstract Command honoring the exact
// dispatch priority: Overlay -> Skill suggestion -> Agent suggestion ->
// Symbol suggestion -> File suggestion -> Global shortcut -> Input-
// editing key (spec.md §4.5).
func Dispatch(ctx Context, msg tea.KeyPressMsg) Dispatched {
	s := msg.String()

	if ctx.OverlayActive() {
		return dispatchOverlay(s)
	}

	if kind := ctx.ActiveSuggestion(); kind != SuggestionNone {
		if d, ok := dispatchSuggestion(s, kind); ok {
			return d
		}
		// falls through to global/input dispatch below
	}

	if d, ok := dispatchGlobal(s); ok {
		return d
	}

	return dispatchInputEditing(s, ctx.Streaming())
}

// dispatchOverlay implements the overlay key table: an overlay consumes
// every key.
func dispatchOverlay(s string) Dispatched {
	switch s {
	case "y", "Y":
		return Dispatched{Command: Approve}
	case "n", "N":
		return Dispatched{Command: Deny}
	case "ctrl+a":
		return Dispatched{Command: ApproveAll}
	case "k", "up":
		return Dispatched{Command: CursorUp}
	case "j", "down":
		return Dispatched{Command: CursorDown}
	case "enter":
		return Dispatched{Command: Approve}
	case "esc", "ctrl+c":
		return Dispatched{Command: Cancel}
	case "backspace":
		return Dispatched{Command: DeleteBackward}
	}
	if r, ok := plainLetter(s); ok {
		return Dispatched{Command: InsertChar, Char: r}
	}
	return Dispatched{Command: CommandNone}
}

// dispatchSuggestion implements suggestion-menu navigation, identical
// across skill/agent/symbol/file menus. Returns ok=false when the key
// should fall through to global/input dispatch.
func dispatchSuggestion(s string, kind SuggestionKind) (Dispatched, bool) {
	switch s {
	case "up":
		return Dispatched{Command: SelectPrevSuggestion, Suggestion: kind}, true
	case "down":
		return Dispatched{Command: SelectNextSuggestion, Suggestion: kind}, true
	case "tab", "enter":
		return Dispatched{Command: AcceptSuggestion, Suggestion: kind}, true
	case "esc":
		return Dispatched{Command: DismissSuggestions, Suggestion: kind}, true
	}
	return Dispatched{}, false
}

// dispatchGlobal implements the global shortcut table. Returns ok=false
// for any key not in the table, falling through to input editing.
func dispatchGlobal(s string) (Dispatched, bool) {
	switch s {
	case "tab":
		return Dispatched{Command: TogglePlanMode}, true
	case "ctrl+t":
		return Dispatched{Command: CycleThinkingLevel}, true
	case "ctrl+m":
		return Dispatched{Command: CycleModel}, true
	case "ctrl+c":
		return Dispatched{Command: Interrupt}, true
	case "ctrl+l":
		return Dispatched{Command: ClearScreen}, true
	case "ctrl+e":
		return Dispatched{Command: OpenExternalEditor}, true
	case "ctrl+p":
		return Dispatched{Command: ShowCommandPalette}, true
	case "ctrl+s":
		return Dispatched{Command: ShowSessionBrowser}, true
	case "ctrl+shift+t":
		return Dispatched{Command: ToggleThinking}, true
	case "shift+?", "?":
		return Dispatched{Command: ShowHelp}, true
	case "f1":
		return Dispatched{Command: ShowHelp}, true
	case "ctrl+q":
		return Dispatched{Command: Quit}, true
	case "ctrl+v", "alt+v":
		return Dispatched{Command: PasteFromClipboard}, true
	case "esc":
		return Dispatched{Command: Cancel}, true
	case "pgup":
		return Dispatched{Command: PageUp}, true
	case "pgdown":
		return Dispatched{Command: PageDown}, true
	case "ctrl+up":
		return Dispatched{Command: PageUp}, true
	case "ctrl+down":
		return Dispatched{Command: PageDown}, true
	}
	return Dispatched{}, false
}

// dispatchInputEditing implements the editor's key map (spec.md §4.5
// "Input keys").
func dispatchInputEditing(s string, streaming bool) Dispatched {
	switch s {
	case "enter":
		if streaming {
			return Dispatched{Command: QueueInput}
		}
		return Dispatched{Command: SubmitInput}
	case "ctrl+enter":
		if streaming {
			return Dispatched{Command: QueueInput}
		}
		return Dispatched{Command: SubmitInput}
	case "shift+enter", "alt+enter":
		return Dispatched{Command: InsertNewline}
	case "backspace":
		return Dispatched{Command: DeleteBackward}
	case "ctrl+backspace":
		return Dispatched{Command: DeleteWordBackward}
	case "delete":
		return Dispatched{Command: DeleteForward}
	case "ctrl+delete":
		return Dispatched{Command: DeleteWordForward}
	case "ctrl+left":
		return Dispatched{Command: WordLeft}
	case "ctrl+right":
		return Dispatched{Command: WordRight}
	case "left":
		return Dispatched{Command: CursorLeft}
	case "right":
		return Dispatched{Command: CursorRight}
	case "up":
		return Dispatched{Command: CursorUp}
	case "down":
		return Dispatched{Command: CursorDown}
	case "home":
		return Dispatched{Command: CursorHome}
	case "end":
		return Dispatched{Command: CursorEnd}
	case "alt+up":
		return Dispatched{Command: ScrollUp}
	case "alt+down":
		return Dispatched{Command: ScrollDown}
	}
	if r, ok := plainRune(s); ok {
		return Dispatched{Command: InsertChar, Char: r}
	}
	return Dispatched{Command: CommandNone}
}

// plainRune accepts any single-rune key string as an insertable
// character (bubbletea reports bare/shifted letters and symbols as
// their literal rune with no modifier prefix).
func plainRune(s string) (rune, bool) {
	runes := []rune(s)
	if len(runes) == 1 {
		return runes[0], true
	}
	return 0, false
}

// plainLetter restricts insertion (inside a filter overlay) to letters
// and digits with no or shift modifier, per spec.md §4.5's overlay rule.
func plainLetter(s string) (rune, bool) {
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, false
	}
	r := runes[0]
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
		return r, true
	}
	return 0, false
}
