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

// Package event translates raw terminal key events into the abstract
// Command enum the engine consumes, honoring modal dispatch priority
// (spec.md §4.5).
package event

// Command is an abstract action produced by key dispatch, independent
// of the physical key that triggered it.
type Command int

const (
	CommandNone Command = iota

	TogglePlanMode
	CycleThinkingLevel
	CycleModel
	Interrupt
	ClearScreen
	OpenExternalEditor
	ShowCommandPalette
	ShowSessionBrowser
	ToggleThinking
	ShowHelp
	Quit
	PasteFromClipboard
	Cancel
	PageUp
	PageDown

	CursorUp
	CursorDown
	CursorLeft
	CursorRight
	CursorHome
	CursorEnd
	WordLeft
	WordRight
	ScrollUp
	ScrollDown

	InsertChar
	InsertNewline
	DeleteBackward
	DeleteWordBackward
	DeleteForward
	DeleteWordForward

	SubmitInput
	QueueInput

	Approve
	Deny
	ApproveAll

	SelectPrevSuggestion
	SelectNextSuggestion
	AcceptSuggestion
	DismissSuggestions
)

// SuggestionKind distinguishes which suggestion menu a navigation
// command applies to.
type SuggestionKind int

const (
	SuggestionNone SuggestionKind = iota
	SuggestionSkill
	SuggestionAgent
	SuggestionSymbol
	SuggestionFile
)

// Dispatched is the result of handling one key event: the abstract
// command, an optional inserted rune (for InsertChar), and which
// suggestion menu it targets (for suggestion-navigation commands).
type Dispatched struct {
	Command    Command
	Char       rune
	Suggestion SuggestionKind
}
