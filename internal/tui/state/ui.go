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

// Package state holds the TUI's modal state machine: which overlay (if
// any) is showing, the editor buffer, and any open suggestion menu. It
// applies event.Dispatched values produced by the key dispatcher and
// reports back an Action describing anything the engine (not the widget
// tree) must carry out (spec.md §4.5).
package state

import "github.com/coderunner/engine/internal/tui/event"

// Overlay identifies the single modal surface that can be showing at a
// time; an open overlay captures all key input (spec.md §4.5).
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayApproval
	OverlayCommandPalette
	OverlaySessionBrowser
	OverlayHelp
)

// ThinkingLevel cycles through the model's reasoning-effort tiers.
type ThinkingLevel int

const (
	ThinkingOff ThinkingLevel = iota
	ThinkingLow
	ThinkingMedium
	ThinkingHigh
	thinkingLevelCount
)

// ActionKind names something the UIState cannot complete on its own and
// must hand back to the engine.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSubmit
	ActionQueue
	ActionInterrupt
	ActionClearScreen
	ActionOpenExternalEditor
	ActionPasteClipboard
	ActionCycleModel
	ActionQuit
	ActionCancelTurn
	ActionScrollChat
	ActionApprove
	ActionDeny
	ActionApproveAll
	ActionRequestSuggestions
)

// Action is the side effect produced by applying one Dispatched command.
type Action struct {
	Kind       ActionKind
	Text       string
	Delta      int
	Suggestion event.SuggestionKind
	Query      string
}

// SuggestionState tracks one open completion menu. Items is populated by
// the engine after an ActionRequestSuggestions action; UIState only owns
// navigation over whatever list it was given.
type SuggestionState struct {
	Kind     event.SuggestionKind
	Query    string
	Items    []string
	Selected int
	Open     bool
}

// UIState is the full modal state of one TUI session.
type UIState struct {
	Overlay         Overlay
	Input           InputState
	Suggestion      SuggestionState
	PlanMode        bool
	Thinking        ThinkingLevel
	ThinkingVisible bool
	streaming       bool
}

// NewUIState returns a fresh, idle state with an empty editor.
func NewUIState() *UIState {
	return &UIState{Input: NewInputState()}
}

// The following three methods satisfy event.Context.

func (s *UIState) OverlayActive() bool { return s.Overlay != OverlayNone }

func (s *UIState) ActiveSuggestion() event.SuggestionKind {
	if s.Suggestion.Open {
		return s.Suggestion.Kind
	}
	return event.SuggestionNone
}

func (s *UIState) Streaming() bool { return s.streaming }

// SetStreaming records whether a turn is currently streaming, which
// changes Enter's behavior (spec.md §4.5 "Input keys").
func (s *UIState) SetStreaming(v bool) { s.streaming = v }

// Apply mutates UIState per d and returns any Action the engine must
// carry out.
func (s *UIState) Apply(d event.Dispatched) Action {
	switch d.Command {
	case event.TogglePlanMode:
		s.PlanMode = !s.PlanMode
	case event.CycleThinkingLevel:
		s.Thinking = (s.Thinking + 1) % thinkingLevelCount
	case event.CycleModel:
		return Action{Kind: ActionCycleModel}
	case event.Interrupt:
		return Action{Kind: ActionInterrupt}
	case event.ClearScreen:
		return Action{Kind: ActionClearScreen}
	case event.OpenExternalEditor:
		return Action{Kind: ActionOpenExternalEditor, Text: s.Input.Text()}
	case event.ShowCommandPalette:
		s.Overlay = OverlayCommandPalette
	case event.ShowSessionBrowser:
		s.Overlay = OverlaySessionBrowser
	case event.ToggleThinking:
		s.ThinkingVisible = !s.ThinkingVisible
	case event.ShowHelp:
		s.Overlay = OverlayHelp
	case event.Quit:
		return Action{Kind: ActionQuit}
	case event.PasteFromClipboard:
		return Action{Kind: ActionPasteClipboard}
	case event.Cancel:
		return s.applyCancel()

	case event.PageUp:
		return Action{Kind: ActionScrollChat, Delta: -1}
	case event.PageDown:
		return Action{Kind: ActionScrollChat, Delta: 1}
	case event.ScrollUp:
		return Action{Kind: ActionScrollChat, Delta: -1}
	case event.ScrollDown:
		return Action{Kind: ActionScrollChat, Delta: 1}

	case event.CursorLeft:
		s.Input.CursorLeft()
	case event.CursorRight:
		s.Input.CursorRight()
	case event.CursorUp, event.CursorDown:
		// No-op: the input editor has no line-wise cursor movement, so the
		// buffer and cursor are left unchanged.
	case event.CursorHome:
		s.Input.CursorHome()
	case event.CursorEnd:
		s.Input.CursorEnd()
	case event.WordLeft:
		s.Input.WordLeft()
	case event.WordRight:
		s.Input.WordRight()

	case event.InsertChar:
		s.Input.InsertChar(d.Char)
		return s.refreshSuggestionQuery()
	case event.InsertNewline:
		s.Input.InsertNewline()
		s.Suggestion = SuggestionState{}
	case event.DeleteBackward:
		s.Input.DeleteBackward()
		return s.refreshSuggestionQuery()
	case event.DeleteWordBackward:
		s.Input.DeleteWordBackward()
		return s.refreshSuggestionQuery()
	case event.DeleteForward:
		s.Input.DeleteForward()
	case event.DeleteWordForward:
		s.Input.DeleteWordForward()

	case event.SubmitInput:
		text := s.Input.Text()
		s.Input.Clear()
		s.Suggestion = SuggestionState{}
		return Action{Kind: ActionSubmit, Text: text}
	case event.QueueInput:
		text := s.Input.Text()
		s.Input.Clear()
		s.Suggestion = SuggestionState{}
		return Action{Kind: ActionQueue, Text: text}

	case event.Approve:
		s.Overlay = OverlayNone
		return Action{Kind: ActionApprove}
	case event.Deny:
		s.Overlay = OverlayNone
		return Action{Kind: ActionDeny}
	case event.ApproveAll:
		s.Overlay = OverlayNone
		return Action{Kind: ActionApproveAll}

	case event.SelectPrevSuggestion:
		s.moveSuggestion(-1)
	case event.SelectNextSuggestion:
		s.moveSuggestion(1)
	case event.AcceptSuggestion:
		s.acceptSuggestion()
	case event.DismissSuggestions:
		s.Suggestion = SuggestionState{}
	}
	return Action{}
}

func (s *UIState) applyCancel() Action {
	switch {
	case s.Overlay != OverlayNone:
		s.Overlay = OverlayNone
		return Action{}
	case s.Suggestion.Open:
		s.Suggestion = SuggestionState{}
		return Action{}
	default:
		return Action{Kind: ActionCancelTurn}
	}
}

func (s *UIState) moveSuggestion(delta int) {
	if !s.Suggestion.Open || len(s.Suggestion.Items) == 0 {
		return
	}
	n := len(s.Suggestion.Items)
	s.Suggestion.Selected = ((s.Suggestion.Selected+delta)%n + n) % n
}

func (s *UIState) acceptSuggestion() {
	if !s.Suggestion.Open {
		return
	}
	if s.Suggestion.Selected >= 0 && s.Suggestion.Selected < len(s.Suggestion.Items) {
		s.Input.AcceptAtSuggestion(s.Suggestion.Items[s.Suggestion.Selected])
	}
	s.Suggestion = SuggestionState{}
}

// refreshSuggestionQuery re-derives the open @-token (if any) from the
// editor buffer after an insert/delete and asks the engine to refresh
// the candidate list.
func (s *UIState) refreshSuggestionQuery() Action {
	kind, query, ok := s.Input.AtQuery()
	if !ok {
		s.Suggestion = SuggestionState{}
		return Action{}
	}
	if !s.Suggestion.Open || s.Suggestion.Kind != kind {
		s.Suggestion = SuggestionState{Kind: kind, Open: true}
	}
	s.Suggestion.Query = query
	return Action{Kind: ActionRequestSuggestions, Suggestion: kind, Query: query}
}
