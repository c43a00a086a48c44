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
)

func TestScenarioS5SubmitClearsInputAndReturnsText(t *testing.T) {
	s := NewUIState()
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: 'h'})
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: 'i'})

	action := s.Apply(event.Dispatched{Command: event.SubmitInput})

	assert.Equal(t, ActionSubmit, action.Kind)
	assert.Equal(t, "hi", action.Text)
	assert.Equal(t, "", s.Input.Text())
}

func TestScenarioS5StreamingEnterQueuesInstead(t *testing.T) {
	s := NewUIState()
	s.SetStreaming(true)
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: 'x'})

	action := s.Apply(event.Dispatched{Command: event.QueueInput})

	assert.Equal(t, ActionQueue, action.Kind)
	assert.Equal(t, "x", action.Text)
}

func TestScenarioS5CancelClosesOverlayBeforeInterruptingTurn(t *testing.T) {
	s := NewUIState()
	s.Overlay = OverlayHelp

	action := s.Apply(event.Dispatched{Command: event.Cancel})

	assert.Equal(t, OverlayNone, s.Overlay)
	assert.Equal(t, ActionNone, action.Kind, "closing an overlay must not also cancel the turn")
}

func TestScenarioS5CancelDismissesSuggestionBeforeInterruptingTurn(t *testing.T) {
	s := NewUIState()
	s.Suggestion = SuggestionState{Open: true, Kind: event.SuggestionFile, Items: []string{"a.go"}}

	action := s.Apply(event.Dispatched{Command: event.Cancel})

	assert.False(t, s.Suggestion.Open)
	assert.Equal(t, ActionNone, action.Kind)
}

func TestScenarioS5CancelWithNothingOpenInterruptsTurn(t *testing.T) {
	s := NewUIState()

	action := s.Apply(event.Dispatched{Command: event.Cancel})

	assert.Equal(t, ActionCancelTurn, action.Kind)
}

func TestScenarioS5InsertCharOpensSuggestionRequest(t *testing.T) {
	s := NewUIState()
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: '@'})
	action := s.Apply(event.Dispatched{Command: event.InsertChar, Char: 'f'})

	assert.Equal(t, ActionRequestSuggestions, action.Kind)
	assert.Equal(t, event.SuggestionFile, action.Suggestion)
	assert.Equal(t, "f", action.Query)
	assert.True(t, s.Suggestion.Open)
}

func TestScenarioS5AcceptSuggestionSplicesSelectedItemAndCloses(t *testing.T) {
	s := NewUIState()
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: '@'})
	s.Apply(event.Dispatched{Command: event.InsertChar, Char: 'f'})
	s.Suggestion.Items = []string{"foo.go", "far.go"}
	s.Suggestion.Selected = 1

	s.Apply(event.Dispatched{Command: event.AcceptSuggestion})

	assert.Equal(t, "@far.go ", s.Input.Text())
	assert.False(t, s.Suggestion.Open)
}

func TestScenarioS5SuggestionNavigationWrapsAround(t *testing.T) {
	s := NewUIState()
	s.Suggestion = SuggestionState{Open: true, Items: []string{"a", "b", "c"}, Selected: 0}

	s.Apply(event.Dispatched{Command: event.SelectPrevSuggestion})
	assert.Equal(t, 2, s.Suggestion.Selected, "moving previous from index 0 must wrap to the last item")

	s.Apply(event.Dispatched{Command: event.SelectNextSuggestion})
	assert.Equal(t, 0, s.Suggestion.Selected)
}

func TestScenarioS5TogglePlanModeFlipsState(t *testing.T) {
	s := NewUIState()
	assert.False(t, s.PlanMode)

	s.Apply(event.Dispatched{Command: event.TogglePlanMode})
	assert.True(t, s.PlanMode)

	s.Apply(event.Dispatched{Command: event.TogglePlanMode})
	assert.False(t, s.PlanMode)
}

func TestScenarioS5CycleThinkingLevelWrapsAround(t *testing.T) {
	s := NewUIState()
	for i := 0; i < int(thinkingLevelCount); i++ {
		s.Apply(event.Dispatched{Command: event.CycleThinkingLevel})
	}
	assert.Equal(t, ThinkingOff, s.Thinking, "cycling through every level must return to the first")
}

func TestScenarioS5ApproveClosesOverlayAndReturnsAction(t *testing.T) {
	s := NewUIState()
	s.Overlay = OverlayApproval

	action := s.Apply(event.Dispatched{Command: event.Approve})

	assert.Equal(t, ActionApprove, action.Kind)
	assert.Equal(t, OverlayNone, s.Overlay)
}
