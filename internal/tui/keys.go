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
package tui

import (
	"charm.land/bubbles/v2/key"
)

// KeyMap carries human-readable help text for the global shortcuts
// event.Dispatch already executes against raw tea.KeyPressMsg.String()
// values; ShowHelp renders from here rather than re-deriving labels from
// key strings (spec.md §4.5 "Global shortcut").
type KeyMap struct {
	TogglePlanMode  key.Binding
	CycleThinking   key.Binding
	CycleModel      key.Binding
	Interrupt       key.Binding
	ClearScreen     key.Binding
	OpenEditor      key.Binding
	Commands        key.Binding
	Sessions        key.Binding
	ToggleThinking  key.Binding
	Help            key.Binding
	Quit            key.Binding
	Paste           key.Binding
	Cancel          key.Binding

	pageBindings []key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		TogglePlanMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle plan mode"),
		),
		CycleThinking: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "cycle thinking level"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+m"),
			key.WithHelp("ctrl+m", "cycle model"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "interrupt turn"),
		),
		ClearScreen: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear screen"),
		),
		OpenEditor: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "open external editor"),
		),
		Commands: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "command palette"),
		),
		Sessions: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "session browser"),
		),
		ToggleThinking: key.NewBinding(
			key.WithKeys("ctrl+shift+t"),
			key.WithHelp("ctrl+shift+t", "show/hide thinking"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1", "?"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("ctrl+q", "quit"),
		),
		Paste: key.NewBinding(
			key.WithKeys("ctrl+v", "alt+v"),
			key.WithHelp("ctrl+v", "paste from clipboard"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel / close overlay"),
		),
	}
}

// HelpLines renders one "key  description" line per binding, in the
// order the global shortcut table is checked (spec.md §4.5), for the
// ShowHelp overlay.
func (k KeyMap) HelpLines() []string {
	bindings := []key.Binding{
		k.TogglePlanMode, k.CycleThinking, k.CycleModel, k.Interrupt,
		k.ClearScreen, k.OpenEditor, k.Commands, k.Sessions,
		k.ToggleThinking, k.Help, k.Quit, k.Paste, k.Cancel,
	}
	lines := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, h.Key+"  "+h.Desc)
	}
	return lines
}
