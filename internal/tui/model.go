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

// Package tui assembles C5's key dispatcher (internal/tui/event) and
// modal state machine (internal/tui/state) into a bubbletea Model that
// drives the agent loop (internal/loop) and surfaces its approval
// lifecycle.
package tui

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/google/uuid"

	"github.com/coderunner/engine/internal/loop"
	"github.com/coderunner/engine/internal/tools"
	"github.com/coderunner/engine/internal/tui/event"
	"github.com/coderunner/engine/internal/tui/state"
	"github.com/coderunner/engine/internal/tui/suggest"
	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// CandidateSource supplies ranked @-token candidates for a suggestion
// kind; cmd/coderunner wires this to wiring.FileCandidates, which answers
// file tokens from a workspace directory listing and symbol tokens from C4's
// symbol search, and offers no agent names.
type CandidateSource interface {
	Candidates(ctx context.Context, kind event.SuggestionKind, query string) []string
}

// approvalRequestMsg is sent into the program from the executor's
// Approve callback, which runs on the agent loop's goroutine and blocks
// on respond until the TUI resolves it.
type approvalRequestMsg struct {
	req     tools.ApprovalRequest
	respond chan tools.Decision
}

type turnDoneMsg struct{ result loop.LoopResult }

// Model is the TUI's root bubbletea.Model.
type Model struct {
	ui   *state.UIState
	keys KeyMap

	program *tea.Program

	Engine       *loop.Engine
	Session      *loop.SessionState
	Defs         []llmtypes.ToolDefinition
	AllowedTools []string
	Candidates   CandidateSource

	width, height int
	pendingReq    *tools.ApprovalRequest
	pendingResp   chan tools.Decision
	interrupted   bool
	lastErr       error
}

// New builds a Model wired to engine/session; the executor backing
// engine must have its Approve callback set to model.ApprovalCallback
// before the program starts (spec.md §4.3 "Approval lifecycle").
func New(engine *loop.Engine, session *loop.SessionState, defs []llmtypes.ToolDefinition, allowed []string, candidates CandidateSource) *Model {
	m := &Model{
		ui:           state.NewUIState(),
		keys:         DefaultKeyMap(),
		Engine:       engine,
		Session:      session,
		Defs:         defs,
		AllowedTools: allowed,
		Candidates:   candidates,
	}
	engine.Interrupt = m.isInterrupted
	return m
}

// Attach records the running program so ApprovalCallback can push
// messages into it from the agent loop's goroutine.
func (m *Model) Attach(p *tea.Program) { m.program = p }

// ApprovalCallback satisfies tools.Executor.Approve: it blocks the
// calling (loop) goroutine until the TUI resolves the request.
func (m *Model) ApprovalCallback(ctx context.Context, req tools.ApprovalRequest) tools.Decision {
	respond := make(chan tools.Decision, 1)
	if m.program != nil {
		m.program.Send(approvalRequestMsg{req: req, respond: respond})
	}
	select {
	case d := <-respond:
		return d
	case <-ctx.Done():
		return tools.Cancel
	}
}

func (m *Model) isInterrupted() bool { return m.interrupted }

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) runTurn(text string) tea.Cmd {
	m.Session.AppendMessage(llmtypes.Message{
		Role:   llmtypes.RoleUser,
		Blocks: []llmtypes.ContentBlock{llmtypes.TextBlock{Text: text}},
	})
	m.ui.SetStreaming(true)
	m.interrupted = false
	return func() tea.Msg {
		result := m.Engine.Run(context.Background(), m.Session, m.Defs, m.AllowedTools)
		return turnDoneMsg{result: result}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyPressMsg:
		d := event.Dispatch(m.ui, msg)
		action := m.ui.Apply(d)
		return m.handleAction(action)

	case approvalRequestMsg:
		m.pendingReq = &msg.req
		m.pendingResp = msg.respond
		m.ui.Overlay = state.OverlayApproval
		return m, nil

	case turnDoneMsg:
		m.ui.SetStreaming(false)
		m.lastErr = msg.result.Err
		return m, nil

	case suggestionsReadyMsg:
		if m.ui.Suggestion.Open && m.ui.Suggestion.Kind == msg.kind && m.ui.Suggestion.Query == msg.query {
			m.ui.Suggestion.Items = msg.items
			if m.ui.Suggestion.Selected >= len(msg.items) {
				m.ui.Suggestion.Selected = 0
			}
		}
		return m, nil

	case externalEditorDoneMsg:
		if msg.err == nil {
			m.ui.Input.Clear()
			for _, r := range msg.text {
				m.ui.Input.InsertChar(r)
			}
		} else {
			m.lastErr = msg.err
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleAction(a state.Action) (tea.Model, tea.Cmd) {
	switch a.Kind {
	case state.ActionSubmit:
		return m, m.runTurn(a.Text)
	case state.ActionQueue:
		m.Session.Enqueue(loop.QueuedCommand{ID: uuid.NewString(), Text: a.Text})
		return m, nil
	case state.ActionQuit:
		return m, tea.Quit
	case state.ActionInterrupt, state.ActionCancelTurn:
		m.interrupted = true
		return m, nil
	case state.ActionClearScreen:
		return m, nil
	case state.ActionPasteClipboard:
		text, err := clipboard.ReadAll()
		if err == nil {
			for _, r := range text {
				m.ui.Input.InsertChar(r)
			}
		}
		return m, nil
	case state.ActionOpenExternalEditor:
		return m, m.openExternalEditor(a.Text)
	case state.ActionApprove:
		return m, m.resolveApproval(tools.Approve)
	case state.ActionDeny:
		return m, m.resolveApproval(tools.Deny)
	case state.ActionApproveAll:
		return m, m.resolveApproval(tools.ApproveAll)
	case state.ActionRequestSuggestions:
		return m, m.requestSuggestions(a.Suggestion, a.Query)
	case state.ActionScrollChat:
		return m, nil
	case state.ActionCycleModel:
		return m, nil
	}
	return m, nil
}

func (m *Model) resolveApproval(d tools.Decision) tea.Cmd {
	if m.pendingResp != nil {
		m.pendingResp <- d
		close(m.pendingResp)
		m.pendingResp = nil
		m.pendingReq = nil
	}
	return nil
}

type externalEditorDoneMsg struct {
	text string
	err  error
}

// openExternalEditor shells out to $EDITOR over a temp file, matching the
// bash tool's os/exec idiom (no pty library pulled in for a single
// blocking subprocess).
func (m *Model) openExternalEditor(initial string) tea.Cmd {
	return func() tea.Msg {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		f, err := os.CreateTemp("", "coderunner-edit-*.md")
		if err != nil {
			return externalEditorDoneMsg{err: err}
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(initial); err != nil {
			f.Close()
			return externalEditorDoneMsg{err: err}
		}
		f.Close()

		cmd := exec.Command(editor, f.Name())
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return externalEditorDoneMsg{err: err}
		}
		data, err := os.ReadFile(f.Name())
		if err != nil {
			return externalEditorDoneMsg{err: err}
		}
		return externalEditorDoneMsg{text: strings.TrimRight(string(data), "\n")}
	}
}

type suggestionsReadyMsg struct {
	kind  event.SuggestionKind
	query string
	items []string
}

func (m *Model) requestSuggestions(kind event.SuggestionKind, query string) tea.Cmd {
	if m.Candidates == nil {
		return nil
	}
	return func() tea.Msg {
		candidates := m.Candidates.Candidates(context.Background(), kind, query)
		ranked := suggest.Rank(query, candidates, suggest.DefaultLimit)
		return suggestionsReadyMsg{kind: kind, query: query, items: ranked}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	snap := m.Session.Snapshot()
	for _, msg := range snap.Messages {
		role := strings.ToUpper(string(msg.Role))
		for _, blk := range msg.Blocks {
			if tb, ok := blk.(llmtypes.TextBlock); ok {
				b.WriteString(role)
				b.WriteString(": ")
				b.WriteString(tb.Text)
				b.WriteString("\n")
			}
		}
	}

	if m.ui.Overlay == state.OverlayHelp {
		b.WriteString("\n--- shortcuts ---\n")
		for _, line := range m.keys.HelpLines() {
			b.WriteString(line + "\n")
		}
		b.WriteString("--- esc to close ---\n")
	}

	if m.ui.Overlay == state.OverlayApproval && m.pendingReq != nil {
		b.WriteString("\n--- approval required: ")
		b.WriteString(m.pendingReq.ToolName)
		b.WriteString(" — ")
		b.WriteString(m.pendingReq.Description)
		b.WriteString(" [y]es / [n]o / ctrl+a approve-all ---\n")
	}

	if m.ui.Suggestion.Open {
		b.WriteString("\n@")
		b.WriteString(m.ui.Suggestion.Query)
		for i, item := range m.ui.Suggestion.Items {
			marker := "  "
			if i == m.ui.Suggestion.Selected {
				marker = "> "
			}
			b.WriteString("\n" + marker + item)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n> ")
	b.WriteString(m.ui.Input.Text())
	if m.ui.Streaming() {
		b.WriteString(" (streaming…)")
	}
	if m.lastErr != nil {
		b.WriteString("\nerror: " + m.lastErr.Error())
	}
	return b.String()
}
