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

// Package loop implements the agent loop and turn engine: it drives
// conversation turns against C1, arbitrates tool calls through C3, and
// owns SessionState exclusively (spec.md §5 "SessionState: only the
// agent loop writes").
package loop

import (
	"sync"
	"time"

	llmtypes "github.com/coderunner/engine/pkg/llm/types"
)

// PlanPhase tracks progress through plan mode (spec.md §4.2).
type PlanPhase string

const (
	PhaseUnderstanding PlanPhase = "understanding"
	PhaseDesign        PlanPhase = "design"
	PhaseReview        PlanPhase = "review"
	PhasePlanning      PlanPhase = "planning"
	PhaseApproval      PlanPhase = "approval"
)

// ExecutionStatus is shared by ToolExecution and Subagent records.
type ExecutionStatus string

const (
	StatusRunning     ExecutionStatus = "running"
	StatusCompleted   ExecutionStatus = "completed"
	StatusFailed      ExecutionStatus = "failed"
	StatusBackgrounded ExecutionStatus = "backgrounded"
)

// ToolExecution records one in-flight or completed tool call for display
// and for the bounded-retention trim applied as executions are added.
type ToolExecution struct {
	ID        string
	Name      string
	Status    ExecutionStatus
	Progress  string
	Output    string
	StartedAt time.Time
}

// Subagent records a spawned subagent's lifecycle.
type Subagent struct {
	ID          string
	Type        string
	Description string
	Status      ExecutionStatus
	Progress    string
	Result      string
	OutputFile  string
}

// TodoStatus mirrors the teacher's session.TodoStatus, folded into
// SessionState since todos are turn-scoped planning state, not a
// standalone persisted entity.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is one item of the model's self-tracked task list.
type Todo struct {
	Content    string
	ActiveForm string
	Status     TodoStatus
}

// QueuedCommand is one user input received while a turn was streaming
// (spec.md §4.2 "Queued input during streaming").
type QueuedCommand struct {
	ID   string
	Text string
}

// maxBoundedRetention is SPEC_FULL.md's concrete number for the
// "bounded-retention policy" spec.md §3 leaves unspecified.
const maxBoundedRetention = 200

// SessionState is the engine's persistent-across-turn state (spec.md §3).
// Every mutator below must only be called from the owning loop goroutine;
// readers elsewhere take Snapshot() copies (spec.md §5 ordering
// guarantees: "cross-component observers receive snapshots, not shared
// references").
type SessionState struct {
	mu sync.RWMutex

	ID       string
	Messages []llmtypes.Message

	Model    string
	Provider string

	PlanMode     bool
	PlanPhase    PlanPhase
	PlanFilePath string

	ToolExecutions []ToolExecution
	Subagents      []Subagent

	CumulativeUsage llmtypes.Usage
	ThinkingTokensUsedThisTurn int
	ConnectedMCPServers        []string
	UsingFallbackModel         bool
	Compacting                 bool

	QueuedCommands []QueuedCommand

	WorkingDir string
	TurnCount  int

	ContextWindowUsed  int
	ContextWindowTotal int
	EstimatedCostUSD   float64

	Todos []Todo
}

// NewSessionState constructs an empty session rooted at workingDir.
func NewSessionState(id, workingDir, provider, model string) *SessionState {
	return &SessionState{
		ID:         id,
		WorkingDir: workingDir,
		Provider:   provider,
		Model:      model,
		PlanPhase:  PhaseUnderstanding,
	}
}

// Snapshot is an immutable, race-free view of SessionState handed to
// readers outside the loop (the UI, logging, protocol-event payloads).
type Snapshot struct {
	ID                 string
	Messages           []llmtypes.Message
	Model, Provider    string
	PlanMode           bool
	PlanPhase          PlanPhase
	ToolExecutions     []ToolExecution
	Subagents          []Subagent
	CumulativeUsage    llmtypes.Usage
	QueuedCommands     []QueuedCommand
	TurnCount          int
	ContextWindowUsed  int
	ContextWindowTotal int
	Compacting         bool
}

// Snapshot copies the fields readers need under the read lock.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:                 s.ID,
		Messages:           append([]llmtypes.Message(nil), s.Messages...),
		Model:              s.Model,
		Provider:           s.Provider,
		PlanMode:           s.PlanMode,
		PlanPhase:          s.PlanPhase,
		ToolExecutions:     append([]ToolExecution(nil), s.ToolExecutions...),
		Subagents:          append([]Subagent(nil), s.Subagents...),
		CumulativeUsage:    s.CumulativeUsage,
		QueuedCommands:     append([]QueuedCommand(nil), s.QueuedCommands...),
		TurnCount:          s.TurnCount,
		ContextWindowUsed:  s.ContextWindowUsed,
		ContextWindowTotal: s.ContextWindowTotal,
		Compacting:         s.Compacting,
	}
}

// AppendMessage appends to the ordered message list under lock.
func (s *SessionState) AppendMessage(m llmtypes.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
}

// LastMessage returns the most recent message, if any. Callers enforce
// the invariant `last_message().role == Assistant ⇒ message is either
// streaming or has finalized content` at the call sites that finalize
// streaming (loop.go), since SessionState itself cannot observe
// in-progress streaming state.
func (s *SessionState) LastMessage() (llmtypes.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.Messages) == 0 {
		return llmtypes.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Enqueue appends a queued command received while streaming (FIFO).
func (s *SessionState) Enqueue(cmd QueuedCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueuedCommands = append(s.QueuedCommands, cmd)
}

// DrainQueue empties and returns the queued commands in FIFO order.
func (s *SessionState) DrainQueue() []QueuedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.QueuedCommands
	s.QueuedCommands = nil
	return drained
}

// QueuedLen reports the current queue depth (spec.md §8 property 9).
func (s *SessionState) QueuedLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.QueuedCommands)
}

// AddToolExecution records a newly-started tool call and trims to the
// bounded-retention policy.
func (s *SessionState) AddToolExecution(te ToolExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ToolExecutions = append(s.ToolExecutions, te)
	if len(s.ToolExecutions) > maxBoundedRetention {
		s.ToolExecutions = s.ToolExecutions[len(s.ToolExecutions)-maxBoundedRetention:]
	}
}

// UpdateToolExecution mutates an existing execution by id (status
// transitions, progress, final output).
func (s *SessionState) UpdateToolExecution(id string, fn func(*ToolExecution)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ToolExecutions {
		if s.ToolExecutions[i].ID == id {
			fn(&s.ToolExecutions[i])
			return
		}
	}
}

// AddUsage accumulates token usage across the session.
func (s *SessionState) AddUsage(u llmtypes.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CumulativeUsage.InputTokens += u.InputTokens
	s.CumulativeUsage.OutputTokens += u.OutputTokens
	s.CumulativeUsage.TotalTokens += u.TotalTokens
}

// IncrementTurn bumps the turn counter, returning the new turn number.
func (s *SessionState) IncrementTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TurnCount++
	return s.TurnCount
}

// MergeTodos returns update as the new Todos list, replacing existing
// wholesale; an empty update leaves existing unchanged. Items are not
// merged field by field.
func MergeTodos(existing, update []Todo) []Todo {
	if len(update) == 0 {
		return existing
	}
	return update
}

// SetPlanMode toggles plan mode, resetting the phase to Understanding
// when turning it on.
func (s *SessionState) SetPlanMode(on bool, planFilePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlanMode = on
	s.PlanFilePath = planFilePath
	if on {
		s.PlanPhase = PhaseUnderstanding
	}
}

// AdvancePlanPhase moves plan mode to the given phase.
func (s *SessionState) AdvancePlanPhase(p PlanPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlanPhase = p
}
