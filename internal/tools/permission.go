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
package tools

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/coderunner/engine/internal/pubsub"
)

// PermissionResultKind tags the PermissionResult variant (spec.md §4.3).
type PermissionResultKind int

const (
	Allowed PermissionResultKind = iota
	Denied
	NeedsApproval
	Passthrough
)

// Severity grades the risk carried by a NeedsApproval result.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Risk is one concrete concern surfaced with a NeedsApproval result.
type Risk struct {
	Description string
	Severity    Severity
}

// ApprovalRequest is the payload a NeedsApproval PermissionResult carries
// into the UI's overlay (spec.md §4.3 "Approval lifecycle").
type ApprovalRequest struct {
	RequestID            string
	ToolName             string
	Description          string
	Risks                []Risk
	AllowRemember        bool
	ProposedPrefixPattern string
}

// PermissionResult is the outcome of check_permission or the rule
// evaluator: exactly one of the four variants is populated.
type PermissionResult struct {
	Kind    PermissionResultKind
	Reason  string
	Request ApprovalRequest
}

func ResultAllowed() PermissionResult          { return PermissionResult{Kind: Allowed} }
func ResultDenied(reason string) PermissionResult {
	return PermissionResult{Kind: Denied, Reason: reason}
}
func ResultNeedsApproval(req ApprovalRequest) PermissionResult {
	return PermissionResult{Kind: NeedsApproval, Request: req}
}
func ResultPassthrough() PermissionResult { return PermissionResult{Kind: Passthrough} }

// RuleAction is what a permission rule resolves to.
type RuleAction int

const (
	ActionAllow RuleAction = iota
	ActionDeny
	ActionAsk
)

// RuleSource is the provenance of a rule; higher values win ties.
type RuleSource int

const (
	SourceUser RuleSource = iota
	SourceLocal
	SourceProject
	SourcePolicy
	SourceSession
)

// Rule is one entry in the permission-rule evaluator (spec.md §4.3
// "Permission-rule evaluator").
type Rule struct {
	Source      RuleSource
	ToolPattern string
	FilePattern string
	Action      RuleAction
}

// Decision names the user's (or ApproveAll's) resolution of an approval
// prompt.
type Decision int

const (
	Approve Decision = iota
	ApproveAll
	Deny
	Cancel
)

// Notification is published when an approval request resolves, matching
// the teacher's pubsub.Event[T] notification pattern.
type Notification struct {
	ToolCallID string
	Granted    bool
}

// Evaluator implements the Session > Policy > Project > Local > User
// permission-rule precedence, with Deny beating Allow within a tied
// source and Ask deferring to the tool's own check_permission.
type Evaluator struct {
	mu    sync.RWMutex
	rules []Rule

	broker       *notificationBroker
	skip         bool
	sessionAllow map[string]bool // session-scoped ApproveAll grants, by tool name
}

// notificationBroker fans approval notifications out to subscribers using
// the teacher's pubsub.Event[T] envelope; a dedicated broadcaster is used
// instead of growing pubsub's own surface beyond its generic Event[T].
type notificationBroker struct {
	mu   sync.Mutex
	subs []chan pubsub.Event[Notification]
}

func newNotificationBroker() *notificationBroker {
	return &notificationBroker{}
}

func (b *notificationBroker) Subscribe() <-chan pubsub.Event[Notification] {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan pubsub.Event[Notification], 16)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *notificationBroker) Publish(evt pubsub.Event[Notification]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// NewEvaluator constructs an evaluator seeded with the given rules.
func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{
		rules:        append([]Rule(nil), rules...),
		sessionAllow: make(map[string]bool),
		broker:       newNotificationBroker(),
	}
}

// Resolve applies a user (or overlay) Decision to a pending approval
// request, recording durable Session-scoped rules for Approve/ApproveAll
// and publishing the outcome notification.
func (e *Evaluator) Resolve(toolCallID, toolName, filePattern string, d Decision) bool {
	granted := d == Approve || d == ApproveAll
	switch d {
	case Approve:
		e.AddRule(Rule{Source: SourceSession, ToolPattern: toolName, FilePattern: filePattern, Action: ActionAllow})
	case ApproveAll:
		e.AddRule(Rule{Source: SourceSession, ToolPattern: toolName, Action: ActionAllow})
	}
	e.broker.Publish(pubsub.NewUpdatedEvent(Notification{ToolCallID: toolCallID, Granted: granted}))
	return granted
}

// Subscribe returns a channel of approval-resolution notifications.
func (e *Evaluator) Subscribe() <-chan pubsub.Event[Notification] {
	return e.broker.Subscribe()
}

// AddRule appends a rule at runtime (e.g. an Approve/ApproveAll decision
// turned into a durable Session-scoped Allow rule).
func (e *Evaluator) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
}

// SetSkipRequests toggles YOLO mode: every Ask/NeedsApproval collapses to
// Allowed without prompting.
func (e *Evaluator) SetSkipRequests(skip bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.skip = skip
}

func (e *Evaluator) SkipRequests() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.skip
}

// Evaluate finds the highest-priority matching rule for (toolName, path)
// and returns its action, or ActionAsk with ok=false if no rule matches
// (the tool's own check_permission then governs, i.e. Passthrough).
func (e *Evaluator) Evaluate(toolName, path string) (RuleAction, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var best *Rule
	for i := range e.rules {
		r := &e.rules[i]
		if !matchToolPattern(r.ToolPattern, toolName) {
			continue
		}
		if r.FilePattern != "" && !matchFilePattern(r.FilePattern, path) {
			continue
		}
		if best == nil || r.Source > best.Source ||
			(r.Source == best.Source && r.Action == ActionDeny && best.Action != ActionDeny) {
			best = r
		}
	}
	if best == nil {
		return ActionAsk, false
	}
	return best.Action, true
}

func matchToolPattern(pattern, toolName string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}
	if pattern == toolName {
		return true
	}
	// Bash:<cmd-pattern> or Bash(<cmd-pattern>) restrict to the bash tool
	// and additionally constrain the command; they match only a toolName
	// that carries the command ("bash:git status"). Executor.authorize
	// evaluates rules under the plain tool name ("bash"), so these
	// patterns never match calls dispatched through the executor.
	if strings.HasPrefix(pattern, "Bash:") || strings.HasPrefix(pattern, "Bash(") {
		cmdPattern := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(pattern, "Bash:"), "Bash("), ")")
		if !strings.HasPrefix(toolName, "bash:") {
			return false
		}
		cmd := strings.TrimPrefix(toolName, "bash:")
		return globMatch(cmdPattern, cmd)
	}
	return globMatch(pattern, toolName)
}

func matchFilePattern(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	if strings.Contains(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if globMatch(suffix, filepath.Base(path)) {
			return true
		}
	}
	if ok, err := filepath.Match(pattern, path); err == nil && ok {
		return true
	}
	if ok, err := filepath.Match(pattern, filepath.Base(path)); err == nil && ok {
		return true
	}
	// last-resort substring fallback
	return strings.Contains(path, pattern)
}

func globMatch(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if ok, err := filepath.Match(pattern, s); err == nil && ok {
		return true
	}
	return pattern == s
}
