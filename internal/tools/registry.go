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
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Registry is the name-keyed catalog the executor dispatches through.
// Tools never inherit from tools (spec.md §9 "Runtime-dispatched tools");
// the registry is a flat table.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, overwriting any prior registration under the same
// name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, for building the provider-facing
// tool-definition list.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ValidateInput checks a raw input payload against a tool's declared
// JSON schema (spec.md SPEC_FULL §4.3 supplement), returning an
// InvalidInput-classified error on mismatch.
func ValidateInput(t Tool, input []byte) error {
	schema := t.InputSchema()
	if len(schema) == 0 {
		return nil
	}
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(input)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("invalid_input: schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &InvalidInputError{Messages: msgs}
	}
	return nil
}

// InvalidInputError reports a schema-validation failure, matching the
// Tool error-taxonomy category (spec.md §7).
type InvalidInputError struct {
	Messages []string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid_input: %v", e.Messages)
}
