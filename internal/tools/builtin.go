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

// RegisterBuiltins populates reg with the full built-in catalog (spec.md
// §4.3 "Built-in tools", SPEC_FULL.md §4.3 domain additions).
func RegisterBuiltins(reg *Registry) *TaskRegistry {
	tasks := NewTaskRegistry()
	reg.Register(NewBashTool(tasks))
	reg.Register(NewTaskOutputTool(tasks))
	reg.Register(NewEditTool())
	reg.Register(NewReadTool())
	reg.Register(NewWriteTool())
	reg.Register(NewGlobTool())
	reg.Register(NewGrepTool())
	reg.Register(NewLSTool())
	reg.Register(NewCodeSearchTool())
	reg.Register(NewSymbolSearchTool())
	return tasks
}
