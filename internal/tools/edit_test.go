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
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEditFreshness exercises spec.md §8 property 4: Edit.execute
// succeeds only if the normalized SHA-256 of the current file matches
// the hash recorded at read time.
func TestEditFreshness(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foo.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	tracker := NewFileTracker()
	editTool := NewEditTool()
	ectx := &ExecContext{WorkingDir: dir, FileTracker: tracker}

	input, _ := json.Marshal(EditParams{FilePath: path, OldString: "hello", NewString: "hi"})

	// Scenario S3: no prior read recorded → ExecutionFailed.
	out, err := editTool.Execute(context.Background(), input, ectx)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "must be read before editing")

	// After recording a matching read, the edit succeeds.
	tracker.RecordRead(path, "hello world")
	out, err = editTool.Execute(context.Background(), input, ectx)
	require.NoError(t, err)
	assert.False(t, out.IsError)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "hi world", string(data))

	// External modification after the recorded read invalidates freshness.
	tracker.RecordRead(path, "hello world")
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	out, err = editTool.Execute(context.Background(), input, ectx)
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestEditOldStringEqualsNewStringIsInvalidInput(t *testing.T) {
	editTool := NewEditTool()
	input, _ := json.Marshal(EditParams{FilePath: "x", OldString: "a", NewString: "a"})
	_, err := editTool.Execute(context.Background(), input, &ExecContext{})
	var invalid *InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestEditCreateFileOnEmptyOldString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "new.txt")
	editTool := NewEditTool()
	tracker := NewFileTracker()
	input, _ := json.Marshal(EditParams{FilePath: path, OldString: "", NewString: "content\n"})
	out, err := editTool.Execute(context.Background(), input, &ExecContext{FileTracker: tracker})
	require.NoError(t, err)
	assert.False(t, out.IsError)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(data))
}

func TestEditCreateFileRefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	editTool := NewEditTool()
	input, _ := json.Marshal(EditParams{FilePath: path, OldString: "", NewString: "y"})
	out, err := editTool.Execute(context.Background(), input, &ExecContext{})
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestApplyReplaceFlexibleWhitespace(t *testing.T) {
	content := "func foo() {\n    return 1\n}\n"
	out, err := applyReplace(content, "func foo() {\n\treturn 1\n}", "func foo() {\n    return 2\n}", false)
	require.NoError(t, err)
	assert.Contains(t, out, "return 2")
}

func TestApplyReplaceAllUsesOneStrategyConsistently(t *testing.T) {
	content := "aXb aXb"
	out, err := applyReplace(content, "aXb", "Y", true)
	require.NoError(t, err)
	assert.Equal(t, "Y Y", out)
}
