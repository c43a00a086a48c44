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

// Package walk implements the workspace walker for C4: it emits
// candidate paths honoring ignore rules and a max-file-size bound
// (spec.md §4.4 "Walker").
package walk

import (
	"io/fs"
	"path/filepath"
	"strings"
)

var defaultIgnoreDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".venv": true,
	"__pycache__": true, "target": true, "dist": true, "build": true,
	".idea": true, ".vscode": true,
}

// Options tunes what the walker considers a candidate file.
type Options struct {
	// MaxFileSizeMB caps individual file size; files over the bound are
	// skipped. Zero selects the spec's default of 5MB.
	MaxFileSizeMB int64
	// IgnorePatterns are additional glob patterns (matched against the
	// basename and the path relative to root) to exclude.
	IgnorePatterns []string
}

// Candidate is one file the walker considers indexable.
type Candidate struct {
	AbsPath string
	RelPath string
	Size    int64
}

// Walk walks root, returning candidate files honoring ignore rules and
// the max-file-size bound.
func Walk(root string, opts Options) ([]Candidate, error) {
	maxSize := opts.MaxFileSizeMB
	if maxSize <= 0 {
		maxSize = 5
	}
	maxBytes := maxSize * 1024 * 1024

	var candidates []Candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal to the walk
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel != "." && (defaultIgnoreDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") || matchesAny(opts.IgnorePatterns, d.Name(), rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(opts.IgnorePatterns, d.Name(), rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() > maxBytes {
			return nil
		}
		candidates = append(candidates, Candidate{AbsPath: path, RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func matchesAny(patterns []string, name, rel string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
	}
	return false
}
