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

// Command coderunner is the interactive TUI entry point: it drives the
// agent loop (C2) against the tool registry (C3) and retrieval index
// (C4) through the bubbletea state machine (C5).
package main

import (
	"context"
	"fmt"
	"os"

	"charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/coderunner/engine/internal/index/walk"
	"github.com/coderunner/engine/internal/tui"
	"github.com/coderunner/engine/internal/wiring"
)

var (
	cfgFile   string
	workspace string
	branch    string
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:     "coderunner",
	Short:   "Interactive coding assistant",
	Version: "0.1.0",
	RunE:    runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace root (defaults to cwd)")
	rootCmd.PersistentFlags().StringVar(&branch, "branch", "", "workspace branch (defaults to main)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "resume an existing session id")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	app, err := wiring.Build(cfgFile, workspace, branch, sessionID)
	if err != nil {
		return err
	}
	defer app.Index.Close()

	go func() {
		_ = app.Index.Watch(context.Background(), app.Session.WorkingDir, walk.Options{})
	}()

	candidates := &wiring.FileCandidates{
		Workspace: app.Session.WorkingDir,
		SymbolSearch: func(ctx context.Context, query string) []string {
			hits, err := app.Index.SymbolSearch(ctx, query, 0)
			if err != nil {
				return nil
			}
			names := make([]string, 0, len(hits))
			for _, h := range hits {
				names = append(names, h.FilePath)
			}
			return names
		},
	}

	model := tui.New(app.Engine, app.Session, app.Defs, nil, candidates)
	app.Engine.Executor.Approve = model.ApprovalCallback

	p := tea.NewProgram(model, tea.WithEnvironment(os.Environ()))
	model.Attach(p)

	_, err = p.Run()
	return err
}
