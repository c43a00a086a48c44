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

// Command coderunner-loop is the headless iterative-driver entry point:
// it repeats the agent loop (C2) against one query for a fixed count or
// wall-clock budget (C6), printing per-iteration progress and a final
// summary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderunner/engine/internal/loopdriver"
	"github.com/coderunner/engine/internal/wiring"
)

var (
	cfgFile       string
	workspace     string
	branch        string
	sessionID     string
	maxIterations int
	maxDuration   time.Duration
	customPrompt  string
)

var rootCmd = &cobra.Command{
	Use:   "coderunner-loop [query]",
	Short: "Run the agent loop repeatedly against one query",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoop,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.Flags().StringVar(&workspace, "workspace", "", "workspace root (defaults to cwd)")
	rootCmd.Flags().StringVar(&branch, "branch", "", "workspace branch (defaults to main)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "stop after this many iterations (0 = unbounded)")
	rootCmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "stop after this much wall-clock time (0 = unbounded)")
	rootCmd.Flags().StringVar(&customPrompt, "loop-prompt", "", `override the default "Iteration {n}..." continuation line`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runLoop(cmd *cobra.Command, args []string) error {
	if maxIterations <= 0 && maxDuration <= 0 {
		return fmt.Errorf("one of --max-iterations or --max-duration must be set")
	}

	app, err := wiring.Build(cfgFile, workspace, branch, sessionID)
	if err != nil {
		return err
	}
	defer app.Index.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	driver := &loopdriver.Driver{
		Engine:        app.Engine,
		WorkingDir:    app.Session.WorkingDir,
		MaxIterations: maxIterations,
		MaxDuration:   maxDuration,
		CustomPrompt:  customPrompt,
		Defs:          app.Defs,
		Cancelled:     func() bool { return ctx.Err() != nil },
		OnProgress: func(p loopdriver.Progress) {
			fmt.Fprintf(os.Stdout, "iteration %d: succeeded=%d failed=%d elapsed=%.1fs\n",
				p.Iteration, p.Succeeded, p.Failed, p.ElapsedSeconds)
		},
	}

	result := driver.Run(ctx, app.Session, args[0])

	fmt.Fprintf(os.Stdout, "\nattempted=%d succeeded=%d failed=%d stop_reason=%s elapsed=%.1fs\n",
		result.Attempted, result.Succeeded, result.Failed, result.StopReason, result.ElapsedSeconds)
	for _, it := range result.Iterations {
		fmt.Fprintf(os.Stdout, "  [%d] %s: %s\n", it.Iteration, it.CommitMessage, it.Summary)
	}

	if result.Failed > 0 && result.Succeeded == 0 {
		return fmt.Errorf("all %d iterations failed", result.Attempted)
	}
	return nil
}
