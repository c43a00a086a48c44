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
package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDeduplicatesRapidFireEventsPerPath(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a.go", "v1", "batch1")
	q.Push("a.go", "v2", "batch1")
	q.Push("b.go", "v1", "batch1")

	assert.Equal(t, 2, q.Len())

	path, te, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a.go", path)
	assert.Equal(t, "v2", te.Value) // retains the latest value
	assert.True(t, te.MergedSeqs[1])
}

// TestWatermarkMonotonicity covers spec.md §8 property 7: completing a
// higher-numbered event never lowers the watermark, and the watermark
// only advances through a contiguous completed run.
func TestWatermarkMonotonicity(t *testing.T) {
	lag := NewLagTracker()
	lag.Start(1)
	lag.Start(2)
	lag.Start(3)

	lag.Finish(2, nil) // completes out of order; watermark can't jump past 1 yet
	assert.Equal(t, uint64(0), lag.Watermark())

	lag.Finish(1, nil)
	assert.Equal(t, uint64(2), lag.Watermark())

	lag.Finish(3, nil)
	assert.Equal(t, uint64(3), lag.Watermark())

	before := lag.Watermark()
	lag.Start(4)
	lag.Finish(4, nil)
	assert.GreaterOrEqual(t, lag.Watermark(), before)
}

func TestWorkerPoolProcessesAllEventsAndAdvancesWatermark(t *testing.T) {
	q := NewQueue[int]()
	for i, path := range []string{"a.go", "b.go", "c.go"} {
		q.Push(path, i, "")
	}

	processed := make(chan string, 3)
	pool := NewWorkerPool(2, q, Handler[int](func(ctx context.Context, path string, v int) error {
		processed <- path
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case p := <-processed:
			seen[p] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for worker pool to process events")
		}
	}
	assert.Len(t, seen, 3)
	cancel()
	<-done
}
