// Copyright 2025 Clipforge, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clip-export/internal/core/executor"
	"github.com/clipforge/clip-export/internal/core/model"
)

// stubProcessor completes items after a short delay and tracks how many run
// at once, so tests can assert the chunk-size concurrency cap.
type stubProcessor struct {
	mu           sync.Mutex
	active       int
	maxActive    int
	processed    []string
	preflights   int
	preflightErr error
	failing      map[string]error
	delay        time.Duration
}

func (p *stubProcessor) Preflight(context.Context) error {
	p.mu.Lock()
	p.preflights++
	p.mu.Unlock()
	return p.preflightErr
}

func (p *stubProcessor) Process(_ context.Context, item *model.ExportQueueItem, progress func(int)) (*model.ProcessClipResult, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()

	if progress != nil {
		progress(50)
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	p.active--
	p.processed = append(p.processed, item.ID)
	failure := p.failing[item.ID]
	p.mu.Unlock()

	if failure != nil {
		return nil, failure
	}
	return &model.ProcessClipResult{
		URL:        "https://storage.test/exports/" + item.ID + ".mp4",
		StorageKey: "exports/" + item.ID + ".mp4",
	}, nil
}

func makeQueue(n int) []*model.ExportQueueItem {
	items := make([]*model.ExportQueueItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &model.ExportQueueItem{
			ID:       fmt.Sprintf("item-%d", i),
			ClipID:   int64(i),
			Format:   "vertical",
			Platform: "tiktok",
			Status:   model.StatusPending,
		})
	}
	return items
}

func TestRunProcessesAllWithinChunkLimit(t *testing.T) {
	processor := &stubProcessor{delay: 20 * time.Millisecond}
	exec := executor.NewBatchExecutor("batch_executor", processor, 3)
	items := makeQueue(7)

	var summaries []model.BatchSummary
	err := exec.Run(context.Background(), items, func(_ []*model.ExportQueueItem, summary model.BatchSummary) {
		summaries = append(summaries, summary)
	})
	require.NoError(t, err)

	for _, item := range items {
		assert.Equal(t, model.StatusCompleted, item.Status, item.ID)
		assert.Equal(t, 100, item.Progress)
		require.NotNil(t, item.Result, item.ID)
		assert.Equal(t, "exports/"+item.ID+".mp4", item.Result.StorageKey)
		require.NotNil(t, item.StartedAt)
		require.NotNil(t, item.CompletedAt)
		assert.False(t, item.CompletedAt.Before(*item.StartedAt))
	}

	assert.LessOrEqual(t, processor.maxActive, 3)
	assert.Len(t, processor.processed, 7)

	require.NotEmpty(t, summaries)
	final := summaries[len(summaries)-1]
	assert.Equal(t, 7, final.Total)
	assert.Equal(t, 7, final.Completed)
	assert.Equal(t, 0, final.Failed)
}

func TestRunRecordsItemFailures(t *testing.T) {
	boom := errors.New("encoder fell over")
	processor := &stubProcessor{failing: map[string]error{"item-1": boom}}
	exec := executor.NewBatchExecutor("batch_executor", processor, 2)
	items := makeQueue(3)

	require.NoError(t, exec.Run(context.Background(), items, nil))

	assert.Equal(t, model.StatusFailed, items[1].Status)
	assert.Equal(t, boom.Error(), items[1].Error)
	assert.Nil(t, items[1].Result)

	assert.Equal(t, model.StatusCompleted, items[0].Status)
	assert.Equal(t, model.StatusCompleted, items[2].Status)

	summary := model.Summarize(items)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunEmptyQueueIsANoOp(t *testing.T) {
	processor := &stubProcessor{}
	exec := executor.NewBatchExecutor("batch_executor", processor, 3)

	require.NoError(t, exec.Run(context.Background(), nil, nil))
	assert.Zero(t, processor.preflights)
}

func TestRunRefusesWhenPreflightFails(t *testing.T) {
	refusal := errors.New("encoder binary missing")
	processor := &stubProcessor{preflightErr: refusal}
	exec := executor.NewBatchExecutor("batch_executor", processor, 3)
	items := makeQueue(2)

	err := exec.Run(context.Background(), items, nil)
	require.ErrorIs(t, err, refusal)

	// Nothing was attempted.
	assert.Empty(t, processor.processed)
	for _, item := range items {
		assert.Equal(t, model.StatusPending, item.Status)
	}
}

func TestRunSkipsSettledItems(t *testing.T) {
	processor := &stubProcessor{}
	exec := executor.NewBatchExecutor("batch_executor", processor, 3)
	items := makeQueue(3)
	items[0].Status = model.StatusCompleted
	items[2].Status = model.StatusFailed

	require.NoError(t, exec.Run(context.Background(), items, nil))

	require.Len(t, processor.processed, 1)
	assert.Equal(t, "item-1", processor.processed[0])
	// Settled items keep their prior state.
	assert.Equal(t, model.StatusCompleted, items[0].Status)
	assert.Equal(t, model.StatusFailed, items[2].Status)
}

func TestRetryResetsFailedItem(t *testing.T) {
	exec := executor.NewBatchExecutor("batch_executor", &stubProcessor{}, 3)
	started := time.Now()
	item := &model.ExportQueueItem{
		ID:          "item-0",
		Status:      model.StatusFailed,
		Error:       "network blip",
		Progress:    40,
		StartedAt:   &started,
		CompletedAt: &started,
	}

	require.NoError(t, exec.Retry(item))
	assert.Equal(t, model.StatusPending, item.Status)
	assert.Equal(t, 1, item.RetryCount)
	assert.Empty(t, item.Error)
	assert.Nil(t, item.Result)
	assert.Zero(t, item.Progress)
	assert.Nil(t, item.StartedAt)
	assert.Nil(t, item.CompletedAt)
}

func TestRetryRejectsUnfailedItems(t *testing.T) {
	exec := executor.NewBatchExecutor("batch_executor", &stubProcessor{}, 3)

	for _, status := range []model.ItemStatus{model.StatusPending, model.StatusProcessing, model.StatusCompleted} {
		item := &model.ExportQueueItem{ID: "item-0", Status: status}
		err := exec.Retry(item)
		require.Error(t, err, string(status))
		assert.Equal(t, status, item.Status)
		assert.Zero(t, item.RetryCount)
	}
}

func TestRetriedItemRunsAgain(t *testing.T) {
	boom := errors.New("transient failure")
	processor := &stubProcessor{failing: map[string]error{"item-0": boom}}
	exec := executor.NewBatchExecutor("batch_executor", processor, 1)
	items := makeQueue(1)

	require.NoError(t, exec.Run(context.Background(), items, nil))
	require.Equal(t, model.StatusFailed, items[0].Status)

	processor.mu.Lock()
	delete(processor.failing, "item-0")
	processor.mu.Unlock()

	require.NoError(t, exec.Retry(items[0]))
	require.NoError(t, exec.Run(context.Background(), items, nil))

	assert.Equal(t, model.StatusCompleted, items[0].Status)
	assert.Equal(t, 1, items[0].RetryCount)
	// Same item ID, same storage key: the retry overwrote the first attempt.
	assert.Equal(t, "exports/item-0.mp4", items[0].Result.StorageKey)
}
