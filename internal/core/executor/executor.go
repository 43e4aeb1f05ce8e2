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

// Package executor drives a batch of export queue items through the clip
// processor in fixed-size chunks. Items inside a chunk run concurrently;
// chunk N+1 does not start until every item in chunk N has settled, which
// caps encoder processes and memory at the chunk size no matter how large
// the batch is.
//
// All queue-item mutation happens on the executor's own goroutine: worker
// goroutines report progress and results over channels and never touch the
// items directly. Callers observe state exclusively through the progress
// callback, which runs on that same goroutine.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
)

// DefaultChunkSize is the number of items processed concurrently. Three
// concurrent encodes saturate a typical worker VM without starving it of
// file descriptors or RAM.
const DefaultChunkSize = 3

// ClipProcessor is what the executor needs from the extraction worker. It is
// deliberately narrow so tests can drive the executor with a stub.
type ClipProcessor interface {
	// Preflight reports whether processing can start at all. An error fails
	// the batch before any item is attempted.
	Preflight(ctx context.Context) error
	// Process runs one item to completion and returns its durable result.
	// The progress callback may be invoked from the processor's goroutine.
	Process(ctx context.Context, item *model.ExportQueueItem, progress func(percent int)) (*model.ProcessClipResult, error)
}

// ProgressFunc observes the queue after every state change: item started,
// progress advanced, item settled, chunk finished. It is called on the
// executor's goroutine with the live item slice; implementations that retain
// state must copy, not alias.
type ProgressFunc func(items []*model.ExportQueueItem, summary model.BatchSummary)

// itemResult carries one processed item's outcome back across the worker
// channel. Matching is by item ID, never by slice position.
type itemResult struct {
	itemID string
	result *model.ProcessClipResult
	err    error
}

// progressUpdate is a coarse percentage report from an in-flight item.
type progressUpdate struct {
	itemID  string
	percent int
}

// BatchExecutor runs export queues. One executor is shared by all batches;
// per-batch state lives entirely in the item slice passed to Run.
type BatchExecutor struct {
	cor.BaseCommand
	processor ClipProcessor
	chunkSize int
}

// NewBatchExecutor creates an executor over the given processor. chunkSize
// values below one fall back to DefaultChunkSize.
func NewBatchExecutor(name string, processor ClipProcessor, chunkSize int) *BatchExecutor {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &BatchExecutor{
		BaseCommand: *cor.NewBaseCommand(name),
		processor:   processor,
		chunkSize:   chunkSize,
	}
}

// Run processes every pending item in the queue, mutating the items in place
// as they move through their lifecycle. It returns an error only for
// batch-level refusals (failed preflight, cancelled context); individual
// item failures are recorded on the items themselves.
//
// Items are only ever updated by ID lookup, so a queue that was reordered
// between waves still gets its updates applied to the right items. An empty
// queue is a successful no-op.
func (e *BatchExecutor) Run(ctx context.Context, items []*model.ExportQueueItem, progress ProgressFunc) error {
	if len(items) == 0 {
		return nil
	}
	if err := e.processor.Preflight(ctx); err != nil {
		e.GetErrorCounter().Add(ctx, 1)
		return err
	}

	byID := make(map[string]*model.ExportQueueItem, len(items))
	var pending []*model.ExportQueueItem
	for _, item := range items {
		byID[item.ID] = item
		if item.Status == model.StatusPending {
			pending = append(pending, item)
		}
	}

	notify := func() {
		if progress != nil {
			progress(items, model.Summarize(items))
		}
	}

	for start := 0; start < len(pending); start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + e.chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		e.runChunk(ctx, pending[start:end], byID, notify)
		notify()
	}

	e.GetSuccessCounter().Add(ctx, 1)
	return nil
}

// runChunk fans the chunk's items out to one goroutine each and collects
// progress and results until every item has settled. The collection loop is
// the only writer of item state.
func (e *BatchExecutor) runChunk(ctx context.Context, chunk []*model.ExportQueueItem, byID map[string]*model.ExportQueueItem, notify func()) {
	results := make(chan itemResult, len(chunk))
	updates := make(chan progressUpdate, len(chunk)*8)

	for _, item := range chunk {
		now := time.Now()
		item.Status = model.StatusProcessing
		item.StartedAt = &now
		item.Progress = 0

		go func(item *model.ExportQueueItem) {
			result, err := e.processor.Process(ctx, item, func(percent int) {
				// Dropped updates are fine: progress is coarse and the next
				// stage boundary will report again. Blocking the encoder on
				// a slow observer is not fine.
				select {
				case updates <- progressUpdate{itemID: item.ID, percent: percent}:
				default:
				}
			})
			results <- itemResult{itemID: item.ID, result: result, err: err}
		}(item)
	}
	notify()

	for settled := 0; settled < len(chunk); {
		select {
		case u := <-updates:
			if item, ok := byID[u.itemID]; ok {
				item.Progress = u.percent
				notify()
			}
		case res := <-results:
			e.settle(res, byID)
			settled++
			notify()
		}
	}

	// Late updates from items that reported just before settling.
	for {
		select {
		case u := <-updates:
			if item, ok := byID[u.itemID]; ok && !item.Settled() {
				item.Progress = u.percent
			}
		default:
			return
		}
	}
}

// settle applies one item's final outcome.
func (e *BatchExecutor) settle(res itemResult, byID map[string]*model.ExportQueueItem) {
	item, ok := byID[res.itemID]
	if !ok {
		slog.Warn("dropping result for unknown queue item", "item_id", res.itemID)
		return
	}
	now := time.Now()
	item.CompletedAt = &now
	if res.err != nil {
		item.Status = model.StatusFailed
		item.Error = res.err.Error()
		slog.Error("export item failed",
			"item_id", item.ID,
			"clip_id", item.ClipID,
			"format", item.Format,
			"platform", item.Platform,
			"error", res.err)
		return
	}
	item.Status = model.StatusCompleted
	item.Progress = 100
	item.Result = res.result
}

// Retry re-enqueues a failed item: status back to pending, retry count up,
// previous error and timestamps cleared. The item keeps its ID, so the next
// run uploads to the same storage keys and overwrites any partial artifacts
// from the failed attempt.
func (e *BatchExecutor) Retry(item *model.ExportQueueItem) error {
	if item.Status != model.StatusFailed {
		return fmt.Errorf("item %s is %s, only failed items can be retried", item.ID, item.Status)
	}
	item.Status = model.StatusPending
	item.RetryCount++
	item.Error = ""
	item.Result = nil
	item.Progress = 0
	item.StartedAt = nil
	item.CompletedAt = nil
	return nil
}
