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

// Package services contains the business logic between the HTTP layer and
// the pipeline. The ExportService owns the in-memory batch registry: it
// validates requests, expands them into queues, runs batches in the
// background, serves consistent snapshots to status polls, and records
// settled outcomes in the history store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clip-export/internal/core/executor"
	"github.com/clipforge/clip-export/internal/core/history"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/queue"
)

var (
	// ErrBatchNotFound is returned when the batch ID is unknown.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrItemNotFound is returned when the item ID is not in the batch.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrRetryConflict is returned when a retry targets an item that is not
	// in the failed state, or a batch that is still processing.
	ErrRetryConflict = errors.New("item is not retryable in its current state")
)

// Batch status values as exposed to clients.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// BatchView is the client-facing snapshot of one batch. Item values are
// copies; mutating a view never touches live pipeline state.
type BatchView struct {
	ID        string                  `json:"id"`
	Status    string                  `json:"status"`
	Priority  model.Priority          `json:"priority,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	Error     string                  `json:"error,omitempty"`
	Summary   model.BatchSummary      `json:"summary"`
	Items     []model.ExportQueueItem `json:"items"`
}

// batch is the registry's internal record. The live items are mutated only
// on the executor's goroutine; everything readers see comes from snapshot,
// which is refreshed under mu by the executor's progress callback.
type batch struct {
	id        string
	priority  model.Priority
	createdAt time.Time

	mu       sync.RWMutex
	items    []*model.ExportQueueItem
	snapshot []model.ExportQueueItem
	summary  model.BatchSummary
	failure  string
	running  bool
	done     bool
}

// ExportService coordinates batch and single-clip exports.
type ExportService struct {
	catalog   *model.Catalog
	executor  *executor.BatchExecutor
	processor executor.ClipProcessor
	history   *history.Store

	mu      sync.RWMutex
	batches map[string]*batch
}

// NewExportService builds the service. history may be nil, in which case
// outcomes are simply not persisted.
func NewExportService(catalog *model.Catalog, exec *executor.BatchExecutor, processor executor.ClipProcessor, hist *history.Store) *ExportService {
	return &ExportService{
		catalog:   catalog,
		executor:  exec,
		processor: processor,
		history:   hist,
		batches:   make(map[string]*batch),
	}
}

// Catalog exposes the format and strategy catalog for listing endpoints.
func (s *ExportService) Catalog() *model.Catalog {
	return s.catalog
}

// StartBatch validates the request, expands it into a queue, and starts
// processing in the background. The returned view reflects the batch before
// any item has run; callers poll GetBatch for progress.
func (s *ExportService) StartBatch(ctx context.Context, req *model.BatchExportRequest) (*BatchView, error) {
	if len(req.ClipIDs) == 0 {
		return nil, &model.ValidationError{Message: "at least one clip is required"}
	}
	if len(req.Formats) == 0 {
		return nil, &model.ValidationError{Message: "at least one export format is required"}
	}
	if !req.Priority.Valid() {
		return nil, &model.ValidationError{Message: fmt.Sprintf("unknown priority %q", req.Priority)}
	}

	// Refuse up front when the encoder is missing: better a 503 on submit
	// than a batch where every item fails with the same error.
	if err := s.processor.Preflight(ctx); err != nil {
		return nil, err
	}

	items, err := queue.Generate(s.catalog, req)
	if err != nil {
		return nil, err
	}

	b := &batch{
		id:        uuid.NewString(),
		priority:  req.Priority,
		createdAt: time.Now().UTC(),
		items:     items,
	}
	b.refreshLocked()
	// A request whose platform selections intersect nothing is a valid,
	// already-finished batch, not an error.
	if len(items) == 0 {
		b.done = true
	} else {
		b.running = true
	}

	s.mu.Lock()
	s.batches[b.id] = b
	s.mu.Unlock()

	if !b.done {
		s.launch(ctx, b)
	}
	return s.viewOf(b), nil
}

// GetBatch returns the current snapshot of a batch.
func (s *ExportService) GetBatch(id string) (*BatchView, error) {
	b, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.viewOf(b), nil
}

// RetryItem re-enqueues one failed item of a settled batch and resumes
// processing. Retrying while the batch is still running, or retrying an
// item that did not fail, is a conflict.
func (s *ExportService) RetryItem(ctx context.Context, batchID string, itemID string) (*BatchView, error) {
	b, err := s.find(batchID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil, ErrRetryConflict
	}
	var target *model.ExportQueueItem
	for _, item := range b.items {
		if item.ID == itemID {
			target = item
			break
		}
	}
	if target == nil {
		b.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if target.Status != model.StatusFailed {
		b.mu.Unlock()
		return nil, ErrRetryConflict
	}
	if err := s.executor.Retry(target); err != nil {
		b.mu.Unlock()
		return nil, ErrRetryConflict
	}
	b.done = false
	b.failure = ""
	// Marked running in the same critical section as the running check, so a
	// concurrent retry observes the resumed batch and conflicts instead of
	// starting a second run over the same items.
	b.running = true
	b.refreshLocked()
	b.mu.Unlock()

	s.launch(ctx, b)
	return s.viewOf(b), nil
}

// ExportClip processes a single clip synchronously, one result per requested
// target. Used by the one-click export path where the caller waits for the
// URLs. Per-target failures land in their result entries; only request-level
// problems (no targets, unknown strategy, missing encoder) are errors.
func (s *ExportService) ExportClip(ctx context.Context, clipID int64, req *model.SingleExportRequest) ([]model.SingleExportResult, error) {
	if len(req.Formats) == 0 {
		return nil, &model.ValidationError{Message: "at least one export format is required"}
	}
	strategy, err := s.catalog.Strategy(req.CroppingStrategy)
	if err != nil {
		return nil, &model.ValidationError{Message: err.Error()}
	}
	if err := s.processor.Preflight(ctx); err != nil {
		return nil, err
	}

	results := make([]model.SingleExportResult, 0, len(req.Formats))
	for _, target := range req.Formats {
		results = append(results, s.exportTarget(ctx, clipID, target, strategy))
	}
	return results, nil
}

// exportTarget runs one (format, platform) target of a synchronous export.
func (s *ExportService) exportTarget(ctx context.Context, clipID int64, target model.FormatTarget, strategy *model.CroppingStrategy) model.SingleExportResult {
	out := model.SingleExportResult{Format: target.Format, Platform: target.Platform}

	format, err := s.catalog.Format(target.Format)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if out.Platform == "" && len(format.Platforms) > 0 {
		out.Platform = format.Platforms[0]
	}

	item := &model.ExportQueueItem{
		ID:               uuid.NewString(),
		ClipID:           clipID,
		Format:           format.ID,
		Platform:         out.Platform,
		CroppingStrategy: strategy.ID,
		Status:           model.StatusPending,
	}

	result, err := s.processor.Process(ctx, item, nil)
	if err != nil {
		item.Status = model.StatusFailed
		item.Error = err.Error()
		s.recordOutcome("", item, err)
		out.Error = err.Error()
		return out
	}
	item.Status = model.StatusCompleted
	item.Result = result
	s.recordOutcome("", item, nil)

	out.Success = true
	out.URL = result.URL
	out.ThumbnailURL = result.ThumbnailURL
	return out
}

// launch starts a batch run on its own goroutine. The caller has already
// marked the batch running inside its own critical section. The run outlives
// the originating HTTP request, so the request's cancellation is stripped
// while its trace context is kept.
func (s *ExportService) launch(ctx context.Context, b *batch) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		err := s.executor.Run(runCtx, b.items, func(items []*model.ExportQueueItem, summary model.BatchSummary) {
			b.mu.Lock()
			b.summary = summary
			b.refreshLocked()
			b.mu.Unlock()
		})

		b.mu.Lock()
		b.running = false
		b.done = true
		if err != nil {
			b.failure = err.Error()
			slog.Error("batch export failed", "batch_id", b.id, "error", err)
		}
		b.refreshLocked()
		settled := make([]model.ExportQueueItem, len(b.snapshot))
		copy(settled, b.snapshot)
		b.mu.Unlock()

		for i := range settled {
			if settled[i].Settled() {
				s.recordOutcome(b.id, &settled[i], nil)
			}
		}
	}()
}

// recordOutcome persists one settled item to the history store when one is
// configured. History failures are logged, never surfaced: losing a history
// row must not fail an export that already succeeded.
func (s *ExportService) recordOutcome(batchID string, item *model.ExportQueueItem, processErr error) {
	if s.history == nil {
		return
	}
	rec := &history.Record{
		ItemID:     item.ID,
		BatchID:    batchID,
		ClipID:     item.ClipID,
		Format:     item.Format,
		Platform:   item.Platform,
		Status:     item.Status,
		Error:      item.Error,
		RetryCount: item.RetryCount,
	}
	if processErr != nil {
		rec.Status = model.StatusFailed
		rec.Error = processErr.Error()
	}
	if item.Result != nil {
		rec.ResultURL = item.Result.URL
		rec.StorageKey = item.Result.StorageKey
	}
	if err := s.history.Record(rec); err != nil {
		slog.Warn("failed to record export history", "item_id", item.ID, "error", err)
	}
}

// find looks a batch up by ID.
func (s *ExportService) find(id string) (*batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

// viewOf assembles the client-facing snapshot under the batch's read lock.
func (s *ExportService) viewOf(b *batch) *BatchView {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := BatchProcessing
	switch {
	case b.failure != "":
		status = BatchFailed
	case b.done:
		status = BatchCompleted
	}

	items := make([]model.ExportQueueItem, len(b.snapshot))
	copy(items, b.snapshot)
	return &BatchView{
		ID:        b.id,
		Status:    status,
		Priority:  b.priority,
		CreatedAt: b.createdAt,
		Error:     b.failure,
		Summary:   b.summary,
		Items:     items,
	}
}

// refreshLocked rebuilds the snapshot and summary from the live items. The
// caller must hold b.mu.
func (b *batch) refreshLocked() {
	b.snapshot = b.snapshot[:0]
	for _, item := range b.items {
		b.snapshot = append(b.snapshot, *item)
	}
	b.summary = model.Summarize(b.items)
}
