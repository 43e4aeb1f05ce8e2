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

package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clip-export/internal/core/executor"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/services"
)

// instantProcessor settles items immediately. Failures are keyed by clip and
// format so a retry can be made to succeed by clearing the entry.
type instantProcessor struct {
	mu           sync.Mutex
	failing      map[string]error
	preflightErr error
	processed    int
	gate         chan struct{}
}

func failureKey(item *model.ExportQueueItem) string {
	return item.Format + "/" + item.Platform
}

func (p *instantProcessor) Preflight(context.Context) error {
	return p.preflightErr
}

func (p *instantProcessor) Process(_ context.Context, item *model.ExportQueueItem, progress func(int)) (*model.ProcessClipResult, error) {
	p.mu.Lock()
	p.processed++
	failure := p.failing[failureKey(item)]
	gate := p.gate
	p.mu.Unlock()

	if progress != nil {
		progress(50)
	}
	if failure != nil {
		return nil, failure
	}
	if gate != nil {
		<-gate
	}
	return &model.ProcessClipResult{
		URL:        "https://storage.test/exports/" + item.ID + ".mp4",
		StorageKey: "exports/" + item.ID + ".mp4",
	}, nil
}

func (p *instantProcessor) clearFailure(key string) {
	p.mu.Lock()
	delete(p.failing, key)
	p.mu.Unlock()
}

// setGate makes successful Process calls block until the channel is closed.
func (p *instantProcessor) setGate(gate chan struct{}) {
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
}

func newService(processor *instantProcessor) *services.ExportService {
	catalog := model.NewCatalog()
	exec := executor.NewBatchExecutor("batch_executor", processor, 2)
	return services.NewExportService(catalog, exec, processor, nil)
}

func waitSettled(t *testing.T, svc *services.ExportService, batchID string) *services.BatchView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		view, err := svc.GetBatch(batchID)
		require.NoError(t, err)
		if view.Status != services.BatchProcessing {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch did not settle in time")
	return nil
}

func batchRequest() *model.BatchExportRequest {
	return &model.BatchExportRequest{
		ClipIDs: []int64{1, 2},
		Formats: []model.FormatSelection{
			{Format: "vertical", Platforms: []string{"tiktok"}},
			{Format: "landscape", Platforms: []string{"youtube"}},
		},
		CroppingStrategy: "centered",
	}
}

func TestStartBatchRunsToCompletion(t *testing.T) {
	processor := &instantProcessor{}
	svc := newService(processor)

	view, err := svc.StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	require.NotEmpty(t, view.ID)
	require.Len(t, view.Items, 4)

	final := waitSettled(t, svc, view.ID)
	assert.Equal(t, services.BatchCompleted, final.Status)
	assert.Equal(t, 4, final.Summary.Completed)
	assert.Equal(t, 0, final.Summary.Failed)
	for _, item := range final.Items {
		assert.Equal(t, model.StatusCompleted, item.Status)
		require.NotNil(t, item.Result)
		assert.Equal(t, "https://storage.test/exports/"+item.ID+".mp4", item.Result.URL)
	}
}

func TestStartBatchValidation(t *testing.T) {
	svc := newService(&instantProcessor{})
	var validationErr *model.ValidationError

	_, err := svc.StartBatch(context.Background(), &model.BatchExportRequest{
		Formats:          []model.FormatSelection{{Format: "vertical"}},
		CroppingStrategy: "centered",
	})
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.StartBatch(context.Background(), &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		CroppingStrategy: "centered",
	})
	require.ErrorAs(t, err, &validationErr)

	req := batchRequest()
	req.Priority = model.Priority("urgent")
	_, err = svc.StartBatch(context.Background(), req)
	require.ErrorAs(t, err, &validationErr)

	req = batchRequest()
	req.CroppingStrategy = "magic"
	_, err = svc.StartBatch(context.Background(), req)
	require.ErrorAs(t, err, &validationErr)
}

func TestStartBatchRejectsEmptyPlatformSelection(t *testing.T) {
	svc := newService(&instantProcessor{})

	// Neither a batch-level platform list nor one on the format selection:
	// the request must be rejected instead of fanning out to every platform
	// the format supports.
	_, err := svc.StartBatch(context.Background(), &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		Formats:          []model.FormatSelection{{Format: "vertical"}},
		CroppingStrategy: "centered",
	})
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestStartBatchSurfacesPreflightRefusal(t *testing.T) {
	refusal := &model.EncoderUnavailableError{Path: "/usr/bin/ffmpeg"}
	svc := newService(&instantProcessor{preflightErr: refusal})

	_, err := svc.StartBatch(context.Background(), batchRequest())
	var encErr *model.EncoderUnavailableError
	require.ErrorAs(t, err, &encErr)
}

func TestStartBatchEmptyIntersectionCompletesImmediately(t *testing.T) {
	svc := newService(&instantProcessor{})
	req := &model.BatchExportRequest{
		ClipIDs: []int64{1},
		Formats: []model.FormatSelection{{Format: "vertical"}},
		// No vertical format supports linkedin.
		Platforms:        []string{"linkedin"},
		CroppingStrategy: "centered",
	}

	view, err := svc.StartBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, services.BatchCompleted, view.Status)
	assert.Empty(t, view.Items)
}

func TestGetBatchUnknownID(t *testing.T) {
	svc := newService(&instantProcessor{})
	_, err := svc.GetBatch("no-such-batch")
	assert.ErrorIs(t, err, services.ErrBatchNotFound)
}

func TestRetryItemRecoversFailure(t *testing.T) {
	processor := &instantProcessor{failing: map[string]error{
		"vertical/tiktok": &model.ExtractionError{Stderr: "transient encoder failure"},
	}}
	svc := newService(processor)

	view, err := svc.StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	settled := waitSettled(t, svc, view.ID)
	require.Equal(t, 2, settled.Summary.Failed)

	var failedID string
	for _, item := range settled.Items {
		if item.Status == model.StatusFailed {
			failedID = item.ID
			break
		}
	}
	require.NotEmpty(t, failedID)

	processor.clearFailure("vertical/tiktok")
	_, err = svc.RetryItem(context.Background(), view.ID, failedID)
	require.NoError(t, err)

	final := waitSettled(t, svc, view.ID)
	for _, item := range final.Items {
		if item.ID == failedID {
			assert.Equal(t, model.StatusCompleted, item.Status)
			assert.Equal(t, 1, item.RetryCount)
		}
	}
	// The other tiktok failure was not retried and is still failed.
	assert.Equal(t, 1, final.Summary.Failed)
}

func TestRetryItemConflicts(t *testing.T) {
	processor := &instantProcessor{}
	svc := newService(processor)

	view, err := svc.StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	settled := waitSettled(t, svc, view.ID)
	require.Equal(t, services.BatchCompleted, settled.Status)

	// Completed items cannot be retried.
	_, err = svc.RetryItem(context.Background(), view.ID, settled.Items[0].ID)
	assert.ErrorIs(t, err, services.ErrRetryConflict)

	_, err = svc.RetryItem(context.Background(), view.ID, "no-such-item")
	assert.ErrorIs(t, err, services.ErrItemNotFound)

	_, err = svc.RetryItem(context.Background(), "no-such-batch", settled.Items[0].ID)
	assert.ErrorIs(t, err, services.ErrBatchNotFound)
}

func TestRetryItemWhileRunningConflicts(t *testing.T) {
	processor := &instantProcessor{failing: map[string]error{
		"vertical/tiktok": &model.ExtractionError{Stderr: "transient encoder failure"},
	}}
	svc := newService(processor)

	view, err := svc.StartBatch(context.Background(), batchRequest())
	require.NoError(t, err)
	settled := waitSettled(t, svc, view.ID)
	require.Equal(t, 2, settled.Summary.Failed)

	var failedIDs []string
	for _, item := range settled.Items {
		if item.Status == model.StatusFailed {
			failedIDs = append(failedIDs, item.ID)
		}
	}
	require.Len(t, failedIDs, 2)

	processor.clearFailure("vertical/tiktok")
	gate := make(chan struct{})
	processor.setGate(gate)

	_, err = svc.RetryItem(context.Background(), view.ID, failedIDs[0])
	require.NoError(t, err)

	// The first retry marked the batch running before returning, so a second
	// retry issued while it is in flight conflicts instead of starting
	// another run over the same items.
	_, err = svc.RetryItem(context.Background(), view.ID, failedIDs[1])
	assert.ErrorIs(t, err, services.ErrRetryConflict)

	close(gate)
	final := waitSettled(t, svc, view.ID)
	assert.Equal(t, 1, final.Summary.Failed)
	assert.Equal(t, 3, final.Summary.Completed)
}

func TestExportClipSynchronous(t *testing.T) {
	processor := &instantProcessor{}
	svc := newService(processor)

	results, err := svc.ExportClip(context.Background(), 42, &model.SingleExportRequest{
		Formats: []model.FormatTarget{
			{Format: "square"},
			{Format: "vertical", Platform: "tiktok"},
		},
		CroppingStrategy: "centered",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	// Omitted platform defaults to the format's first supported one.
	assert.Equal(t, "instagram", results[0].Platform)
	assert.NotEmpty(t, results[0].URL)

	assert.True(t, results[1].Success)
	assert.Equal(t, "tiktok", results[1].Platform)
	assert.Equal(t, 2, processor.processed)
}

func TestExportClipPerTargetFailures(t *testing.T) {
	processor := &instantProcessor{failing: map[string]error{
		"vertical/tiktok": &model.ExtractionError{Stderr: "encoder broke"},
	}}
	svc := newService(processor)

	results, err := svc.ExportClip(context.Background(), 42, &model.SingleExportRequest{
		Formats: []model.FormatTarget{
			{Format: "vertical", Platform: "tiktok"},
			{Format: "cinema-scope"},
			{Format: "landscape", Platform: "youtube"},
		},
		CroppingStrategy: "centered",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// One encode failure and one unknown format; the good target still lands.
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "encoder")
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "cinema-scope")
	assert.True(t, results[2].Success)
}

func TestExportClipRequestValidation(t *testing.T) {
	processor := &instantProcessor{}
	svc := newService(processor)
	var validationErr *model.ValidationError

	_, err := svc.ExportClip(context.Background(), 42, &model.SingleExportRequest{
		CroppingStrategy: "centered",
	})
	require.ErrorAs(t, err, &validationErr)

	_, err = svc.ExportClip(context.Background(), 42, &model.SingleExportRequest{
		Formats:          []model.FormatTarget{{Format: "square"}},
		CroppingStrategy: "magic",
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Zero(t, processor.processed)
}
