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

package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clip-export/internal/core/history"
	"github.com/clipforge/clip-export/internal/core/model"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)

	rec := &history.Record{
		ItemID:     "item-1",
		BatchID:    "batch-1",
		ClipID:     42,
		Format:     "vertical",
		Platform:   "tiktok",
		Status:     model.StatusCompleted,
		ResultURL:  "https://storage.test/exports/item-1.mp4",
		StorageKey: "exports/item-1.mp4",
	}
	require.NoError(t, store.Record(rec))

	got, err := store.Get("item-1")
	require.NoError(t, err)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.Equal(t, int64(42), got.ClipID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	// RecordedAt was filled in on write.
	assert.False(t, got.RecordedAt.IsZero())
}

func TestGetMissingRecord(t *testing.T) {
	store := openStore(t)
	_, err := store.Get("never-written")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestRetryOverwritesRecord(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.Record(&history.Record{
		ItemID: "item-1",
		Status: model.StatusFailed,
		Error:  "network blip",
	}))
	require.NoError(t, store.Record(&history.Record{
		ItemID:     "item-1",
		Status:     model.StatusCompleted,
		ResultURL:  "https://storage.test/exports/item-1.mp4",
		RetryCount: 1,
	}))

	got, err := store.Get("item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, got.RetryCount)

	records, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	base := time.Now().UTC()

	for i, id := range []string{"oldest", "middle", "newest"} {
		require.NoError(t, store.Record(&history.Record{
			ItemID:     id,
			Status:     model.StatusCompleted,
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].ItemID)
	assert.Equal(t, "middle", records[1].ItemID)
	assert.Equal(t, "oldest", records[2].ItemID)

	limited, err := store.List(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "newest", limited[0].ItemID)
}

func TestCleanupOlderThan(t *testing.T) {
	store := openStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Record(&history.Record{
		ItemID:     "stale",
		Status:     model.StatusCompleted,
		RecordedAt: now.Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, store.Record(&history.Record{
		ItemID:     "fresh",
		Status:     model.StatusCompleted,
		RecordedAt: now,
	}))

	removed, err := store.CleanupOlderThan(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get("stale")
	assert.ErrorIs(t, err, history.ErrNotFound)
	_, err = store.Get("fresh")
	assert.NoError(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")

	store, err := history.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Record(&history.Record{
		ItemID: "item-1",
		Status: model.StatusCompleted,
	}))
	require.NoError(t, store.Close())

	reopened, err := history.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get("item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}
