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

package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/queue"
)

func TestGenerateExpandsFullSelection(t *testing.T) {
	catalog := model.NewCatalog()
	req := &model.BatchExportRequest{
		ClipIDs: []int64{101, 102},
		Formats: []model.FormatSelection{
			{Format: "vertical", Platforms: []string{"tiktok", "youtube-shorts"}},
			{Format: "square", Platforms: []string{"instagram"}},
		},
		CroppingStrategy: "centered",
		Clips: []model.ClipReference{
			{ID: 101, DurationSeconds: 30},
			{ID: 102, DurationSeconds: 45},
		},
	}

	items, err := queue.Generate(catalog, req)
	require.NoError(t, err)
	// 2 clips x (2 vertical platforms + 1 square platform).
	require.Len(t, items, 6)

	for _, item := range items {
		assert.Equal(t, model.StatusPending, item.Status)
		assert.Equal(t, "centered", item.CroppingStrategy)
		assert.NotEmpty(t, item.ID)
		assert.Greater(t, item.EstimatedSeconds, 0.0)
	}

	// Stable clip -> format -> platform order.
	assert.Equal(t, int64(101), items[0].ClipID)
	assert.Equal(t, "tiktok", items[0].Platform)
	assert.Equal(t, "youtube-shorts", items[1].Platform)
	assert.Equal(t, "instagram", items[2].Platform)
	assert.Equal(t, int64(102), items[3].ClipID)
}

func TestGenerateDeterministicIgnoringIDs(t *testing.T) {
	catalog := model.NewCatalog()
	req := &model.BatchExportRequest{
		ClipIDs:          []int64{7},
		Formats:          []model.FormatSelection{{Format: "landscape"}},
		Platforms:        []string{"youtube", "linkedin"},
		CroppingStrategy: "letterbox",
	}

	first, err := queue.Generate(catalog, req)
	require.NoError(t, err)
	second, err := queue.Generate(catalog, req)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ClipID, second[i].ClipID)
		assert.Equal(t, first[i].Format, second[i].Format)
		assert.Equal(t, first[i].Platform, second[i].Platform)
		assert.Equal(t, first[i].EstimatedSeconds, second[i].EstimatedSeconds)
	}
}

func TestGenerateSkipsEmptyPlatformIntersection(t *testing.T) {
	catalog := model.NewCatalog()
	req := &model.BatchExportRequest{
		ClipIDs: []int64{1},
		Formats: []model.FormatSelection{
			{Format: "vertical"},
			{Format: "landscape"},
		},
		// Neither platform is supported by the vertical format, so only the
		// landscape items survive.
		Platforms:        []string{"youtube", "linkedin"},
		CroppingStrategy: "centered",
	}

	items, err := queue.Generate(catalog, req)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "landscape", item.Format)
	}
}

func TestGenerateRejectsEmptyPlatformSelection(t *testing.T) {
	catalog := model.NewCatalog()

	_, err := queue.Generate(catalog, &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		Formats:          []model.FormatSelection{{Format: "vertical"}},
		CroppingStrategy: "centered",
	})
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "vertical")

	// One selection carrying its own platforms does not excuse another
	// that names none.
	_, err = queue.Generate(catalog, &model.BatchExportRequest{
		ClipIDs: []int64{1},
		Formats: []model.FormatSelection{
			{Format: "vertical", Platforms: []string{"tiktok"}},
			{Format: "square"},
		},
		CroppingStrategy: "centered",
	})
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "square")

	// A batch-level platform list covers selections without their own.
	items, err := queue.Generate(catalog, &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		Formats:          []model.FormatSelection{{Format: "square"}},
		Platforms:        []string{"facebook", "instagram"},
		CroppingStrategy: "centered",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "instagram", items[0].Platform)
	assert.Equal(t, "facebook", items[1].Platform)
}

func TestGenerateRejectsUnknownIdentifiers(t *testing.T) {
	catalog := model.NewCatalog()

	_, err := queue.Generate(catalog, &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		Formats:          []model.FormatSelection{{Format: "vertical"}},
		CroppingStrategy: "magic",
	})
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = queue.Generate(catalog, &model.BatchExportRequest{
		ClipIDs:          []int64{1},
		Formats:          []model.FormatSelection{{Format: "cinema-scope", Platforms: []string{"tiktok"}}},
		CroppingStrategy: "centered",
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestGenerateEmptyClipListYieldsNoItems(t *testing.T) {
	catalog := model.NewCatalog()
	items, err := queue.Generate(catalog, &model.BatchExportRequest{
		Formats:          []model.FormatSelection{{Format: "vertical", Platforms: []string{"tiktok"}}},
		CroppingStrategy: "centered",
	})
	require.NoError(t, err)
	assert.Empty(t, items)
}
