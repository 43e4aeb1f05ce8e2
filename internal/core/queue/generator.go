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

// Package queue expands a batch export request into the flat list of
// extraction jobs the executor will run. Generation is pure: no I/O, no
// clock, no randomness beyond item IDs, so the same request always yields
// the same items in the same order.
package queue

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clipforge/clip-export/internal/core/model"
)

// Generate expands every requested clip against every selected format and
// each format's eligible platforms, in stable clip -> format -> platform
// order. A format selection whose platform set does not intersect the
// format's supported platforms contributes no items for that format; that
// is a normal outcome of broad platform pickers, not an error.
//
// Unknown format or strategy identifiers are a caller bug and are reported
// as validation errors rather than skipped, because silently dropping them
// would make a typo look like an empty intersection. The same goes for a
// format with no platform selection at all (neither its own list nor a
// batch-level one): defaulting to every compatible platform would turn a
// missing platform picker into a silent multiplication of encoder work.
func Generate(catalog *model.Catalog, req *model.BatchExportRequest) ([]*model.ExportQueueItem, error) {
	strategy, err := catalog.Strategy(req.CroppingStrategy)
	if err != nil {
		return nil, &model.ValidationError{Message: err.Error()}
	}
	if len(req.Platforms) == 0 {
		for _, selection := range req.Formats {
			if len(selection.Platforms) == 0 {
				return nil, &model.ValidationError{
					Message: fmt.Sprintf("no platforms selected for format %q", selection.Format),
				}
			}
		}
	}

	durations := make(map[int64]float64, len(req.Clips))
	for _, clip := range req.Clips {
		durations[clip.ID] = clip.DurationSeconds
	}

	var items []*model.ExportQueueItem
	for _, clipID := range req.ClipIDs {
		for _, selection := range req.Formats {
			format, err := catalog.Format(selection.Format)
			if err != nil {
				return nil, &model.ValidationError{Message: err.Error()}
			}

			for _, platform := range eligiblePlatforms(format, selection, req) {
				items = append(items, &model.ExportQueueItem{
					ID:               uuid.NewString(),
					ClipID:           clipID,
					Format:           format.ID,
					Platform:         platform,
					CroppingStrategy: strategy.ID,
					Status:           model.StatusPending,
					EstimatedSeconds: catalog.EstimateSeconds(format, strategy, durations[clipID]),
				})
			}
		}
	}
	return items, nil
}

// eligiblePlatforms intersects the requested platforms with the format's
// supported set, preserving the format's declared platform order so output
// ordering never depends on how the request listed them. A selection with
// its own platform list overrides the batch-level list; Generate has already
// rejected requests where both lists are empty.
func eligiblePlatforms(format *model.ExportFormat, selection model.FormatSelection, req *model.BatchExportRequest) []string {
	requested := selection.Platforms
	if len(requested) == 0 {
		requested = req.Platforms
	}

	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[p] = true
	}
	var out []string
	for _, p := range format.Platforms {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}
