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

// Package model defines the core data structures for the export pipeline.
// This file holds the fully-resolved specification for one extraction job:
// everything the worker needs to cut, crop, encode and upload a single
// segment, with no further lookups.
package model

// QualityTier selects the encoder's speed/size tradeoff. The mapping to
// concrete CRF and preset values lives with the encoder command, not here.
type QualityTier string

const (
	QualityHigh   QualityTier = "high"
	QualityMedium QualityTier = "medium"
	QualityLow    QualityTier = "low"
)

// ExportJobSpec is the resolved input for one clip extraction. The batch
// executor builds one per queue item by combining the item, the catalog
// entry, and the clip record resolved through the external collaborator.
type ExportJobSpec struct {
	// SourceURL locates the source video (HTTP/HTTPS).
	SourceURL string
	// StartSeconds and EndSeconds bound the segment to cut, in seconds on
	// the source timeline. These are the authoritative bounds from the clip
	// record, not UI display hints.
	StartSeconds float64
	EndSeconds   float64
	// AspectRatio is the canonical target label ("9:16", "1:1", "16:9");
	// together with Strategy it selects the crop filter.
	AspectRatio string
	Width       int
	Height      int
	Strategy    *CroppingStrategy
	Quality     QualityTier
	// DestinationKey and ThumbnailKey are the object-storage keys for the
	// encoded clip and its thumbnail. Unique per (clip, format, platform)
	// by construction, so concurrent jobs never collide.
	DestinationKey string
	ThumbnailKey   string
	// WorkDir is the job's private temporary directory. The worker creates
	// it with a unique name before the chain runs and removes its contents
	// afterwards regardless of outcome.
	WorkDir string
}

// Duration returns the clip length in seconds, defined as end minus start.
// It is never re-measured from the encoded output.
func (s *ExportJobSpec) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

// Midpoint returns the source-timeline position of the clip's temporal
// middle, where the thumbnail frame is grabbed.
func (s *ExportJobSpec) Midpoint() float64 {
	return s.StartSeconds + s.Duration()/2
}
