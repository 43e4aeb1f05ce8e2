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
// This file holds the static format and cropping-strategy catalog. The catalog
// is built once at process start and never mutated afterwards, so it is safe
// to share between concurrently running jobs without locking.
package model

import "fmt"

// CropFamily identifies the geometric rule a cropping strategy maps to when
// the encoder filter chain is constructed.
type CropFamily string

const (
	// CropFamilyCentered center-crops the source frame to the target aspect
	// ratio, discarding the margins.
	CropFamilyCentered CropFamily = "centered"
	// CropFamilyLetterbox scales the source to fit inside the target frame
	// and pads the remainder with black bars.
	CropFamilyLetterbox CropFamily = "letterbox"
)

// ExportFormat is an immutable catalog entry describing one output
// specification: pixel dimensions plus the set of platforms the format is
// compatible with. Entries are created by NewCatalog and never mutated.
type ExportFormat struct {
	ID          string   `json:"id"`           // Stable format identifier (e.g. "vertical").
	DisplayName string   `json:"display_name"` // Human readable name for the UI.
	Width       int      `json:"width"`        // Output width in pixels.
	Height      int      `json:"height"`       // Output height in pixels.
	Platforms   []string `json:"platforms"`    // Platform identifiers this format can be published to.
	// BaseCostSeconds is the per-item base processing cost used by the
	// time-estimate heuristic. It is a display hint, not a scheduling input.
	BaseCostSeconds float64 `json:"-"`
}

// AspectRatio returns the canonical aspect label for the format, one of
// "9:16", "1:1" or "16:9". The label, not the raw dimensions, selects the
// crop filter family in the extraction worker.
func (f *ExportFormat) AspectRatio() string {
	switch {
	case f.Width == f.Height:
		return "1:1"
	case f.Width < f.Height:
		return "9:16"
	default:
		return "16:9"
	}
}

// SupportsPlatform reports whether the platform identifier is in the
// format's compatibility set.
func (f *ExportFormat) SupportsPlatform(platform string) bool {
	for _, p := range f.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// CroppingStrategy is an immutable catalog entry describing the geometric
// rule used to fit a source frame into a target aspect ratio.
//
// The "smart" strategy deserves a note: without a content-analysis model the
// pipeline cannot track faces or subjects, so smart cropping degrades to
// centered cropping. The Fallback field makes that degradation explicit so
// the UI can disclose it instead of implying content awareness that does not
// exist.
type CroppingStrategy struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description"`
	Family      CropFamily `json:"family"`
	// Fallback names the strategy actually applied when this one cannot be
	// honored. Empty for strategies that are implemented directly.
	Fallback string `json:"fallback,omitempty"`
	// CostMultiplier scales the per-format base cost in time estimates.
	CostMultiplier float64 `json:"-"`
}

// Catalog is the static registry of supported export formats and cropping
// strategies. Lookup maps are kept alongside ordered slices so iteration
// order stays deterministic for the queue generator and for tests.
type Catalog struct {
	formats      []*ExportFormat
	strategies   []*CroppingStrategy
	formatsByID  map[string]*ExportFormat
	strategyByID map[string]*CroppingStrategy
}

// NewCatalog builds the default catalog. The entries mirror the output
// specifications the dashboard offers: a vertical 9:16 format for short-form
// platforms, a 1:1 square for feeds, and a 16:9 landscape pass-through.
func NewCatalog() *Catalog {
	formats := []*ExportFormat{
		{
			ID:              "vertical",
			DisplayName:     "Vertical (9:16)",
			Width:           1080,
			Height:          1920,
			Platforms:       []string{"tiktok", "instagram-reels", "youtube-shorts"},
			BaseCostSeconds: 18,
		},
		{
			ID:              "square",
			DisplayName:     "Square (1:1)",
			Width:           1080,
			Height:          1080,
			Platforms:       []string{"instagram", "facebook"},
			BaseCostSeconds: 15,
		},
		{
			ID:              "landscape",
			DisplayName:     "Landscape (16:9)",
			Width:           1920,
			Height:          1080,
			Platforms:       []string{"youtube", "twitter", "linkedin"},
			BaseCostSeconds: 12,
		},
	}
	strategies := []*CroppingStrategy{
		{
			ID:          "smart",
			DisplayName: "Smart Crop",
			Description: "Frames the subject automatically. Currently degrades to a centered crop; see Fallback.",
			Family:      CropFamilyCentered,
			Fallback:    "centered",
			// Priced as if content analysis ran, so estimates stay stable
			// when real subject tracking lands.
			CostMultiplier: 1.5,
		},
		{
			ID:             "centered",
			DisplayName:    "Centered Crop",
			Description:    "Crops equal margins from both sides of the frame.",
			Family:         CropFamilyCentered,
			CostMultiplier: 1.0,
		},
		{
			ID:             "letterbox",
			DisplayName:    "Letterbox",
			Description:    "Fits the whole frame and pads with black bars.",
			Family:         CropFamilyLetterbox,
			CostMultiplier: 1.2,
		},
	}

	out := &Catalog{
		formats:      formats,
		strategies:   strategies,
		formatsByID:  make(map[string]*ExportFormat, len(formats)),
		strategyByID: make(map[string]*CroppingStrategy, len(strategies)),
	}
	for _, f := range formats {
		out.formatsByID[f.ID] = f
	}
	for _, s := range strategies {
		out.strategyByID[s.ID] = s
	}
	return out
}

// Formats returns the catalog formats in registration order.
func (c *Catalog) Formats() []*ExportFormat {
	return c.formats
}

// Strategies returns the cropping strategies in registration order.
func (c *Catalog) Strategies() []*CroppingStrategy {
	return c.strategies
}

// Format looks up a format by identifier.
func (c *Catalog) Format(id string) (*ExportFormat, error) {
	f, ok := c.formatsByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q", id)
	}
	return f, nil
}

// Strategy looks up a cropping strategy by identifier.
func (c *Catalog) Strategy(id string) (*CroppingStrategy, error) {
	s, ok := c.strategyByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown cropping strategy %q", id)
	}
	return s, nil
}

// EstimateSeconds computes the coarse processing-time estimate shown next to
// a queue item: the format's base cost scaled by the strategy multiplier,
// plus half the clip duration when the caller knows it. The estimate drives
// the UI progress bar only; the executor never schedules by it.
func (c *Catalog) EstimateSeconds(format *ExportFormat, strategy *CroppingStrategy, clipDurationSeconds float64) float64 {
	estimate := format.BaseCostSeconds * strategy.CostMultiplier
	if clipDurationSeconds > 0 {
		estimate += clipDurationSeconds * 0.5
	}
	return estimate
}
