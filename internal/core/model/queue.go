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
// This file holds the batch-export queue model: the request that expands
// into a queue, the per-item unit of work with its lifecycle state, and the
// result payload produced by the extraction worker and the uploader.
//
// Queue items live in memory for the lifetime of one batch operation. They
// are not shared between concurrently running jobs except through the batch
// executor, which writes each item exactly once per state transition and
// always keys updates by item ID.
package model

import "time"

// ItemStatus is the lifecycle state of one export queue item. Transitions
// only move forward along pending -> processing -> {completed, failed}; the
// single backward edge, failed -> pending, is reserved for an explicit
// operator retry.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// Priority is an advisory processing-order hint for a batch. It never
// preempts running work.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Valid reports whether the priority is one of the three known values.
// An empty priority is treated as normal by the queue generator.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, "":
		return true
	}
	return false
}

// ClipReference identifies a source clip as the dashboard knows it. The
// start/end/duration fields feed the time-estimate display only; the
// authoritative extraction bounds come from the owning clip record, which is
// resolved through the ClipResolver collaborator at processing time.
type ClipReference struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title,omitempty"`
	AspectRatio     string  `json:"aspect_ratio,omitempty"`
	StartSeconds    float64 `json:"start_seconds,omitempty"`
	EndSeconds      float64 `json:"end_seconds,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// FormatSelection names one export format chosen for a batch, optionally
// narrowed to a subset of its compatible platforms. An empty Platforms slice
// falls back to the request's batch-level platform list; when that is empty
// too the request is rejected.
type FormatSelection struct {
	Format    string   `json:"format"`
	Platforms []string `json:"platforms,omitempty"`
}

// BatchExportRequest is the input to the queue generator: the cartesian
// selection the user made in the batch export dialog.
type BatchExportRequest struct {
	ClipIDs          []int64           `json:"clipIds"`
	Formats          []FormatSelection `json:"formats"`
	Platforms        []string          `json:"platforms"`
	CroppingStrategy string            `json:"croppingStrategy"`
	Priority         Priority          `json:"priority,omitempty"`
	// Clips optionally carries per-clip duration hints so estimates can be
	// computed at queue-generation time. Keyed into by clip ID.
	Clips []ClipReference `json:"clips,omitempty"`
}

// FormatTarget names one concrete output of a single-clip export: a format
// and the platform the artifact is keyed under. The platform may be omitted,
// in which case the format's first supported platform is used.
type FormatTarget struct {
	Format   string `json:"format"`
	Platform string `json:"platform,omitempty"`
}

// SingleExportRequest asks for one clip in one or more formats, processed
// synchronously. Each target yields its own entry in the response, so one
// bad target never hides the others' results.
type SingleExportRequest struct {
	Formats          []FormatTarget `json:"formats"`
	CroppingStrategy string         `json:"croppingStrategy"`
}

// SingleExportResult is the per-target outcome of a synchronous export.
type SingleExportResult struct {
	Success      bool   `json:"success"`
	Format       string `json:"format"`
	Platform     string `json:"platform,omitempty"`
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ProcessClipResult is the output of one successful extraction + upload. A
// missing thumbnail URL means thumbnail generation failed; the clip itself
// is still good.
type ProcessClipResult struct {
	URL             string  `json:"url"`
	ThumbnailURL    string  `json:"thumbnail_url,omitempty"`
	StorageKey      string  `json:"storage_key"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ExportQueueItem is one concrete (clip, format, platform, strategy) unit of
// export work. The item ID stays stable across retries; RetryCount records
// how many times the operator has re-enqueued it.
type ExportQueueItem struct {
	ID               string     `json:"id"`
	ClipID           int64      `json:"clip_id"`
	Format           string     `json:"format"`
	Platform         string     `json:"platform"`
	CroppingStrategy string     `json:"cropping_strategy"`
	Status           ItemStatus `json:"status"`
	// Progress is a coarse 0-100 percentage advanced at stage boundaries
	// (downloaded, trimmed, uploaded), not a byte-accurate figure.
	Progress         int                `json:"progress"`
	EstimatedSeconds float64            `json:"estimated_seconds"`
	RetryCount       int                `json:"retry_count"`
	Result           *ProcessClipResult `json:"result,omitempty"`
	Error            string             `json:"error,omitempty"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

// Settled reports whether the item has reached a terminal state for the
// current attempt.
func (i *ExportQueueItem) Settled() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// BatchSummary aggregates item counts for the summary line the UI shows
// once the last chunk settles.
type BatchSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Summarize tallies the queue into a BatchSummary.
func Summarize(items []*ExportQueueItem) BatchSummary {
	out := BatchSummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StatusPending:
			out.Pending++
		case StatusProcessing:
			out.Processing++
		case StatusCompleted:
			out.Completed++
		case StatusFailed:
			out.Failed++
		}
	}
	return out
}
