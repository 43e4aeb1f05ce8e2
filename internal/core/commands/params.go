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

// Package commands provides the concrete pipeline steps for one clip
// export: download the source, trim and encode the segment, grab a
// thumbnail frame, upload the artifacts. This file defines the canonical
// context keys the commands use to share state, so every command addresses
// the same values regardless of its position in the chain.
package commands

import "github.com/clipforge/clip-export/internal/core/cor"

// GetJobSpecParameterName returns the context key holding the resolved
// *model.ExportJobSpec for the running job.
func GetJobSpecParameterName() string {
	return "__EXPORT_JOB_SPEC__"
}

// GetSourceFileParameterName returns the context key holding the local path
// of the downloaded source video.
func GetSourceFileParameterName() string {
	return "__SOURCE_FILE__"
}

// GetClipFileParameterName returns the context key holding the local path
// of the trimmed, encoded clip.
func GetClipFileParameterName() string {
	return "__CLIP_FILE__"
}

// GetThumbnailFileParameterName returns the context key holding the local
// path of the thumbnail frame. Absent when thumbnail generation failed,
// which is non-fatal.
func GetThumbnailFileParameterName() string {
	return "__THUMBNAIL_FILE__"
}

// GetResultParameterName returns the context key the final pipeline step
// stores the assembled *model.ProcessClipResult under. A named key rather
// than the chain's piping slot, so the caller can read it after the chain
// has finished shuffling inputs and outputs.
func GetResultParameterName() string {
	return "__EXPORT_RESULT__"
}

// GetProgressParameterName returns the context key holding the optional
// ProgressFunc for coarse per-job progress reporting.
func GetProgressParameterName() string {
	return "__PROGRESS__"
}

// ProgressFunc receives coarse progress percentages (0-100) as the job
// crosses stage boundaries.
type ProgressFunc func(percent int)

// reportProgress invokes the job's progress callback when one is installed.
func reportProgress(ctx cor.Context, percent int) {
	if f, ok := ctx.Get(GetProgressParameterName()).(ProgressFunc); ok && f != nil {
		f(percent)
	}
}
