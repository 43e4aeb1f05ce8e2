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
// This file holds the error taxonomy. The split matters for control flow:
// ValidationError and EncoderUnavailableError are pre-flight failures that
// refuse the whole batch before any job starts, while DownloadError,
// ExtractionError and UploadError are per-job, retryable, and are recorded
// on the owning queue item rather than propagated out of the executor.
package model

import "fmt"

// ValidationError reports a malformed batch request (empty clip, format or
// platform selection, unknown strategy). No jobs are created.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid export request: %s", e.Message)
}

// EncoderUnavailableError means the media encoder binary could not be
// resolved or executed. Detected before any job starts, it fails the whole
// batch rather than every item individually.
type EncoderUnavailableError struct {
	Path string
	Err  error
}

func (e *EncoderUnavailableError) Error() string {
	return fmt.Sprintf("encoder %q is not available: %v", e.Path, e.Err)
}

func (e *EncoderUnavailableError) Unwrap() error { return e.Err }

// DownloadError means the source video could not be fetched. For HTTP
// failures StatusCode and Body carry the upstream response for diagnostics;
// Hint, when set, replaces the opaque status line with a friendlier
// explanation (a 404 on a fixture-patterned key means the source was never
// uploaded, not that the pipeline is broken).
type DownloadError struct {
	URL        string
	StatusCode int
	Body       string
	Hint       string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("download %s failed: %s", e.URL, e.Hint)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s failed: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError wraps an encoder invocation failure, carrying the captured
// stderr so operators can see the actual encoder complaint.
type ExtractionError struct {
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("encoder failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("encoder failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UploadError means pushing an artifact to object storage failed. Callers
// must treat it as "unknown whether the bytes landed": re-uploading under
// the same key is safe because keys overwrite rather than duplicate.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
