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

// Package storage pushes encoded artifacts to durable object storage and
// hands back a URL clients can fetch them from. It is the external
// collaborator boundary of the pipeline: everything behind the Uploader
// interface is at-least-once, and a returned error means "unknown whether
// the bytes landed" — retrying with the same key is always safe because
// keys overwrite rather than duplicate.
package storage

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// UploadResult is the durable location of one uploaded artifact.
type UploadResult struct {
	// URL is the address a client can fetch the artifact from. Signed and
	// time-limited when the backend is configured for signing, public
	// otherwise.
	URL string
	// Key is the durable object key the artifact was stored under.
	Key string
}

// Uploader stores a byte payload under a key. Implementations must be safe
// for concurrent use; the batch executor uploads from several jobs at once.
type Uploader interface {
	Upload(ctx context.Context, data []byte, key string, contentType string) (*UploadResult, error)
}

// QuotaAwareUploader decorates an Uploader with a client-side rate limit so
// a large batch cannot burst past the storage API's request quota. Same
// decorator shape as the rest of the codebase: wrap, gate, delegate.
type QuotaAwareUploader struct {
	wrapped Uploader
	limiter *rate.Limiter
}

// NewQuotaAwareUploader wraps the given uploader, allowing at most
// requestsPerSecond uploads with a burst of the same size.
func NewQuotaAwareUploader(wrapped Uploader, requestsPerSecond int) *QuotaAwareUploader {
	return &QuotaAwareUploader{
		wrapped: wrapped,
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(requestsPerSecond)), requestsPerSecond),
	}
}

// Upload blocks until the limiter admits the request, then delegates.
func (u *QuotaAwareUploader) Upload(ctx context.Context, data []byte, key string, contentType string) (*UploadResult, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return u.wrapped.Upload(ctx, data, key, contentType)
}
