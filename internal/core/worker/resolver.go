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

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clipforge/clip-export/internal/core/model"
)

// HTTPClipResolver resolves clips against the clip library's REST API.
type HTTPClipResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClipResolver builds a resolver rooted at baseURL, e.g.
// "https://clips.internal.example.com/api". A nil client uses
// http.DefaultClient.
func NewHTTPClipResolver(baseURL string, client *http.Client) *HTTPClipResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClipResolver{baseURL: baseURL, client: client}
}

// clipDocument is the wire shape of the clip library's clip record, reduced
// to the fields the exporter needs.
type clipDocument struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	SourceURL    string  `json:"source_url"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// ResolveClip fetches the clip record and returns its source location and
// extraction bounds. These bounds are authoritative; any start/end the
// original export request carried were display hints only.
func (r *HTTPClipResolver) ResolveClip(ctx context.Context, clipID int64) (*ResolvedClip, error) {
	url := fmt.Sprintf("%s/clips/%d", r.baseURL, clipID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching clip %d: %w", clipID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip library returned %d for clip %d", resp.StatusCode, clipID)
	}

	var doc clipDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding clip %d: %w", clipID, err)
	}
	if doc.SourceURL == "" {
		return nil, &model.ValidationError{Message: fmt.Sprintf("clip %d has no source video", clipID)}
	}
	if doc.EndSeconds <= doc.StartSeconds {
		return nil, &model.ValidationError{Message: fmt.Sprintf("clip %d has invalid bounds [%f, %f]", clipID, doc.StartSeconds, doc.EndSeconds)}
	}

	return &ResolvedClip{
		SourceURL:    doc.SourceURL,
		Title:        doc.Title,
		StartSeconds: doc.StartSeconds,
		EndSeconds:   doc.EndSeconds,
	}, nil
}
