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

package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/worker"
	test "github.com/clipforge/clip-export/internal/testutil"
)

func newClipLibrary(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/clips/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(test.FakeClipJSON(1, "https://media.example.com/videos/full-1.mp4", 12.5, 42.5)))
	})
	mux.HandleFunc("/clips/2", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// End before start: the record is corrupt.
		_, _ = w.Write([]byte(test.FakeClipJSON(2, "https://media.example.com/videos/full-2.mp4", 30, 10)))
	})
	mux.HandleFunc("/clips/3", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(test.FakeClipJSON(3, "", 0, 15)))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolveClip(t *testing.T) {
	server := newClipLibrary(t)
	resolver := worker.NewHTTPClipResolver(server.URL, nil)

	clip, err := resolver.ResolveClip(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/videos/full-1.mp4", clip.SourceURL)
	assert.Equal(t, 12.5, clip.StartSeconds)
	assert.Equal(t, 42.5, clip.EndSeconds)
	assert.Equal(t, "clip 1", clip.Title)
}

func TestResolveClipRejectsBadRecords(t *testing.T) {
	server := newClipLibrary(t)
	resolver := worker.NewHTTPClipResolver(server.URL, nil)
	var validationErr *model.ValidationError

	// Inverted bounds.
	_, err := resolver.ResolveClip(context.Background(), 2)
	require.ErrorAs(t, err, &validationErr)

	// Missing source video.
	_, err = resolver.ResolveClip(context.Background(), 3)
	require.ErrorAs(t, err, &validationErr)
}

func TestResolveClipUnknownID(t *testing.T) {
	server := newClipLibrary(t)
	resolver := worker.NewHTTPClipResolver(server.URL, nil)

	_, err := resolver.ResolveClip(context.Background(), 404)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
