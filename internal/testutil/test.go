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

// Package test provides shared helpers for the test suite: test
// configuration loading, an in-memory artifact store, and stub encoder
// binaries so pipeline tests never need a real ffmpeg.
package test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/clipforge/clip-export/internal/cloud"
	"github.com/clipforge/clip-export/internal/core/storage"
)

// StateManager caches the loaded test configuration so it is read from disk
// once per test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil. Convenience for the places
// where require is overkill.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the repository's test config
// files. The path is resolved from this source file's location so tests load
// the same files no matter which package directory they run in.
func SetupOS() (err error) {
	_, self, _, _ := runtime.Caller(0)
	configDir := filepath.Join(filepath.Dir(self), "..", "..", "configs")
	err = os.Setenv(cloud.EnvConfigFilePrefix, configDir)
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is the singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// MemoryUploader is an in-memory storage.Uploader for pipeline tests. It
// records every upload and can be told to fail, to exercise the upload error
// path without a network.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// FailKeys maps object keys to the error to return for them.
	FailKeys map[string]error
}

// NewMemoryUploader creates an empty in-memory store.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{
		objects:  make(map[string][]byte),
		types:    make(map[string]string),
		FailKeys: make(map[string]error),
	}
}

// Upload stores the payload in memory and returns a fake public URL.
func (u *MemoryUploader) Upload(_ context.Context, data []byte, key string, contentType string) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err, ok := u.FailKeys[key]; ok {
		return nil, err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	u.objects[key] = buf
	u.types[key] = contentType
	return &storage.UploadResult{
		URL: "https://storage.test/" + key,
		Key: key,
	}, nil
}

// Object returns the stored payload for key, if any.
func (u *MemoryUploader) Object(key string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[key]
	return data, ok
}

// ContentType returns the content type key was stored with.
func (u *MemoryUploader) ContentType(key string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.types[key]
}

// Count returns how many objects have been stored.
func (u *MemoryUploader) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

// WriteStubEncoder writes a shell script that stands in for ffmpeg: it
// answers the -version probe and writes a small payload to its final
// argument, which is where the real encoder puts its output file.
func WriteStubEncoder(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
for last; do :; done
case "$last" in
  -version) exit 0 ;;
esac
printf 'stub encoder output' > "$last"
exit 0
`
	return writeScript(t, "ffmpeg-stub.sh", script)
}

// WriteFailingEncoder writes a stub encoder that passes the -version probe
// but fails every encode with a recognizable stderr message.
func WriteFailingEncoder(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
for last; do :; done
case "$last" in
  -version) exit 0 ;;
esac
echo "stub encoder: simulated encode failure" >&2
exit 1
`
	return writeScript(t, "ffmpeg-failing.sh", script)
}

// WriteMissingEncoderPath returns a path that does not exist, for preflight
// failure tests.
func WriteMissingEncoderPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "no-such-encoder")
}

func writeScript(t *testing.T, name string, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("writing stub encoder: %v", err)
	}
	return path
}

// FakeClipJSON renders the clip library's wire format for test servers.
func FakeClipJSON(id int64, sourceURL string, start, end float64) string {
	return fmt.Sprintf(`{"id":%d,"title":"clip %d","source_url":%q,"start_seconds":%g,"end_seconds":%g}`,
		id, id, sourceURL, start, end)
}
