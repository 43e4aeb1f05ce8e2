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

package commands

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
)

// maxErrorBodyBytes caps how much of a failed response body is captured for
// diagnostics. Storage backends return short XML/JSON error documents; there
// is no reason to buffer a video-sized payload on an error path.
const maxErrorBodyBytes = 4 << 10

// SourceDownload fetches the job's source video over HTTP into the job's
// working directory. The file extension is sniffed from the payload's magic
// bytes rather than trusted from the URL, because signed storage URLs often
// carry no usable suffix.
type SourceDownload struct {
	cor.BaseCommand
	client *http.Client
}

// NewSourceDownload creates the download step. The supplied client carries
// the deployment's timeout policy; pass http.DefaultClient in tests.
func NewSourceDownload(name string, client *http.Client) *SourceDownload {
	return &SourceDownload{
		BaseCommand: *cor.NewBaseCommand(name),
		client:      client,
	}
}

func (c *SourceDownload) IsExecutable(context cor.Context) bool {
	return context.Get(GetJobSpecParameterName()) != nil
}

func (c *SourceDownload) Execute(context cor.Context) {
	spec := context.Get(GetJobSpecParameterName()).(*model.ExportJobSpec)

	req, err := http.NewRequestWithContext(context.GetContext(), http.MethodGet, spec.SourceURL, nil)
	if err != nil {
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		dlErr := &model.DownloadError{
			URL:        spec.SourceURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		if resp.StatusCode == http.StatusNotFound && isFixtureSource(spec.SourceURL) {
			dlErr.Hint = "source video not yet uploaded to storage"
		}
		context.AddError(c.GetName(), dlErr)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}

	tmpPath := filepath.Join(spec.WorkDir, "source.download")
	out, err := os.Create(tmpPath)
	if err != nil {
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	context.AddTempFile(tmpPath)

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	if err := out.Close(); err != nil {
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}

	sourcePath, err := renameWithSniffedExtension(tmpPath)
	if err != nil {
		context.AddError(c.GetName(), &model.DownloadError{URL: spec.SourceURL, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	context.AddTempFile(sourcePath)

	context.Add(GetSourceFileParameterName(), sourcePath)
	context.Add(c.GetOutputParam(), sourcePath)
	reportProgress(context, 30)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}

// renameWithSniffedExtension inspects the file header and renames the
// download to carry a real container extension, defaulting to .mp4 when the
// type is unrecognized. The encoder probes content anyway; the extension is
// for humans inspecting a failed job's working directory.
func renameWithSniffedExtension(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	header := make([]byte, 261)
	n, err := f.Read(header)
	_ = f.Close()
	if err != nil && err != io.EOF {
		return "", err
	}

	ext := "mp4"
	if kind, _ := filetype.Match(header[:n]); kind != filetype.Unknown {
		ext = kind.Extension
	}
	renamed := strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
	if err := os.Rename(path, renamed); err != nil {
		return "", fmt.Errorf("renaming download: %w", err)
	}
	return renamed, nil
}

// isFixtureSource reports whether the URL looks like a seeded development
// fixture, where a 404 usually means the fixture media was never uploaded
// rather than a genuinely broken reference. Only the path component is
// inspected, so the query string of a signed URL never bleeds into the
// file name.
func isFixtureSource(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	base := filepath.Base(path)
	return strings.Contains(path, "/fixtures/") ||
		strings.HasPrefix(base, "fixture-") ||
		strings.HasPrefix(base, "test-")
}
