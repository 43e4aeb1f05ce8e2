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
	"log/slog"
	"os"

	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/storage"
)

// ArtifactUpload pushes the encoded clip and its thumbnail to object storage
// and assembles the job's final result. The clip upload is load-bearing; the
// thumbnail upload follows the same non-fatal policy as thumbnail
// generation.
type ArtifactUpload struct {
	cor.BaseCommand
	uploader storage.Uploader
}

// NewArtifactUpload creates the upload step backed by the given storage
// uploader.
func NewArtifactUpload(name string, uploader storage.Uploader) *ArtifactUpload {
	cmd := &ArtifactUpload{
		BaseCommand: *cor.NewBaseCommand(name),
		uploader:    uploader,
	}
	cmd.InputParamName = GetClipFileParameterName()
	return cmd
}

func (c *ArtifactUpload) Execute(context cor.Context) {
	spec := context.Get(GetJobSpecParameterName()).(*model.ExportJobSpec)
	clipPath := context.Get(c.GetInputParam()).(string)

	clipBytes, err := os.ReadFile(clipPath)
	if err != nil {
		context.AddError(c.GetName(), &model.UploadError{Key: spec.DestinationKey, Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}
	clipResult, err := c.uploader.Upload(context.GetContext(), clipBytes, spec.DestinationKey, "video/mp4")
	if err != nil {
		context.AddError(c.GetName(), err)
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}

	result := &model.ProcessClipResult{
		URL:             clipResult.URL,
		StorageKey:      clipResult.Key,
		DurationSeconds: spec.Duration(),
	}

	if thumbPath, ok := context.Get(GetThumbnailFileParameterName()).(string); ok && thumbPath != "" {
		result.ThumbnailURL = c.uploadThumbnail(context, spec, thumbPath)
	}

	context.Add(GetResultParameterName(), result)
	context.Add(c.GetOutputParam(), result)
	reportProgress(context, 95)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}

// uploadThumbnail pushes the preview frame and returns its URL, or "" when
// the read or upload fails. A clip without a thumbnail is still a success.
func (c *ArtifactUpload) uploadThumbnail(context cor.Context, spec *model.ExportJobSpec, thumbPath string) string {
	thumbBytes, err := os.ReadFile(thumbPath)
	if err != nil {
		slog.Warn("skipping thumbnail upload", "command", c.GetName(), "error", err)
		return ""
	}
	thumbResult, err := c.uploader.Upload(context.GetContext(), thumbBytes, spec.ThumbnailKey, "image/jpeg")
	if err != nil {
		slog.Warn("skipping thumbnail upload", "command", c.GetName(), "key", spec.ThumbnailKey, "error", err)
		return ""
	}
	return thumbResult.URL
}
