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
	"bytes"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
)

// ThumbnailGrab extracts a single preview frame at the clip's temporal
// midpoint. Thumbnail failure never fails the job: the clip is the product,
// the thumbnail is garnish, so errors here are logged and swallowed.
type ThumbnailGrab struct {
	cor.BaseCommand
	encoderPath string
	timeout     time.Duration
}

// NewThumbnailGrab creates the thumbnail step using the same encoder binary
// and timeout policy as the trim step.
func NewThumbnailGrab(name string, encoderPath string, timeout time.Duration) *ThumbnailGrab {
	cmd := &ThumbnailGrab{
		BaseCommand: *cor.NewBaseCommand(name),
		encoderPath: encoderPath,
		timeout:     timeout,
	}
	cmd.InputParamName = GetSourceFileParameterName()
	cmd.OutputParamName = GetThumbnailFileParameterName()
	return cmd
}

func (c *ThumbnailGrab) Execute(context cor.Context) {
	spec := context.Get(GetJobSpecParameterName()).(*model.ExportJobSpec)
	sourcePath := context.Get(c.GetInputParam()).(string)
	outputPath := filepath.Join(spec.WorkDir, "thumbnail.jpg")
	context.AddTempFile(outputPath)

	runCtx, cancel := withEncodeTimeout(context.GetContext(), c.timeout)
	defer cancel()

	encoder := exec.CommandContext(runCtx, c.encoderPath, BuildThumbnailArgs(spec, sourcePath, outputPath)...)
	var stderr bytes.Buffer
	encoder.Stderr = &stderr

	if err := encoder.Run(); err != nil {
		slog.Warn("thumbnail generation failed, continuing without one",
			"command", c.GetName(),
			"error", err,
			"stderr", stderr.String())
		c.GetErrorCounter().Add(context.GetContext(), 1)
		// Re-expose the clip so the upload step still receives its input
		// through the chain's piping.
		context.Add(cor.CtxOut, context.Get(GetClipFileParameterName()))
		return
	}

	context.Add(c.GetOutputParam(), outputPath)
	context.Add(cor.CtxOut, context.Get(GetClipFileParameterName()))
	reportProgress(context, 80)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}

// BuildThumbnailArgs constructs the encoder argument list for grabbing one
// frame at the clip's midpoint on the source timeline.
func BuildThumbnailArgs(spec *model.ExportJobSpec, sourcePath string, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-i", sourcePath,
		"-ss", formatSeconds(spec.Midpoint()),
		"-vframes", "1",
		outputPath,
	}
}
