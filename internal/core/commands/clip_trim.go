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
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
)

// encodeSettings maps a quality tier to the encoder's rate-control knobs.
// Lower CRF means higher fidelity and a slower preset spends more time
// searching for compression; the tiers trade those off together.
type encodeSettings struct {
	CRF    int
	Preset string
}

var qualitySettings = map[model.QualityTier]encodeSettings{
	model.QualityHigh:   {CRF: 18, Preset: "slow"},
	model.QualityMedium: {CRF: 23, Preset: "medium"},
	model.QualityLow:    {CRF: 28, Preset: "fast"},
}

// ClipTrim cuts the requested segment out of the downloaded source and
// re-encodes it for the target format. Each invocation is one encoder process
// bounded by the configured timeout.
type ClipTrim struct {
	cor.BaseCommand
	encoderPath string
	timeout     time.Duration
}

// NewClipTrim creates the trim step. encoderPath is the ffmpeg binary to
// invoke; timeout bounds a single encode and is treated as an encoder failure
// when exceeded.
func NewClipTrim(name string, encoderPath string, timeout time.Duration) *ClipTrim {
	cmd := &ClipTrim{
		BaseCommand: *cor.NewBaseCommand(name),
		encoderPath: encoderPath,
		timeout:     timeout,
	}
	cmd.InputParamName = GetSourceFileParameterName()
	cmd.OutputParamName = GetClipFileParameterName()
	return cmd
}

func (c *ClipTrim) Execute(context cor.Context) {
	spec := context.Get(GetJobSpecParameterName()).(*model.ExportJobSpec)
	sourcePath := context.Get(c.GetInputParam()).(string)
	outputPath := filepath.Join(spec.WorkDir, "clip.mp4")

	// Registered before the encoder runs so a partially written file from a
	// killed process is still cleaned up.
	context.AddTempFile(outputPath)

	runCtx, cancel := withEncodeTimeout(context.GetContext(), c.timeout)
	defer cancel()

	args := BuildTrimArgs(spec, sourcePath, outputPath)
	encoder := exec.CommandContext(runCtx, c.encoderPath, args...)
	var stderr bytes.Buffer
	encoder.Stderr = &stderr

	if err := encoder.Run(); err != nil {
		// A deadline on runCtx but not on the job context means the encode
		// itself ran past its time limit, reported as an encoder failure.
		if runCtx.Err() != nil && context.GetContext().Err() == nil {
			err = fmt.Errorf("encoder timed out after %s: %w", c.timeout, err)
		}
		context.AddError(c.GetName(), &model.ExtractionError{Stderr: stderr.String(), Err: err})
		c.GetErrorCounter().Add(context.GetContext(), 1)
		return
	}

	context.Add(c.GetOutputParam(), outputPath)
	context.Add(cor.CtxOut, outputPath)
	reportProgress(context, 70)
	c.GetSuccessCounter().Add(context.GetContext(), 1)
}

// withEncodeTimeout bounds one encoder invocation. A zero timeout means the
// job-level context is the only bound.
func withEncodeTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// BuildTrimArgs constructs the full encoder argument list for one clip:
// seek and duration from the clip bounds, rate control from the quality
// tier, an optional video filter from the crop strategy, then the fixed
// codec and container settings.
func BuildTrimArgs(spec *model.ExportJobSpec, sourcePath string, outputPath string) []string {
	settings, ok := qualitySettings[spec.Quality]
	if !ok {
		settings = qualitySettings[model.QualityMedium]
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-i", sourcePath,
		"-ss", formatSeconds(spec.StartSeconds),
		"-t", formatSeconds(spec.Duration()),
		"-crf", strconv.Itoa(settings.CRF),
		"-preset", settings.Preset,
	}
	if filter := CropFilter(spec); filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args,
		"-c:v", "libx264",
		"-c:a", "aac",
		// Moves the moov atom to the front so clips start playing while
		// still downloading.
		"-movflags", "+faststart",
		outputPath,
	)
	return args
}

// CropFilter returns the video filter for the job's aspect ratio and
// cropping strategy, or "" when the frame passes through untouched.
//
// Centered strategies crop relative to the input height, which keeps the
// filter independent of the source resolution: a 9:16 target takes the
// middle ih*9/16 columns, a square target the middle ih columns. Letterbox
// strategies scale into the target box and pad the remainder with black
// bars. A 16:9 target with a centered strategy needs no filter because
// sources are landscape already.
func CropFilter(spec *model.ExportJobSpec) string {
	if spec.Strategy != nil && spec.Strategy.Family == model.CropFamilyLetterbox {
		return fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			spec.Width, spec.Height, spec.Width, spec.Height,
		)
	}
	switch spec.AspectRatio {
	case "9:16":
		return "crop=ih*9/16:ih"
	case "1:1":
		return "crop=ih:ih"
	default:
		return ""
	}
}

// formatSeconds renders a seconds value without trailing zeros and without
// exponent notation, the form the encoder's option parser expects.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
