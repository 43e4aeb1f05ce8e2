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

// Package worker runs one clip extraction end to end: resolve the clip,
// download the source, trim and encode, grab a thumbnail, upload the
// artifacts. It owns the per-job working directory and guarantees its
// removal on every exit path, success or failure.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/clipforge/clip-export/internal/core/commands"
	"github.com/clipforge/clip-export/internal/core/cor"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/storage"
)

// DefaultJobTimeout bounds a single encoder invocation when the
// configuration does not say otherwise.
const DefaultJobTimeout = 10 * time.Minute

// ResolvedClip is the source material behind a queue item: where the full
// video lives and which segment of it the clip covers.
type ResolvedClip struct {
	SourceURL    string
	Title        string
	StartSeconds float64
	EndSeconds   float64
}

// ClipResolver maps a clip ID to its source media. The clip library is an
// external collaborator; the pipeline only ever sees it through this
// interface.
type ClipResolver interface {
	ResolveClip(ctx context.Context, clipID int64) (*ResolvedClip, error)
}

// Environment carries the deployment-level settings an Extractor needs.
type Environment struct {
	// EncoderPath is the ffmpeg binary to invoke.
	EncoderPath string
	// TempRoot is the directory job working directories are created under.
	// Empty means the system temp directory.
	TempRoot string
	// Quality selects the encoder tier applied to every job in this
	// deployment.
	Quality model.QualityTier
	// JobTimeout bounds each encoder invocation. Zero means
	// DefaultJobTimeout.
	JobTimeout time.Duration
	// HTTPClient fetches source videos. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Extractor processes queue items. It is safe for concurrent use: the chain
// and its commands are stateless between jobs, and all per-job state lives
// in the chain context.
type Extractor struct {
	env      Environment
	catalog  *model.Catalog
	resolver ClipResolver
	uploader storage.Uploader
	chain    cor.Chain
}

// NewExtractor wires the four-step pipeline once; every Process call reuses
// it with a fresh context.
func NewExtractor(env Environment, catalog *model.Catalog, resolver ClipResolver, uploader storage.Uploader) *Extractor {
	if env.JobTimeout <= 0 {
		env.JobTimeout = DefaultJobTimeout
	}
	if env.HTTPClient == nil {
		env.HTTPClient = http.DefaultClient
	}
	if env.Quality == "" {
		env.Quality = model.QualityMedium
	}

	chain := cor.NewBaseChain("clip_export")
	chain.AddCommand(commands.NewSourceDownload("source_download", env.HTTPClient))
	chain.AddCommand(commands.NewClipTrim("clip_trim", env.EncoderPath, env.JobTimeout))
	chain.AddCommand(commands.NewThumbnailGrab("thumbnail_grab", env.EncoderPath, env.JobTimeout))
	chain.AddCommand(commands.NewArtifactUpload("artifact_upload", uploader))

	return &Extractor{
		env:      env,
		catalog:  catalog,
		resolver: resolver,
		uploader: uploader,
		chain:    chain,
	}
}

// Preflight verifies the encoder binary is present and runnable. Called once
// before a batch starts; a failure here fails the whole batch before any
// item is attempted.
func (e *Extractor) Preflight(ctx context.Context) error {
	probe := exec.CommandContext(ctx, e.env.EncoderPath, "-version")
	if err := probe.Run(); err != nil {
		return &model.EncoderUnavailableError{Path: e.env.EncoderPath, Err: err}
	}
	return nil
}

// Process runs the full pipeline for one queue item and returns the clip's
// durable result. progress may be nil. The returned error is one of the
// typed pipeline errors; callers branch on the type, not the message.
func (e *Extractor) Process(ctx context.Context, item *model.ExportQueueItem, progress func(percent int)) (*model.ProcessClipResult, error) {
	resolved, err := e.resolver.ResolveClip(ctx, item.ClipID)
	if err != nil {
		return nil, fmt.Errorf("resolving clip %d: %w", item.ClipID, err)
	}

	spec, err := e.buildJobSpec(item, resolved)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(spec.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating job working directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(spec.WorkDir) }()

	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(commands.GetJobSpecParameterName(), spec)
	if progress != nil {
		chainCtx.Add(commands.GetProgressParameterName(), commands.ProgressFunc(progress))
	}
	defer chainCtx.Close()

	e.chain.Execute(chainCtx)

	if chainCtx.HasErrors() {
		return nil, chainCtx.FirstError()
	}
	result, ok := chainCtx.Get(commands.GetResultParameterName()).(*model.ProcessClipResult)
	if !ok {
		return nil, fmt.Errorf("pipeline finished without a result for item %s", item.ID)
	}
	return result, nil
}

// buildJobSpec resolves the catalog entries for the item and assembles the
// self-contained job specification the pipeline commands consume.
func (e *Extractor) buildJobSpec(item *model.ExportQueueItem, resolved *ResolvedClip) (*model.ExportJobSpec, error) {
	format, err := e.catalog.Format(item.Format)
	if err != nil {
		return nil, &model.ValidationError{Message: err.Error()}
	}
	strategy, err := e.catalog.Strategy(item.CroppingStrategy)
	if err != nil {
		return nil, &model.ValidationError{Message: err.Error()}
	}
	// Strategies that depend on analysis we do not run degrade to their
	// declared fallback, so "smart" still produces a deterministic crop.
	if strategy.Fallback != "" {
		if fallback, err := e.catalog.Strategy(strategy.Fallback); err == nil {
			strategy = fallback
		}
	}

	tempRoot := e.env.TempRoot
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}

	return &model.ExportJobSpec{
		SourceURL:      resolved.SourceURL,
		StartSeconds:   resolved.StartSeconds,
		EndSeconds:     resolved.EndSeconds,
		AspectRatio:    format.AspectRatio(),
		Width:          format.Width,
		Height:         format.Height,
		Strategy:       strategy,
		Quality:        e.env.Quality,
		DestinationKey: artifactKey(item, "mp4"),
		ThumbnailKey:   artifactKey(item, "jpg"),
		// Keyed by item ID so concurrent jobs never share a directory and a
		// retried item lands in a fresh one (the previous run removed it).
		WorkDir: filepath.Join(tempRoot, "clip-export", item.ID),
	}, nil
}

// artifactKey derives the object-storage key for an item's artifact. The key
// is a pure function of the item, which is what makes upload retries
// idempotent: a retry overwrites the same object instead of accumulating
// orphans.
func artifactKey(item *model.ExportQueueItem, ext string) string {
	return fmt.Sprintf("exports/%d/%s/%s/%s.%s", item.ClipID, item.Format, item.Platform, item.ID, ext)
}
