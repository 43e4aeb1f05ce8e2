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

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/clipforge/clip-export/internal/cloud"
	"github.com/clipforge/clip-export/internal/core/executor"
	"github.com/clipforge/clip-export/internal/core/history"
	"github.com/clipforge/clip-export/internal/core/model"
	"github.com/clipforge/clip-export/internal/core/services"
	"github.com/clipforge/clip-export/internal/core/worker"
)

// StateManager holds the shared components for the application.
type StateManager struct {
	config        *cloud.Config
	cloud         *cloud.ServiceClients
	history       *history.Store
	exportService *services.ExportService
}

var state = &StateManager{}

func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// InitState builds the dependency graph: cloud clients, history store, the
// extraction worker, the batch executor and the export service on top.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	if config.Export.HistoryPath != "" {
		hist, err := history.Open(config.Export.HistoryPath)
		if err != nil {
			panic(err)
		}
		state.history = hist

		retentionDays := config.Export.HistoryRetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		hist.StartCleanupTimer(ctx, time.Duration(retentionDays)*24*time.Hour)
	}

	encoderPath := config.Encoder.Path
	if encoderPath == "" {
		encoderPath = "ffmpeg"
	}

	catalog := model.NewCatalog()
	resolver := worker.NewHTTPClipResolver(config.Export.ClipSourceBaseURL, nil)
	extractor := worker.NewExtractor(worker.Environment{
		EncoderPath: encoderPath,
		TempRoot:    config.Encoder.TempDirectory,
		Quality:     model.QualityTier(config.Encoder.Quality),
		JobTimeout:  time.Duration(config.Encoder.TimeoutSeconds) * time.Second,
	}, catalog, resolver, cloudClients.Uploader)

	batchExecutor := executor.NewBatchExecutor("batch_executor", extractor, config.Export.ChunkSize)
	state.exportService = services.NewExportService(catalog, batchExecutor, extractor, state.history)
}
