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

// Package worker_test exercises the extraction pipeline end to end against a
// local HTTP source server, a stub encoder binary and an in-memory artifact
// store. TestMain loads the shared test configuration and initializes
// structured logging once for the whole suite.
package worker_test

import (
	"os"
	"testing"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/clipforge/clip-export/internal/cloud"
	"github.com/clipforge/clip-export/internal/telemetry"
	test "github.com/clipforge/clip-export/internal/testutil"
)

const tName = "github.com/clipforge/clip-export/tests/worker"

var (
	config *cloud.Config
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	config = test.GetConfig()
	telemetry.SetupLogging()
	logger.Info("starting worker pipeline tests", "quality", config.Encoder.Quality)

	os.Exit(m.Run())
}
