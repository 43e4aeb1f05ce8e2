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

// Package cloud holds the application configuration model and the shared
// service clients built from it. Configuration is loaded from TOML files
// with an environment-specific overlay; see LoadConfig in utils.go.
package cloud

// EncoderConfig describes the ffmpeg binary and the bounds applied to each
// invocation of it.
type EncoderConfig struct {
	// Path is the encoder binary. A bare "ffmpeg" resolves through PATH.
	Path string `toml:"path"`
	// TimeoutSeconds bounds one encode; zero uses the worker default.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Quality is the deployment-wide tier: high, medium or low.
	Quality string `toml:"quality"`
	// TempDirectory is where per-job working directories are created. Empty
	// means the system temp directory.
	TempDirectory string `toml:"temp_directory"`
}

// GCSStorageConfig configures the Google Cloud Storage backend.
type GCSStorageConfig struct {
	Bucket string `toml:"bucket"`
	// SignerServiceAccountEmail, when set, turns result URLs into V4-signed
	// links signed through the IAM credentials API.
	SignerServiceAccountEmail string `toml:"signer_service_account_email"`
}

// S3StorageConfig configures the Amazon S3 backend.
type S3StorageConfig struct {
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Presign   bool   `toml:"presign"`
}

// StorageConfig selects and configures the artifact storage backend.
type StorageConfig struct {
	// Backend is "gcs" or "s3".
	Backend string `toml:"backend"`
	// MaxUploadsPerSecond rate-limits uploads client-side; zero disables
	// the limiter.
	MaxUploadsPerSecond int              `toml:"max_uploads_per_second"`
	GCS                 GCSStorageConfig `toml:"gcs"`
	S3                  S3StorageConfig  `toml:"s3"`
}

// ExportConfig tunes the batch pipeline itself.
type ExportConfig struct {
	// ChunkSize is how many items run concurrently; zero uses the executor
	// default.
	ChunkSize int `toml:"chunk_size"`
	// ClipSourceBaseURL is where the default clip resolver fetches source
	// videos from, by clip ID.
	ClipSourceBaseURL string `toml:"clip_source_base_url"`
	// HistoryPath is the directory of the embedded history database. Empty
	// disables history.
	HistoryPath string `toml:"history_path"`
	// HistoryRetentionDays is how long settled outcomes are kept.
	HistoryRetentionDays int `toml:"history_retention_days"`
}

// Config is the root of the application configuration, loaded from TOML.
type Config struct {
	Application struct {
		Name            string `toml:"name"`
		GoogleProjectId string `toml:"google_project_id"`
		GoogleLocation  string `toml:"location"`
		// CredentialsFile optionally points at a service account key used
		// for the Google clients; empty uses application default
		// credentials.
		CredentialsFile string `toml:"credentials_file"`
	} `toml:"application"`
	Encoder EncoderConfig `toml:"encoder"`
	Storage StorageConfig `toml:"storage"`
	Export  ExportConfig  `toml:"export"`
}

// NewConfig creates an empty Config ready for the loader to populate.
func NewConfig() *Config {
	return &Config{}
}
