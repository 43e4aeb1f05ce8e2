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
// service clients built from it. This file is the dependency container: it
// turns the configuration into live clients once at startup and hands the
// bundle to the rest of the application.
package cloud

import (
	"context"
	"fmt"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	objstore "github.com/clipforge/clip-export/internal/core/storage"
)

// ServiceClients bundles every external connection the exporter uses. One
// instance is created at startup and shared; all fields are safe for
// concurrent use.
type ServiceClients struct {
	// StorageClient and IAMClient are only set when the GCS backend is
	// selected; the S3 backend needs neither.
	StorageClient *gcs.Client
	IAMClient     *credentials.IamCredentialsClient
	// Uploader is the configured artifact store, already wrapped with the
	// client-side rate limiter when one is configured.
	Uploader objstore.Uploader
}

// Close releases the underlying client connections. Connections are normally
// tied to the root context, but tests and controlled shutdowns want an
// explicit release.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// NewCloudServiceClients builds the service clients for the configured
// storage backend.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	clients := &ServiceClients{}

	var opts []option.ClientOption
	if config.Application.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.Application.CredentialsFile))
	}

	switch config.Storage.Backend {
	case "", "gcs":
		sc, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		clients.StorageClient = sc

		// The IAM client is only needed for signing result URLs; without a
		// signer email configured there is nothing to sign with.
		if config.Storage.GCS.SignerServiceAccountEmail != "" {
			ic, err := credentials.NewIamCredentialsClient(ctx, opts...)
			if err != nil {
				clients.Close()
				return nil, fmt.Errorf("creating IAM credentials client: %w", err)
			}
			clients.IAMClient = ic
		}

		clients.Uploader = objstore.NewGCSUploader(
			sc,
			clients.IAMClient,
			config.Storage.GCS.Bucket,
			config.Storage.GCS.SignerServiceAccountEmail,
		)

	case "s3":
		clients.Uploader = objstore.NewS3Uploader(objstore.S3Config{
			Region:    config.Storage.S3.Region,
			Bucket:    config.Storage.S3.Bucket,
			AccessKey: config.Storage.S3.AccessKey,
			SecretKey: config.Storage.S3.SecretKey,
			Presign:   config.Storage.S3.Presign,
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	if config.Storage.MaxUploadsPerSecond > 0 {
		clients.Uploader = objstore.NewQuotaAwareUploader(clients.Uploader, config.Storage.MaxUploadsPerSecond)
	}

	return clients, nil
}
