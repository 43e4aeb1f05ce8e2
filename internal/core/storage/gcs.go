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

// Package storage pushes encoded artifacts to durable object storage. This
// file implements the Google Cloud Storage backend. When a signer service
// account is configured, result URLs are V4-signed through the IAM
// credentials API (no local key material needed on GCP infrastructure);
// otherwise the public object URL is returned and bucket ACLs decide access.
package storage

import (
	"context"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	gcs "cloud.google.com/go/storage"

	"github.com/clipforge/clip-export/internal/core/model"
)

// DefaultSignedURLTTL is how long generated result links stay valid. Long
// enough for an operator to review a finished batch, short enough that a
// leaked link goes stale.
const DefaultSignedURLTTL = 24 * time.Hour

// GCSUploader stores artifacts in a Google Cloud Storage bucket.
type GCSUploader struct {
	client       *gcs.Client
	iamClient    *credentials.IamCredentialsClient
	bucket       string
	signerEmail  string
	signedURLTTL time.Duration
}

// NewGCSUploader builds a GCS-backed uploader. iamClient and signerEmail may
// be zero-valued, in which case public URLs are returned instead of signed
// ones.
func NewGCSUploader(client *gcs.Client, iamClient *credentials.IamCredentialsClient, bucket string, signerEmail string) *GCSUploader {
	return &GCSUploader{
		client:       client,
		iamClient:    iamClient,
		bucket:       bucket,
		signerEmail:  signerEmail,
		signedURLTTL: DefaultSignedURLTTL,
	}
}

// Upload streams the payload into the bucket under key. Writer.Close is what
// finalizes a GCS upload, so a close failure is reported as an upload
// failure, not ignored.
func (u *GCSUploader) Upload(ctx context.Context, data []byte, key string, contentType string) (*UploadResult, error) {
	writer := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, &model.UploadError{Key: key, Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &model.UploadError{Key: key, Err: err}
	}

	url, err := u.resultURL(ctx, key)
	if err != nil {
		return nil, &model.UploadError{Key: key, Err: err}
	}
	return &UploadResult{URL: url, Key: key}, nil
}

// resultURL produces the client-facing address for an object that is already
// stored.
func (u *GCSUploader) resultURL(ctx context.Context, key string) (string, error) {
	if u.signerEmail == "" || u.iamClient == nil {
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, key), nil
	}

	opts := &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		GoogleAccessID: u.signerEmail,
		Expires:        time.Now().Add(u.signedURLTTL),
		// SignBytes delegates the signature to the IAM credentials API,
		// which works on GCP infrastructure without a local service
		// account key file.
		SignBytes: func(b []byte) ([]byte, error) {
			resp, err := u.iamClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", u.signerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		},
	}

	url, err := u.client.Bucket(u.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", u.bucket, key, err)
	}
	return url, nil
}
