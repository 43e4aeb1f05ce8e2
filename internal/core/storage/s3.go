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
// file implements the Amazon S3 (and S3-compatible) backend, used by
// deployments that keep their media bucket on AWS. Result URLs are presigned
// GET links with the same TTL policy as the GCS backend.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clipforge/clip-export/internal/core/model"
)

// S3Config carries the static settings for the S3 backend. Credentials are
// provided explicitly rather than discovered so the worker can target a
// bucket in a different account than the one it runs in.
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Presign controls whether result URLs are presigned GET links. When
	// false the virtual-hosted public URL is returned.
	Presign bool
}

// S3Uploader stores artifacts in an S3 bucket via the concurrent multipart
// upload manager.
type S3Uploader struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	region     string
	presign    bool
	presignTTL time.Duration
}

// NewS3Uploader builds an S3-backed uploader from static credentials.
func NewS3Uploader(cfg S3Config) *S3Uploader {
	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})
	return &S3Uploader{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		presign:    cfg.Presign,
		presignTTL: DefaultSignedURLTTL,
	}
}

// Upload writes the payload under key and returns its client-facing URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, key string, contentType string) (*UploadResult, error) {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, &model.UploadError{Key: key, Err: err}
	}

	if !u.presign {
		return &UploadResult{
			URL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key),
			Key: key,
		}, nil
	}

	presigned, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.presignTTL))
	if err != nil {
		return nil, &model.UploadError{Key: key, Err: err}
	}
	return &UploadResult{URL: presigned.URL, Key: key}, nil
}
