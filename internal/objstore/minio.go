// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package objstore wraps MinIO for reading food logs from S3 compatible storage.
package objstore

import (
	"context"
	"fmt"
	"io"

	"github.com/z5labs/nutrition/aggregate"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient wraps a MinIO client for S3 operations.
type MinIOClient struct {
	mc *minio.Client
}

// NewMinIOClient creates a new MinIO client. No request is made until an object is read.
func NewMinIOClient(endpoint, accessKey, secretKey string, secure bool) (*MinIOClient, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return &MinIOClient{mc: mc}, nil
}

// GetObject stats then opens the object so a missing key fails before
// the first read instead of during parsing.
func (c *MinIOClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	_, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == minio.NoSuchKey || resp.Code == minio.NoSuchBucket {
			return nil, fmt.Errorf("%w: s3://%s/%s", aggregate.ErrInputNotFound, bucket, key)
		}
		return nil, err
	}

	return c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}
