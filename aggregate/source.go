// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// ErrInputNotFound is returned when the food log does not exist.
var ErrInputNotFound = errors.New("aggregate: input not found")

// Source opens a food log for reading.
type Source interface {
	Open(context.Context) (io.ReadCloser, error)
}

// FileSource reads a food log from the local filesystem.
type FileSource struct {
	Path string
}

// Open implements the [Source] interface.
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, s.Path)
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrInputNotFound, s.Path)
	}
	return f, nil
}

// Storage retrieves objects from an S3 compatible store.
type Storage interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ObjectSource reads a food log from object storage.
type ObjectSource struct {
	Storage Storage
	Bucket  string
	Key     string
}

// Open implements the [Source] interface.
func (s ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Storage.GetObject(ctx, s.Bucket, s.Key)
}

// ParseObjectURL splits an s3://bucket/key URL. It reports false if
// location is not an s3 URL.
func ParseObjectURL(location string) (bucket, key string, ok bool) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", false
	}

	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Load opens src and parses its food log entries.
func Load(ctx context.Context, src Source) ([]Entry, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadEntries(rc)
}
