// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package aggregate

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type storageFunc func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

func (f storageFunc) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return f(ctx, bucket, key)
}

func TestFileSource_Open(t *testing.T) {
	t.Run("will return ErrInputNotFound", func(t *testing.T) {
		t.Run("if the file does not exist", func(t *testing.T) {
			src := FileSource{Path: filepath.Join(t.TempDir(), "Nutrition-Summary.csv")}

			_, err := src.Open(context.Background())
			require.ErrorIs(t, err, ErrInputNotFound)
		})

		t.Run("if the path is a directory", func(t *testing.T) {
			src := FileSource{Path: t.TempDir()}

			_, err := src.Open(context.Background())
			require.ErrorIs(t, err, ErrInputNotFound)
		})
	})
}

func TestLoad(t *testing.T) {
	t.Run("will parse entries", func(t *testing.T) {
		t.Run("from a local file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Nutrition-Summary.csv")
			require.NoError(t, os.WriteFile(path, []byte("Date,Protein (g)\n2024-06-10,60\n"), 0o600))

			entries, err := Load(context.Background(), FileSource{Path: path})
			require.NoError(t, err)
			require.Len(t, entries, 1)
		})

		t.Run("from object storage", func(t *testing.T) {
			var gotBucket, gotKey string
			storage := storageFunc(func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
				gotBucket, gotKey = bucket, key
				return io.NopCloser(strings.NewReader("Date,Protein (g)\n2024-06-10,60\n")), nil
			})

			entries, err := Load(context.Background(), ObjectSource{Storage: storage, Bucket: "logs", Key: "june.csv"})
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Equal(t, "logs", gotBucket)
			require.Equal(t, "june.csv", gotKey)
		})
	})

	t.Run("will return the storage error", func(t *testing.T) {
		storageErr := errors.New("access denied")
		storage := storageFunc(func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
			return nil, storageErr
		})

		_, err := Load(context.Background(), ObjectSource{Storage: storage, Bucket: "logs", Key: "june.csv"})
		require.ErrorIs(t, err, storageErr)
	})
}

func TestParseObjectURL(t *testing.T) {
	testCases := []struct {
		Input  string
		Bucket string
		Key    string
		OK     bool
	}{
		{Input: "s3://logs/2024/june.csv", Bucket: "logs", Key: "2024/june.csv", OK: true},
		{Input: "Nutrition-Summary.csv"},
		{Input: "s3://logs"},
		{Input: "s3:///june.csv"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Input, func(t *testing.T) {
			bucket, key, ok := ParseObjectURL(testCase.Input)
			require.Equal(t, testCase.OK, ok)
			require.Equal(t, testCase.Bucket, bucket)
			require.Equal(t, testCase.Key, key)
		})
	}
}
