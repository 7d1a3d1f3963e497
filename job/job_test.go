// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package job

import (
	"context"
	"errors"
	"testing"

	"github.com/z5labs/nutrition/app"

	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the handler fails to build", func(t *testing.T) {
			buildErr := errors.New("failed to build")
			b := Build[Handler]("test", app.BuilderFunc[Handler](func(ctx context.Context) (Handler, error) {
				return nil, buildErr
			}))

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
		})
	})
}

func TestRuntime_Run(t *testing.T) {
	t.Run("will run the handler exactly once", func(t *testing.T) {
		calls := 0
		b := Build[HandlerFunc]("test", app.BuilderFunc[HandlerFunc](func(ctx context.Context) (HandlerFunc, error) {
			return func(ctx context.Context) error {
				calls++
				return nil
			}, nil
		}))

		err := app.Run(context.Background(), b)
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("will return the handler error", func(t *testing.T) {
		handleErr := errors.New("failed to handle")
		b := Build[HandlerFunc]("test", app.BuilderFunc[HandlerFunc](func(ctx context.Context) (HandlerFunc, error) {
			return func(ctx context.Context) error {
				return handleErr
			}, nil
		}))

		err := app.Run(context.Background(), b)
		require.ErrorIs(t, err, handleErr)
	})

	t.Run("will recover a panic", func(t *testing.T) {
		t.Run("if the handler panics", func(t *testing.T) {
			b := Build[HandlerFunc]("test", app.BuilderFunc[HandlerFunc](func(ctx context.Context) (HandlerFunc, error) {
				return func(ctx context.Context) error {
					panic("boom")
				}, nil
			}))

			err := app.Run(context.Background(), b)

			var perr app.PanicError
			require.ErrorAs(t, err, &perr)
		})
	})
}
