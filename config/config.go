// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable, lazily evaluated configuration readers.
//
// A [Reader] produces a [Value] which may or may not be set. Readers are
// combined with helpers like [Or], [Default] and [Map] so that a single
// setting can come from an environment variable, a file or a hard coded
// fallback without the consuming code caring where it came from.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrValueNotSet is returned by [Read] when a [Reader] did not produce a value.
var ErrValueNotSet = errors.New("config: value not set")

// Value is the possibly unset result of reading configuration.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is an adapter to allow the use of ordinary functions as [Reader]s.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// ReaderOf returns a [Reader] which always returns v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// EmptyReader returns a [Reader] which never has a value.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// Env reads the environment variable with the given name.
// Unset and empty variables are both treated as not set.
func Env(name string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return Value[string]{}, nil
		}
		return ValueOf(v), nil
	})
}

// Or returns the first set value of the given readers.
// Nil readers are skipped and the first error encountered is returned.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			if r == nil {
				continue
			}

			v, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, set := v.Value(); set {
				return v, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Default falls back to def when r does not produce a value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return Or(r, ReaderOf(def))
}

// Map transforms a set value read from r. Unset values are passed through untouched.
func Map[A, B any](r Reader[A], f func(context.Context, A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		if r == nil {
			return Value[B]{}, nil
		}

		va, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}

		a, set := va.Value()
		if !set {
			return Value[B]{}, nil
		}

		b, err := f(ctx, a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// Read reads the value from r and returns [ErrValueNotSet] if there was none.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrValueNotSet
	}

	v, err := r.Read(ctx)
	if err != nil {
		return zero, err
	}

	t, set := v.Value()
	if !set {
		return zero, ErrValueNotSet
	}
	return t, nil
}

// Must is like [Read] but panics on error.
// The panic value is always an error so it can be recovered by app.Run.
func Must[T any](ctx context.Context, r Reader[T]) T {
	t, err := Read(ctx, r)
	if err != nil {
		panic(fmt.Errorf("config: must read value: %w", err))
	}
	return t
}

// MustOr returns def if r is nil or does not produce a value.
// It panics if reading fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	t, err := Read(ctx, r)
	if errors.Is(err, ErrValueNotSet) {
		return def
	}
	if err != nil {
		panic(fmt.Errorf("config: must read value: %w", err))
	}
	return t
}

// IntFromString parses the string value of r as a base 10 int.
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, func(ctx context.Context, s string) (int, error) {
		return strconv.Atoi(s)
	})
}

// Float64FromString parses the string value of r as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, func(ctx context.Context, s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// DurationFromString parses the string value of r with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, func(ctx context.Context, s string) (time.Duration, error) {
		return time.ParseDuration(s)
	})
}

// BoolFromString parses the string value of r with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, func(ctx context.Context, s string) (bool, error) {
		return strconv.ParseBool(s)
	})
}
