// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	bedrockcfg "github.com/z5labs/bedrock/config"
)

// YAMLSource renders r as a Go text template and parses the result as YAML.
// Two template functions are available:
//   - env - substitutes the named environment variable, or nil if unset
//   - default - returns the first argument if the second is nil
func YAMLSource(r io.Reader) bedrockcfg.Source {
	return bedrockcfg.FromYaml(
		bedrockcfg.RenderTextTemplate(
			r,
			bedrockcfg.TemplateFunc("env", func(key string) any {
				v, ok := os.LookupEnv(key)
				if ok {
					return v
				}
				return nil
			}),
			bedrockcfg.TemplateFunc("default", func(def, v any) any {
				if v == nil {
					return def
				}
				return v
			}),
		),
	)
}

// UnmarshalYAML decodes the YAML document read from r into a T.
// Struct fields are matched using the `config` struct tag.
func UnmarshalYAML[T any](r Reader[io.Reader]) Reader[T] {
	return Map(r, func(ctx context.Context, rd io.Reader) (T, error) {
		var t T

		m, err := bedrockcfg.Read(YAMLSource(rd))
		if err != nil {
			return t, fmt.Errorf("config: read yaml: %w", err)
		}

		err = m.Unmarshal(&t)
		if err != nil {
			return t, fmt.Errorf("config: unmarshal yaml: %w", err)
		}
		return t, nil
	})
}

// YAMLFile reads and decodes the YAML file whose path is read from path.
// If path is unset the returned reader is unset as well.
func YAMLFile[T any](path Reader[string]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		p, err := Read(ctx, path)
		if errors.Is(err, ErrValueNotSet) {
			return Value[T]{}, nil
		}
		if err != nil {
			return Value[T]{}, err
		}

		f, err := os.Open(p)
		if err != nil {
			return Value[T]{}, fmt.Errorf("config: open yaml file: %w", err)
		}
		defer f.Close()

		return UnmarshalYAML[T](ReaderOf[io.Reader](f)).Read(ctx)
	})
}
