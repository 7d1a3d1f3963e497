// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
)

// HookFunc is run once the inner runtime has returned.
type HookFunc func(context.Context) error

// HookRegistry collects post-run hooks while a runtime is being built.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers a hook. Hooks run in registration order.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

// OnClose registers the Close method of a client, e.g. a broker connection or output file.
func (r *HookRegistry) OnClose(c interface{ Close() error }) {
	r.OnPostRun(func(context.Context) error {
		return c.Close()
	})
}

type hookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run executes the inner runtime and then every registered hook.
//
// Hooks receive a context which is no longer cancelled by shutdown signals
// so cleanup can still complete after SIGTERM. All hooks run regardless of
// earlier failures and every error is joined.
func (rt hookRuntime) Run(ctx context.Context) error {
	runtimeErr := rt.inner.Run(ctx)

	hookCtx := context.WithoutCancel(ctx)

	var hookErrs error
	for _, hook := range rt.hooks {
		err := hook(hookCtx)
		if err != nil {
			hookErrs = errors.Join(hookErrs, err)
		}
	}

	return errors.Join(runtimeErr, hookErrs)
}

// WithHooks wraps a builder function with post-run hook support.
//
//	builder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
//	    sink, err := summary.OpenFile(path)
//	    if err != nil {
//	        return nil, err
//	    }
//	    h.OnClose(sink)
//	    return buildConsumer(ctx, sink)
//	})
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[Runtime] {
	return BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		registry := &HookRegistry{}

		inner, err := f(ctx, registry)
		if err != nil {
			// Resources opened before the failure still need releasing.
			cleanup := hookRuntime{
				inner: RuntimeFunc(func(context.Context) error { return nil }),
				hooks: registry.hooks,
			}
			return nil, errors.Join(err, cleanup.Run(ctx))
		}

		return hookRuntime{
			inner: inner,
			hooks: registry.hooks,
		}, nil
	})
}
