// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http runs an [http.Handler] as an app.Runtime.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/nutrition/app"
	"github.com/z5labs/nutrition/config"

	"github.com/sourcegraph/conc/pool"
)

// DefaultAddr is used when a [TCPListener] has no address configured.
const DefaultAddr = ":8090"

// TCPListener reads as a TCP [net.Listener] bound to Addr.
type TCPListener struct {
	Addr config.Reader[string]
}

// Read implements the [config.Reader] interface.
func (tcpLn TCPListener) Read(ctx context.Context) (config.Value[net.Listener], error) {
	addr := config.MustOr(ctx, DefaultAddr, tcpLn.Addr)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return config.Value[net.Listener]{}, err
	}
	return config.ValueOf(ln), nil
}

// AddrFromEnv reads the listen address from NUTRITION_HEALTH_ADDR.
func AddrFromEnv() config.Reader[string] {
	return config.Env("NUTRITION_HEALTH_ADDR")
}

// Server configures an [http.Server]. Unset timeouts fall back to the
// defaults applied by [Build].
type Server struct {
	Listener          config.Reader[net.Listener]
	ReadTimeout       config.Reader[time.Duration]
	ReadHeaderTimeout config.Reader[time.Duration]
	WriteTimeout      config.Reader[time.Duration]
	IdleTimeout       config.Reader[time.Duration]
}

// ServerFromEnv listens on [AddrFromEnv] and reads its timeouts from
// HTTP_READ_TIMEOUT, HTTP_READ_HEADER_TIMEOUT, HTTP_WRITE_TIMEOUT and
// HTTP_IDLE_TIMEOUT.
func ServerFromEnv() Server {
	return Server{
		Listener:          TCPListener{Addr: AddrFromEnv()},
		ReadTimeout:       config.DurationFromString(config.Env("HTTP_READ_TIMEOUT")),
		ReadHeaderTimeout: config.DurationFromString(config.Env("HTTP_READ_HEADER_TIMEOUT")),
		WriteTimeout:      config.DurationFromString(config.Env("HTTP_WRITE_TIMEOUT")),
		IdleTimeout:       config.DurationFromString(config.Env("HTTP_IDLE_TIMEOUT")),
	}
}

// App serves a handler until its context is cancelled.
type App struct {
	ls  net.Listener
	srv *http.Server
}

// Addr returns the address the server is listening on.
func (a App) Addr() net.Addr {
	return a.ls.Addr()
}

// Run implements the [app.Runtime] interface.
//
// The server is shut down gracefully once ctx is cancelled and a clean
// shutdown returns nil.
func (a App) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx)

	p.Go(func(ctx context.Context) error {
		return a.srv.Serve(a.ls)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return a.srv.Shutdown(context.WithoutCancel(ctx))
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Build binds the handler built by b to a server configured by srv.
//
// Defaults:
//   - ReadTimeout: 5 seconds
//   - ReadHeaderTimeout: 2 seconds
//   - WriteTimeout: 10 seconds
//   - IdleTimeout: 120 seconds
func Build(srv Server, b app.Builder[http.Handler]) app.Builder[App] {
	return app.Bind(b, func(h http.Handler) app.Builder[App] {
		return app.BuilderFunc[App](func(ctx context.Context) (App, error) {
			ln, err := config.Read(ctx, srv.Listener)
			if err != nil {
				return App{}, err
			}

			httpServer := &http.Server{
				Handler:           h,
				ReadTimeout:       config.MustOr(ctx, 5*time.Second, srv.ReadTimeout),
				ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, srv.ReadHeaderTimeout),
				WriteTimeout:      config.MustOr(ctx, 10*time.Second, srv.WriteTimeout),
				IdleTimeout:       config.MustOr(ctx, 120*time.Second, srv.IdleTimeout),
			}

			return App{ls: ln, srv: httpServer}, nil
		})
	})
}
