package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/graphlens/internal/watch"
	httpAdapter "github.com/aretw0/graphlens/pkg/adapters/http"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions controls Serve.
type ServeOptions struct {
	Addr string
	// WatchDir, when set, loads matching files from the directory as they
	// change.
	WatchDir    string
	InitialScan bool
	// Ready, if set, receives the bound address once the listener is open.
	Ready func(addr string)
}

// Serve runs the HTTP API, and the directory watcher when configured,
// until ctx is cancelled. Shutdown waits up to five seconds for requests
// in flight.
func Serve(ctx context.Context, app *App, opts ServeOptions) error {
	handler, err := httpAdapter.NewHandler(app.Viewer,
		httpAdapter.WithLogger(app.Logger),
		httpAdapter.WithMetrics(app.Metrics),
	)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = app.Config.Server.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info("Starting graphlens server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		app.Logger.Info("Server stopped gracefully")
		return nil
	})

	if opts.WatchDir != "" {
		w, err := watch.New(opts.WatchDir, app.Viewer,
			watch.WithPattern(app.Config.Watch.Pattern),
			watch.WithDebounce(app.Config.WatchDebounce()),
			watch.WithInitialScan(opts.InitialScan),
			watch.WithLogger(app.Logger),
		)
		if err != nil {
			_ = ln.Close()
			return err
		}
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}
	return g.Wait()
}
