package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/build"
	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// Options configures Serve.
type Options struct {
	Config *config.Config
	// Build is passed to every build; Mode is forced to development.
	Build build.Options
	// Quiet is the debounce period; zero uses DefaultQuietPeriod.
	Quiet time.Duration
	// Ready, when set, receives the listening address once the server accepts connections.
	Ready func(addr string)
}

// Serve runs the initial build, then serves the output tree with live reload
// and rebuilds on source changes until ctx is canceled.
func Serve(ctx context.Context, opts Options) error {
	cfg := opts.Config
	reg := prom.NewRegistry()
	bopts := opts.Build
	bopts.Mode = config.ModeDevelopment
	if bopts.Recorder == nil {
		bopts.Recorder = metrics.NewPrometheusRecorder(reg)
	}

	hub := NewLiveReloadHub()
	status := &BuildStatus{}
	rb := NewRebuilder(func(ctx context.Context) (string, error) {
		report, err := build.Run(ctx, cfg, bopts)
		if err != nil {
			return "", err
		}
		return report.BuildID, nil
	}, hub, status)

	rb.BuildNow(ctx)
	if ctx.Err() != nil {
		return nil
	}

	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	watcher, err := NewWatcher([]string{cfg.SourceRoot()}, []string{cfg.PostprocessPath()}, quiet, rb.Request)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "start source watcher").
			WithContext("path", cfg.SourceRoot()).Build()
	}
	defer func() { _ = watcher.Close() }()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "listen").
			WithContext("addr", addr).Build()
	}

	srv := &http.Server{
		Handler: NewHandler(HandlerOptions{
			Root:    cfg.OutputRoot(),
			Hub:     hub,
			Status:  status,
			Metrics: metrics.HTTPHandler(reg),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go rb.Run(workerCtx)
	go watcher.Run(workerCtx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	slog.Info("Preview server listening", slog.String("url", fmt.Sprintf("http://%s", ln.Addr())))
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ferrors.WrapError(err, ferrors.CategoryServer, "preview server failed").Build()
		}
		return nil
	}

	slog.Info("Shutting down preview server...")
	hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	return nil
}
