// Package commands implements CLI command handlers for scenariominer.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Sumatoshi-tech/scenariominer/pkg/config"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
	"github.com/Sumatoshi-tech/scenariominer/pkg/report"
	"github.com/Sumatoshi-tech/scenariominer/pkg/version"
)

const stdoutPath = "-"

const metricsShutdownTimeout = 5 * time.Second

// writeReport encodes rep to path, or to stdout when path is empty or "-".
// An empty format is inferred from the path extension and defaults to JSON.
func writeReport(stdout io.Writer, path, format string, rep report.Report) error {
	if format == "" {
		format = report.FormatJSON

		if inferred, ok := report.FormatFromPath(path); ok {
			format = inferred
		}
	}

	codec, err := report.CodecFor(format)
	if err != nil {
		return err
	}

	if path == "" || path == stdoutPath {
		return codec.Encode(stdout, rep)
	}

	file, err := report.Create(path)
	if err != nil {
		return err
	}

	encodeErr := codec.Encode(file, rep)

	return errors.Join(encodeErr, file.Close())
}

// loadConfig reads the configuration file, or the default search path when
// configPath is empty.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func initObservability(cfg *config.Config, mode observability.AppMode) (observability.Providers, error) {
	providers, err := observability.Init(cfg.Observability(mode, version.Version))
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

func shutdownObservability(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// serveMetrics exposes handler on addr under /metrics until the returned
// stop function is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	if addr == "" || handler == nil {
		return func() {}, nil
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: metricsShutdownTimeout}

	go func() {
		serveErr := server.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(ctx)
	}, nil
}
