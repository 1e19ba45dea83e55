package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/api"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured proxy over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			shutdownTimeout, err := cfg.ShutdownTimeout()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			metrics := proxy.NewMetrics()
			tel, err := newTelemetry(metrics)
			if err != nil {
				return err
			}
			p, closeProxy, err := buildProxy(cfg, metrics, logger)
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", cfg.Address())
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Address(), err)
			}
			return serve(cmd.Context(), listener, api.NewRouter(p, tel.handler, logger.Named("api")), shutdownTimeout, logger,
				closeProxy, tel.Shutdown)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen host")
	cmd.Flags().IntVar(&port, "port", 12345, "listen port")
	return cmd
}

// serve runs handler on listener until ctx is done, then drains requests
// and runs the closers.
func serve(ctx context.Context, listener net.Listener, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger, closers ...closer) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	addr := listener.Addr().(*net.TCPAddr)
	logger.Info("Serving span queries",
		zap.String("host", addr.IP.String()),
		zap.String("port", strconv.Itoa(addr.Port)))

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	closers = append([]closer{srv.Shutdown}, closers...)
	err := closeAll(shutdownCtx, closers...)

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}
