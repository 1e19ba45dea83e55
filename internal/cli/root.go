// Package cli implements the otel-trace-access command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/config"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
	"github.com/deepaksharma/otel-trace-access/internal/proxy/opensearch"
	"github.com/deepaksharma/otel-trace-access/internal/proxy/rest"
	"github.com/deepaksharma/otel-trace-access/internal/snapshot"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "otel-trace-access",
		Short:         "Convert, query and serve OpenTelemetry spans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newConvertCommand(),
		newListFormatsCommand(),
		newQueryCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

// closer releases whatever a proxy holds.
type closer func(ctx context.Context) error

// buildProxy creates the configured proxy, wrapped with metrics.
func buildProxy(cfg *config.Config, metrics *proxy.Metrics, logger *zap.Logger) (proxy.Proxy, closer, error) {
	noop := func(context.Context) error { return nil }
	kind := cfg.Proxy.Kind

	var p proxy.Proxy
	closeFn := closer(noop)
	switch kind {
	case config.KindStatic:
		static, stop, err := buildStatic(cfg.Proxy.Static, logger)
		if err != nil {
			return nil, nil, err
		}
		p, closeFn = static, stop
	case config.KindOpenSearch:
		client, err := opensearch.NewClient(cfg.Proxy.OpenSearch.Client)
		if err != nil {
			return nil, nil, err
		}
		p = opensearch.NewProxy(cfg.Proxy.OpenSearch, proxy.StaticResolver(client), logger.Named("opensearch"))
	case config.KindREST:
		p = rest.NewProxy(cfg.Proxy.REST, rest.AuthorizationResolver(nil), logger.Named("rest"))
	default:
		return nil, nil, fmt.Errorf("unknown proxy kind %q", kind)
	}

	logger.Info("Proxy created", zap.String("kind", kind))
	return proxy.Instrument(p, kind, metrics, logger), closeFn, nil
}

func buildStatic(cfg config.StaticConfig, logger *zap.Logger) (*proxy.StaticProxy, closer, error) {
	logger = logger.Named("static")
	format, err := snapshot.ParseFormat(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	td := &otlp.TracesData{}
	if cfg.Path != "" {
		if td, err = snapshot.Load(cfg.Path, format); err != nil {
			return nil, nil, fmt.Errorf("failed to load static spans: %w", err)
		}
	}
	static := proxy.NewStaticProxy(td, logger)

	if cfg.ReloadSchedule == "" {
		return static, func(context.Context) error { return nil }, nil
	}
	reloader, err := snapshot.NewReloader(cfg.ReloadSchedule, cfg.Path, format, static, logger)
	if err != nil {
		return nil, nil, err
	}
	reloader.Start()
	return static, reloader.Stop, nil
}

// closeAll runs every closer and joins their errors.
func closeAll(ctx context.Context, closers ...closer) error {
	var err error
	for _, c := range closers {
		err = multierr.Append(err, c(ctx))
	}
	return err
}
