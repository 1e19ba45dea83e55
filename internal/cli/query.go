package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/ss4o"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

type queryOptions struct {
	from, to           string
	since              time.Duration
	selectors          []string
	resourceAttributes []string
	scopeAttributes    []string
	spanAttributes     []string
	spanName           string
	pageSize           int
}

func newQueryCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the configured proxy and print every page as an OTLP-JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			q, err := opts.query(time.Now())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p, closeProxy, err := buildProxy(cfg, proxy.NewMetrics(), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeAll(cmd.Context(), closeProxy); err != nil {
					logger.Warn("Failed to close proxy", zap.Error(err))
				}
			}()

			w := bufio.NewWriter(cmd.OutOrStdout())
			pages := 0
			for page, err := range proxy.QueryAll(cmd.Context(), p, q) {
				if err != nil {
					return err
				}
				if err := otlp.WriteJSON(w, page); err != nil {
					return err
				}
				if err := w.WriteByte('\n'); err != nil {
					return err
				}
				pages++
			}
			logger.Debug("Query completed", zap.Int("pages", pages))
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from-time", "", "only spans ending at or after this RFC 3339 time")
	f.StringVar(&opts.to, "to-time", "", "only spans starting at or before this RFC 3339 time")
	f.DurationVar(&opts.since, "since", 0, "only spans ending within this duration of now")
	f.StringArrayVar(&opts.selectors, "span", nil, "TRACE_ID or TRACE_ID/SPAN_ID to select, repeatable")
	f.StringArrayVar(&opts.resourceAttributes, "resource-attribute", nil, "KEY or KEY=VALUE resource attribute filter, repeatable")
	f.StringArrayVar(&opts.scopeAttributes, "scope-attribute", nil, "KEY or KEY=VALUE scope attribute filter, repeatable")
	f.StringArrayVar(&opts.spanAttributes, "span-attribute", nil, "KEY or KEY=VALUE span attribute filter, repeatable")
	f.StringVar(&opts.spanName, "span-name", "", "exact span name")
	f.IntVar(&opts.pageSize, "page-size", 0, "page size hint for paginated proxies")
	return cmd
}

func (o *queryOptions) query(now time.Time) (proxy.Query, error) {
	var q proxy.Query
	var err error

	if q.From, err = parseFlagTime("from-time", o.from); err != nil {
		return q, err
	}
	if q.To, err = parseFlagTime("to-time", o.to); err != nil {
		return q, err
	}
	if o.since > 0 {
		if !q.From.IsZero() {
			return q, fmt.Errorf("--since and --from-time are mutually exclusive")
		}
		q.From = now.Add(-o.since)
	}

	for _, s := range o.selectors {
		traceID, spanID, _ := strings.Cut(s, "/")
		if traceID == "" {
			return q, fmt.Errorf("invalid --span %q: trace id is required", s)
		}
		q.Selectors = append(q.Selectors, proxy.Selector{TraceID: traceID, SpanID: spanID})
	}

	if q.ResourceAttributes, err = attribute.ParseFilter(o.resourceAttributes); err != nil {
		return q, err
	}
	if q.ScopeAttributes, err = attribute.ParseFilter(o.scopeAttributes); err != nil {
		return q, err
	}
	if q.SpanAttributes, err = attribute.ParseFilter(o.spanAttributes); err != nil {
		return q, err
	}
	q.SpanName = o.spanName
	if o.pageSize < 0 {
		return q, fmt.Errorf("--page-size must not be negative")
	}
	q.PageSize = o.pageSize
	return q, nil
}

func parseFlagTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ns, err := ss4o.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return time.Unix(0, ns).UTC(), nil
}
