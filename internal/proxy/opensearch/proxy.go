// Package opensearch implements a proxy over a search index of span
// documents in the simple schema for observability layout.
package opensearch

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/ss4o"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

const (
	// DefaultIndex is the index data prepper writes trace documents to.
	DefaultIndex = "ss4o_traces-default-namespace"

	// DefaultPageSize is the number of hits requested per page.
	DefaultPageSize = 100
)

// Config defines the index proxy settings.
type Config struct {
	Client   ClientConfig `mapstructure:"client"`
	Index    string       `mapstructure:"index"`
	PageSize int          `mapstructure:"page_size"`
	Fields   FieldMapping `mapstructure:"fields"`
}

// DefaultConfig returns the index proxy defaults.
func DefaultConfig() Config {
	return Config{
		Index:    DefaultIndex,
		PageSize: DefaultPageSize,
		Fields:   DefaultFieldMapping(),
	}
}

// Validate checks the index proxy settings.
func (c *Config) Validate() error {
	if c.Index == "" {
		return fmt.Errorf("index must not be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.Fields.StartTime == "" || c.Fields.EndTime == "" {
		return fmt.Errorf("start_time and end_time field names must be set")
	}
	return nil
}

// Proxy answers queries from a search index. Each page is sorted by start
// time; a full page yields the start time of its last hit as the token for
// the next one. Spans sharing that exact start time across a page boundary
// may be skipped or repeated.
type Proxy struct {
	cfg     Config
	resolve proxy.ResolverFunc[Searcher]
	logger  *zap.Logger
}

// NewProxy creates an index proxy. resolve picks the searcher to use for the
// caller attached to the query context.
func NewProxy(cfg Config, resolve proxy.ResolverFunc[Searcher], logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Fields == (FieldMapping{}) {
		cfg.Fields = DefaultFieldMapping()
	}
	return &Proxy{cfg: cfg, resolve: resolve, logger: logger}
}

// QueryPage runs one search request.
func (p *Proxy) QueryPage(ctx context.Context, q proxy.Query) otlp.Seq[proxy.Result] {
	return func(yield func(proxy.Result, error) bool) {
		if q.PageToken != nil {
			if _, err := ss4o.ParseTime(string(q.PageToken)); err != nil {
				yield(proxy.Result{}, fmt.Errorf("%w: not a start time", proxy.ErrInvalidPageToken))
				return
			}
		}

		pageSize := q.PageSize
		if pageSize <= 0 {
			pageSize = p.cfg.PageSize
		}

		body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(BuildQuery(q, p.cfg.Fields, pageSize))
		if err != nil {
			yield(proxy.Result{}, fmt.Errorf("failed to encode search request: %w", err))
			return
		}

		searcher, err := p.resolve(ctx, proxy.CallerFrom(ctx))
		if err != nil {
			yield(proxy.Result{}, err)
			return
		}

		sources, err := searcher.Search(ctx, p.cfg.Index, body)
		if errors.Is(err, ErrIndexNotFound) {
			p.logger.Debug("Index does not exist, returning no spans", zap.String("index", p.cfg.Index))
			sources, err = nil, nil
		}
		if err != nil {
			yield(proxy.Result{}, ClassifyError(err))
			return
		}

		p.logger.Debug("Search completed",
			zap.String("index", p.cfg.Index),
			zap.Int("hits", len(sources)),
			zap.Int("page_size", pageSize))

		var next proxy.PageToken
		if len(sources) == pageSize {
			next, err = startTimeOf(sources[len(sources)-1], p.cfg.Fields.StartTime)
			if err != nil {
				yield(proxy.Result{}, err)
				return
			}
		}

		spans, err := ss4o.DecodeSources(sources)
		if err != nil {
			yield(proxy.Result{}, err)
			return
		}
		if !yield(proxy.Result{Spans: spans}, nil) {
			return
		}
		if next != nil {
			yield(proxy.Result{Token: next}, nil)
		}
	}
}

func startTimeOf(source []byte, field string) (proxy.PageToken, error) {
	start := jsoniter.Get(source, field)
	if start.LastError() != nil || start.ValueType() != jsoniter.StringValue {
		return nil, otlp.Malformedf("last hit has no %s", field)
	}
	return proxy.PageToken(start.ToString()), nil
}
