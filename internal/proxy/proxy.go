// Package proxy defines the query contract shared by every span source, the
// continuation algorithm that walks paginated results, and an in-memory
// reference implementation that applies the full filter semantics.
package proxy

import (
	"context"
	"time"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// PageToken is an opaque continuation cursor, meaningful only to the proxy
// that issued it.
type PageToken []byte

// Selector restricts a query to one trace, or to one span of a trace when
// SpanID is set. An empty TraceID matches every span.
type Selector struct {
	TraceID string
	SpanID  string
}

// Query holds the filters of a single page request. Zero values mean
// "no constraint".
type Query struct {
	From      time.Time
	To        time.Time
	Selectors []Selector

	ResourceAttributes attribute.Filter
	ScopeAttributes    attribute.Filter
	SpanAttributes     attribute.Filter
	SpanName           string

	PageSize  int
	PageToken PageToken
}

// Result is one item of a page stream: either a span collection or a
// continuation token.
type Result struct {
	Spans otlp.SpanCollection
	Token PageToken
}

// IsToken reports whether the result carries a continuation token.
func (r Result) IsToken() bool { return r.Spans == nil }

// Proxy answers span queries from some backing store. A call may yield any
// number of span collections followed by any number of tokens; each token
// resumes an independently paginated sub-query.
type Proxy interface {
	QueryPage(ctx context.Context, q Query) otlp.Seq[Result]
}

// QueryAll runs q and keeps feeding every returned token back into the
// proxy until no tokens remain. Pages of one sub-query keep their order;
// pages of different sub-queries may interleave.
func QueryAll(ctx context.Context, p Proxy, q Query) otlp.Seq[otlp.SpanCollection] {
	return func(yield func(otlp.SpanCollection, error) bool) {
		pending := []PageToken{q.PageToken}
		for len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			sub := q
			sub.PageToken, pending = pending[0], pending[1:]
			for res, err := range p.QueryPage(ctx, sub) {
				if err != nil {
					yield(nil, err)
					return
				}
				if res.IsToken() {
					pending = append(pending, res.Token)
					continue
				}
				if !yield(res.Spans, nil) {
					return
				}
			}
		}
	}
}

// RecentSpans materializes every span matching name and filter that ended
// within maxAge of now.
func RecentSpans(ctx context.Context, p Proxy, maxAge time.Duration, name string, filter attribute.Filter) otlp.Seq[otlp.SpanData] {
	return func(yield func(otlp.SpanData, error) bool) {
		now := time.Now()
		q := Query{From: now.Add(-maxAge), To: now, SpanName: name, SpanAttributes: filter}
		for page, err := range QueryAll(ctx, p, q) {
			if err != nil {
				yield(otlp.SpanData{}, err)
				return
			}
			td, err := otlp.Materialize(page)
			if err != nil {
				yield(otlp.SpanData{}, err)
				return
			}
			for _, rs := range td.ResourceSpans {
				for _, ss := range rs.ScopeSpans {
					for _, span := range ss.Spans {
						if !yield(span, nil) {
							return
						}
					}
				}
			}
		}
	}
}
