package proxy

import (
	"context"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// StaticProxy serves queries from an in-memory reified collection. Every
// query filters a fresh copy, so the stored collection can be shared by
// concurrent queries and swapped with Replace at any time.
type StaticProxy struct {
	data   *atomic.Pointer[otlp.TracesData]
	logger *zap.Logger
}

// NewStaticProxy creates a proxy over td.
func NewStaticProxy(td *otlp.TracesData, logger *zap.Logger) *StaticProxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if td == nil {
		td = &otlp.TracesData{}
	}
	return &StaticProxy{
		data:   atomic.NewPointer(td),
		logger: logger,
	}
}

// Replace swaps the served collection. Queries already running keep the
// collection they started with.
func (p *StaticProxy) Replace(td *otlp.TracesData) {
	if td == nil {
		td = &otlp.TracesData{}
	}
	p.data.Store(td)
	p.logger.Info("Static span data replaced", zap.Int("spans", td.SpanCount()))
}

// QueryPage yields the whole filtered result as a single page. It never
// issues tokens and rejects any token it is given.
func (p *StaticProxy) QueryPage(_ context.Context, q Query) otlp.Seq[Result] {
	return func(yield func(Result, error) bool) {
		if q.PageToken != nil {
			yield(Result{}, ErrUnexpectedPageToken)
			return
		}
		filtered := Filter(p.data.Load(), q)
		p.logger.Debug("Filtered static span data",
			zap.Int("spans", filtered.SpanCount()),
			zap.Int("resources", len(filtered.ResourceSpans)))
		yield(Result{Spans: filtered.Collection()}, nil)
	}
}

// Filter returns a pruned deep copy of td holding only what matches q.
// Scope groups without matching spans and resource groups without scope
// groups are dropped. td is not modified.
func Filter(td *otlp.TracesData, q Query) *otlp.TracesData {
	out := &otlp.TracesData{}
	for _, rs := range td.ResourceSpans {
		if !q.ResourceAttributes.Match(rs.Resource.Attributes) {
			continue
		}
		var scopes []otlp.ScopeSpansData
		for _, ss := range rs.ScopeSpans {
			if !q.ScopeAttributes.Match(ss.Scope.Attributes) {
				continue
			}
			var spans []otlp.SpanData
			for _, span := range ss.Spans {
				if matchSpan(&span, q) {
					spans = append(spans, span.Clone())
				}
			}
			if len(spans) == 0 {
				continue
			}
			scopes = append(scopes, otlp.ScopeSpansData{
				Scope: otlp.ScopeData{
					ScopeInfo:  ss.Scope.ScopeInfo,
					Attributes: ss.Scope.Attributes.Clone(),
				},
				Spans:     spans,
				SchemaURL: ss.SchemaURL,
			})
		}
		if len(scopes) == 0 {
			continue
		}
		out.ResourceSpans = append(out.ResourceSpans, otlp.ResourceSpansData{
			Resource: otlp.ResourceData{
				ResourceInfo: rs.Resource.ResourceInfo,
				Attributes:   rs.Resource.Attributes.Clone(),
			},
			ScopeSpans: scopes,
			SchemaURL:  rs.SchemaURL,
		})
	}
	return out
}

func matchSpan(span *otlp.SpanData, q Query) bool {
	if q.SpanName != "" && span.Name != q.SpanName {
		return false
	}
	if !q.From.IsZero() && span.EndTimeUnixNano < q.From.UnixNano() {
		return false
	}
	if !q.To.IsZero() && span.StartTimeUnixNano > q.To.UnixNano() {
		return false
	}
	if len(q.Selectors) > 0 && !matchSelectors(span, q.Selectors) {
		return false
	}
	return q.SpanAttributes.Match(span.Attributes)
}

func matchSelectors(span *otlp.SpanData, selectors []Selector) bool {
	for _, sel := range selectors {
		if sel.TraceID == "" {
			return true
		}
		if !strings.EqualFold(sel.TraceID, span.TraceID) {
			continue
		}
		if sel.SpanID == "" || strings.EqualFold(sel.SpanID, span.SpanID) {
			return true
		}
	}
	return false
}
