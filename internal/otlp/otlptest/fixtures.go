// Package otlptest provides span collections shared by codec and proxy tests.
package otlptest

import (
	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// Trace ids used by NewTraces.
const (
	TraceID1 = "5b8efff798038103d269b633813fc60c"
	TraceID2 = "5b8efff798038103d269b633813fc60d"
)

// NewTraces returns two resources with two scopes each, covering every
// field and attribute kind that survives all encodings.
func NewTraces() *otlp.TracesData {
	return &otlp.TracesData{ResourceSpans: []otlp.ResourceSpansData{
		{
			Resource: otlp.ResourceData{
				Attributes: attribute.Map{
					{Key: "service.name", Value: attribute.String("res1")},
					{Key: "int_resource_attr", Value: attribute.Int(100)},
				},
			},
			SchemaURL: "https://opentelemetry.io/schemas/1.21.0",
			ScopeSpans: []otlp.ScopeSpansData{
				{
					Scope: otlp.ScopeData{
						ScopeInfo:  otlp.ScopeInfo{Name: "scope1", Version: "1.0.0"},
						Attributes: attribute.Map{{Key: "int_scope_attr", Value: attribute.Int(1)}},
					},
					Spans: []otlp.SpanData{
						NewSpan(TraceID1, "eee19b7ec3c1b174", "some_span1", 1000, 2000),
						NewSpan(TraceID1, "eee19b7ec3c1b175", "some_span2", 1500, 2500),
					},
				},
				{
					Scope: otlp.ScopeData{
						ScopeInfo:  otlp.ScopeInfo{Name: "scope2", DroppedAttributesCount: 1},
						Attributes: attribute.Map{{Key: "string_scope_attr", Value: attribute.String("hello")}},
					},
					Spans: []otlp.SpanData{
						NewSpan(TraceID2, "eee19b7ec3c1b176", "some_span1", 3000, 4000),
					},
					SchemaURL: "scope-schema",
				},
			},
		},
		{
			Resource: otlp.ResourceData{
				ResourceInfo: otlp.ResourceInfo{DroppedAttributesCount: 2},
				Attributes: attribute.Map{
					{Key: "service.name", Value: attribute.String("res2")},
					{Key: "int_resource_attr", Value: attribute.Int(200)},
				},
			},
			ScopeSpans: []otlp.ScopeSpansData{
				{
					Scope: otlp.ScopeData{ScopeInfo: otlp.ScopeInfo{Name: "scope3"}},
					Spans: []otlp.SpanData{
						NewSpan(TraceID2, "eee19b7ec3c1b177", "some_span3", 5000, 6000),
					},
				},
			},
		},
	}}
}

// NewSpan returns a span with every optional field populated.
func NewSpan(traceID, spanID, name string, start, end int64) otlp.SpanData {
	return otlp.SpanData{
		SpanInfo: otlp.SpanInfo{
			TraceID:                traceID,
			SpanID:                 spanID,
			TraceState:             "vendor=value",
			ParentSpanID:           "00f067aa0ba902b7",
			Flags:                  1,
			Name:                   name,
			Kind:                   otlp.SpanKindServer,
			StartTimeUnixNano:      start,
			EndTimeUnixNano:        end,
			DroppedAttributesCount: 1,
			DroppedEventsCount:     2,
			DroppedLinksCount:      3,
			Status:                 otlp.Status{Message: "failed", Code: otlp.StatusCodeError},
		},
		Attributes: attribute.Map{
			{Key: "http.method", Value: attribute.String("GET")},
			{Key: "retry", Value: attribute.Bool(false)},
			{Key: "http.status_code", Value: attribute.Int(500)},
			{Key: "ratio", Value: attribute.Double(0.25)},
			{Key: "tags", Value: attribute.List(attribute.String("a"), attribute.Int(2))},
			{Key: "nested", Value: attribute.MapOf(attribute.Map{
				{Key: "inner", Value: attribute.String("value")},
			})},
		},
		Events: []otlp.EventData{{
			EventInfo:  otlp.EventInfo{TimeUnixNano: start + 10, Name: "exception", DroppedAttributesCount: 1},
			Attributes: attribute.Map{{Key: "exception.message", Value: attribute.String("boom")}},
		}},
		Links: []otlp.LinkData{{
			LinkInfo:   otlp.LinkInfo{TraceID: TraceID2, SpanID: "eee19b7ec3c1b178", TraceState: "k=v", Flags: 1},
			Attributes: attribute.Map{{Key: "link.kind", Value: attribute.String("follows")}},
		}},
	}
}
