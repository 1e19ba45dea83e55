// Package otlpproto projects decoded OTLP Protobuf messages onto the common
// span model.
package otlpproto

import (
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// Unmarshal decodes OTLP Protobuf bytes (a trace export request or
// TracesData message) and returns a view over them.
func Unmarshal(b []byte) (otlp.SpanCollection, error) {
	unmarshaler := &ptrace.ProtoUnmarshaler{}
	td, err := unmarshaler.UnmarshalTraces(b)
	if err != nil {
		return nil, otlp.Malformedf("invalid OTLP protobuf payload: %v", err)
	}
	return New(td), nil
}

// New wraps decoded traces. The traces are borrowed and never modified.
func New(td ptrace.Traces) otlp.SpanCollection {
	c := &collection{td: td}
	c.once = otlp.NewOnce[otlp.ResourceSpans](c.resourceSpans)
	return c
}

type collection struct {
	td   ptrace.Traces
	once *otlp.Once[otlp.ResourceSpans]
}

func (c *collection) ResourceSpans() otlp.Seq[otlp.ResourceSpans] { return c.once.Seq() }

func (c *collection) resourceSpans(yield func(otlp.ResourceSpans, error) bool) {
	slice := c.td.ResourceSpans()
	for i := 0; i < slice.Len(); i++ {
		rs := &resourceSpans{rs: slice.At(i)}
		rs.once = otlp.NewOnce[otlp.ScopeSpans](rs.scopeSpans)
		if !yield(rs, nil) {
			return
		}
	}
}

type resourceSpans struct {
	rs   ptrace.ResourceSpans
	once *otlp.Once[otlp.ScopeSpans]
}

func (r *resourceSpans) Resource() (otlp.Resource, error) { return resource{r.rs.Resource()}, nil }

func (r *resourceSpans) ScopeSpans() otlp.Seq[otlp.ScopeSpans] { return r.once.Seq() }

func (r *resourceSpans) scopeSpans(yield func(otlp.ScopeSpans, error) bool) {
	slice := r.rs.ScopeSpans()
	for i := 0; i < slice.Len(); i++ {
		ss := &scopeSpans{ss: slice.At(i)}
		ss.once = otlp.NewOnce[otlp.Span](ss.spans)
		if !yield(ss, nil) {
			return
		}
	}
}

func (r *resourceSpans) SchemaURL() (string, error) { return r.rs.SchemaUrl(), nil }

type scopeSpans struct {
	ss   ptrace.ScopeSpans
	once *otlp.Once[otlp.Span]
}

func (s *scopeSpans) Scope() (otlp.Scope, error) { return scope{s.ss.Scope()}, nil }

func (s *scopeSpans) Spans() otlp.Seq[otlp.Span] { return s.once.Seq() }

func (s *scopeSpans) spans(yield func(otlp.Span, error) bool) {
	slice := s.ss.Spans()
	for i := 0; i < slice.Len(); i++ {
		if !yield(span{slice.At(i)}, nil) {
			return
		}
	}
}

func (s *scopeSpans) SchemaURL() (string, error) { return s.ss.SchemaUrl(), nil }

type resource struct{ r pcommon.Resource }

func (r resource) Info() (otlp.ResourceInfo, error) {
	return otlp.ResourceInfo{DroppedAttributesCount: r.r.DroppedAttributesCount()}, nil
}

func (r resource) Attributes() attribute.Fields { return fields(r.r.Attributes()) }

type scope struct{ s pcommon.InstrumentationScope }

func (s scope) Info() (otlp.ScopeInfo, error) {
	return otlp.ScopeInfo{
		Name:                   s.s.Name(),
		Version:                s.s.Version(),
		DroppedAttributesCount: s.s.DroppedAttributesCount(),
	}, nil
}

func (s scope) Attributes() attribute.Fields { return fields(s.s.Attributes()) }

type span struct{ s ptrace.Span }

func (s span) Info() (otlp.SpanInfo, error) {
	return otlp.SpanInfo{
		TraceID:                otlp.EncodeTraceID(s.s.TraceID()),
		SpanID:                 otlp.EncodeSpanID(s.s.SpanID()),
		TraceState:             s.s.TraceState().AsRaw(),
		ParentSpanID:           otlp.EncodeSpanID(s.s.ParentSpanID()),
		Flags:                  s.s.Flags(),
		Name:                   s.s.Name(),
		Kind:                   int32(s.s.Kind()),
		StartTimeUnixNano:      int64(s.s.StartTimestamp()),
		EndTimeUnixNano:        int64(s.s.EndTimestamp()),
		DroppedAttributesCount: s.s.DroppedAttributesCount(),
		DroppedEventsCount:     s.s.DroppedEventsCount(),
		DroppedLinksCount:      s.s.DroppedLinksCount(),
		Status: otlp.Status{
			Message: s.s.Status().Message(),
			Code:    int32(s.s.Status().Code()),
		},
	}, nil
}

func (s span) Attributes() attribute.Fields { return fields(s.s.Attributes()) }

func (s span) Events() otlp.Seq[otlp.SpanEvent] {
	return func(yield func(otlp.SpanEvent, error) bool) {
		slice := s.s.Events()
		for i := 0; i < slice.Len(); i++ {
			if !yield(event{slice.At(i)}, nil) {
				return
			}
		}
	}
}

func (s span) Links() otlp.Seq[otlp.SpanLink] {
	return func(yield func(otlp.SpanLink, error) bool) {
		slice := s.s.Links()
		for i := 0; i < slice.Len(); i++ {
			if !yield(link{slice.At(i)}, nil) {
				return
			}
		}
	}
}

type event struct{ e ptrace.SpanEvent }

func (e event) Info() (otlp.EventInfo, error) {
	return otlp.EventInfo{
		TimeUnixNano:           int64(e.e.Timestamp()),
		Name:                   e.e.Name(),
		DroppedAttributesCount: e.e.DroppedAttributesCount(),
	}, nil
}

func (e event) Attributes() attribute.Fields { return fields(e.e.Attributes()) }

type link struct{ l ptrace.SpanLink }

func (l link) Info() (otlp.LinkInfo, error) {
	return otlp.LinkInfo{
		TraceID:                otlp.EncodeTraceID(l.l.TraceID()),
		SpanID:                 otlp.EncodeSpanID(l.l.SpanID()),
		TraceState:             l.l.TraceState().AsRaw(),
		Flags:                  l.l.Flags(),
		DroppedAttributesCount: l.l.DroppedAttributesCount(),
	}, nil
}

func (l link) Attributes() attribute.Fields { return fields(l.l.Attributes()) }
