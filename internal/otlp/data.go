package otlp

import (
	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// TracesData is the reified representation of a span collection. It owns all
// of its data and can be traversed any number of times.
type TracesData struct {
	ResourceSpans []ResourceSpansData
}

// ResourceSpansData is an owned resource group.
type ResourceSpansData struct {
	Resource   ResourceData
	ScopeSpans []ScopeSpansData
	SchemaURL  string
}

// ScopeSpansData is an owned scope group.
type ScopeSpansData struct {
	Scope     ScopeData
	Spans     []SpanData
	SchemaURL string
}

// ResourceData is an owned resource.
type ResourceData struct {
	ResourceInfo
	Attributes attribute.Map
}

// ScopeData is an owned instrumentation scope.
type ScopeData struct {
	ScopeInfo
	Attributes attribute.Map
}

// SpanData is an owned span.
type SpanData struct {
	SpanInfo
	Attributes attribute.Map
	Events     []EventData
	Links      []LinkData
}

// EventData is an owned span event.
type EventData struct {
	EventInfo
	Attributes attribute.Map
}

// LinkData is an owned span link.
type LinkData struct {
	LinkInfo
	Attributes attribute.Map
}

// Collection exposes the reified data through the common model interfaces.
func (t *TracesData) Collection() SpanCollection {
	return reifiedCollection{t}
}

// SpanCount returns the number of spans across all groups.
func (t *TracesData) SpanCount() int {
	n := 0
	for _, rs := range t.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			n += len(ss.Spans)
		}
	}
	return n
}

// Clone returns a deep copy.
func (t *TracesData) Clone() *TracesData {
	out := &TracesData{}
	for _, rs := range t.ResourceSpans {
		out.ResourceSpans = append(out.ResourceSpans, rs.Clone())
	}
	return out
}

// Clone returns a deep copy.
func (rs ResourceSpansData) Clone() ResourceSpansData {
	out := ResourceSpansData{
		Resource:  ResourceData{ResourceInfo: rs.Resource.ResourceInfo, Attributes: rs.Resource.Attributes.Clone()},
		SchemaURL: rs.SchemaURL,
	}
	for _, ss := range rs.ScopeSpans {
		out.ScopeSpans = append(out.ScopeSpans, ss.Clone())
	}
	return out
}

// Clone returns a deep copy.
func (ss ScopeSpansData) Clone() ScopeSpansData {
	out := ScopeSpansData{
		Scope:     ScopeData{ScopeInfo: ss.Scope.ScopeInfo, Attributes: ss.Scope.Attributes.Clone()},
		SchemaURL: ss.SchemaURL,
	}
	for _, span := range ss.Spans {
		out.Spans = append(out.Spans, span.Clone())
	}
	return out
}

// Clone returns a deep copy.
func (s SpanData) Clone() SpanData {
	out := SpanData{SpanInfo: s.SpanInfo, Attributes: s.Attributes.Clone()}
	for _, e := range s.Events {
		out.Events = append(out.Events, EventData{EventInfo: e.EventInfo, Attributes: e.Attributes.Clone()})
	}
	for _, l := range s.Links {
		out.Links = append(out.Links, LinkData{LinkInfo: l.LinkInfo, Attributes: l.Attributes.Clone()})
	}
	return out
}

type reifiedCollection struct{ t *TracesData }

func (c reifiedCollection) ResourceSpans() Seq[ResourceSpans] {
	return func(yield func(ResourceSpans, error) bool) {
		for i := range c.t.ResourceSpans {
			if !yield(reifiedResourceSpans{&c.t.ResourceSpans[i]}, nil) {
				return
			}
		}
	}
}

type reifiedResourceSpans struct{ rs *ResourceSpansData }

func (r reifiedResourceSpans) Resource() (Resource, error) {
	return reifiedResource{&r.rs.Resource}, nil
}

func (r reifiedResourceSpans) ScopeSpans() Seq[ScopeSpans] {
	return func(yield func(ScopeSpans, error) bool) {
		for i := range r.rs.ScopeSpans {
			if !yield(reifiedScopeSpans{&r.rs.ScopeSpans[i]}, nil) {
				return
			}
		}
	}
}

func (r reifiedResourceSpans) SchemaURL() (string, error) { return r.rs.SchemaURL, nil }

type reifiedScopeSpans struct{ ss *ScopeSpansData }

func (s reifiedScopeSpans) Scope() (Scope, error) { return reifiedScope{&s.ss.Scope}, nil }

func (s reifiedScopeSpans) Spans() Seq[Span] {
	return func(yield func(Span, error) bool) {
		for i := range s.ss.Spans {
			if !yield(reifiedSpan{&s.ss.Spans[i]}, nil) {
				return
			}
		}
	}
}

func (s reifiedScopeSpans) SchemaURL() (string, error) { return s.ss.SchemaURL, nil }

type reifiedResource struct{ r *ResourceData }

func (r reifiedResource) Info() (ResourceInfo, error)  { return r.r.ResourceInfo, nil }
func (r reifiedResource) Attributes() attribute.Fields { return attribute.FieldsOf(r.r.Attributes) }

type reifiedScope struct{ s *ScopeData }

func (s reifiedScope) Info() (ScopeInfo, error)       { return s.s.ScopeInfo, nil }
func (s reifiedScope) Attributes() attribute.Fields { return attribute.FieldsOf(s.s.Attributes) }

type reifiedSpan struct{ s *SpanData }

func (s reifiedSpan) Info() (SpanInfo, error)        { return s.s.SpanInfo, nil }
func (s reifiedSpan) Attributes() attribute.Fields { return attribute.FieldsOf(s.s.Attributes) }

func (s reifiedSpan) Events() Seq[SpanEvent] {
	return func(yield func(SpanEvent, error) bool) {
		for i := range s.s.Events {
			if !yield(reifiedEvent{&s.s.Events[i]}, nil) {
				return
			}
		}
	}
}

func (s reifiedSpan) Links() Seq[SpanLink] {
	return func(yield func(SpanLink, error) bool) {
		for i := range s.s.Links {
			if !yield(reifiedLink{&s.s.Links[i]}, nil) {
				return
			}
		}
	}
}

type reifiedEvent struct{ e *EventData }

func (e reifiedEvent) Info() (EventInfo, error)       { return e.e.EventInfo, nil }
func (e reifiedEvent) Attributes() attribute.Fields { return attribute.FieldsOf(e.e.Attributes) }

type reifiedLink struct{ l *LinkData }

func (l reifiedLink) Info() (LinkInfo, error)        { return l.l.LinkInfo, nil }
func (l reifiedLink) Attributes() attribute.Fields { return attribute.FieldsOf(l.l.Attributes) }
