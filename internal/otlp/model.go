// Package otlp defines the common span model shared by every trace encoding,
// the owned (reified) representation of it, and the canonical OTLP-JSON and
// OTLP Protobuf emitters.
package otlp

import (
	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// Seq is a sequence of model entities whose production may fail.
type Seq[T any] func(yield func(T, error) bool)

// SpanCollection is the top-level export unit.
type SpanCollection interface {
	ResourceSpans() Seq[ResourceSpans]
}

// ResourceSpans groups the scopes emitted by one resource.
type ResourceSpans interface {
	Resource() (Resource, error)
	ScopeSpans() Seq[ScopeSpans]
	SchemaURL() (string, error)
}

// ScopeSpans groups the spans emitted by one instrumentation scope.
type ScopeSpans interface {
	Scope() (Scope, error)
	Spans() Seq[Span]
	SchemaURL() (string, error)
}

// Resource describes the entity that produced a group of spans.
type Resource interface {
	Info() (ResourceInfo, error)
	Attributes() attribute.Fields
}

// Scope describes the instrumentation library that produced a group of spans.
type Scope interface {
	Info() (ScopeInfo, error)
	Attributes() attribute.Fields
}

// Span is a single timed operation.
type Span interface {
	Info() (SpanInfo, error)
	Attributes() attribute.Fields
	Events() Seq[SpanEvent]
	Links() Seq[SpanLink]
}

// SpanEvent is a timestamped annotation on a span.
type SpanEvent interface {
	Info() (EventInfo, error)
	Attributes() attribute.Fields
}

// SpanLink points from a span to another span.
type SpanLink interface {
	Info() (LinkInfo, error)
	Attributes() attribute.Fields
}

// ResourceInfo holds the scalar fields of a resource.
type ResourceInfo struct {
	DroppedAttributesCount uint32
}

// ScopeInfo holds the scalar fields of an instrumentation scope.
// An empty Version means no version.
type ScopeInfo struct {
	Name                   string
	Version                string
	DroppedAttributesCount uint32
}

// SpanInfo holds the scalar fields of a span. Ids are lower-case hex.
type SpanInfo struct {
	TraceID                string
	SpanID                 string
	TraceState             string
	ParentSpanID           string
	Flags                  uint32
	Name                   string
	Kind                   int32
	StartTimeUnixNano      int64
	EndTimeUnixNano        int64
	DroppedAttributesCount uint32
	DroppedEventsCount     uint32
	DroppedLinksCount      uint32
	Status                 Status
}

// EventInfo holds the scalar fields of a span event.
type EventInfo struct {
	TimeUnixNano           int64
	Name                   string
	DroppedAttributesCount uint32
}

// LinkInfo holds the scalar fields of a span link.
type LinkInfo struct {
	TraceID                string
	SpanID                 string
	TraceState             string
	Flags                  uint32
	DroppedAttributesCount uint32
}

// Status is the outcome of a span. Code 0 means unset.
type Status struct {
	Message string
	Code    int32
}

// SeqOf yields the items of a slice.
func SeqOf[T any](items []T) Seq[T] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ErrSeq yields a single error.
func ErrSeq[T any](err error) Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
