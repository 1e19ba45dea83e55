// Package otlpjson projects a parsed OTLP-JSON document onto the common span
// model without copying it.
package otlpjson

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// parseConfig keeps numbers as json.Number so 64-bit integers survive.
var parseConfig = jsoniter.Config{UseNumber: true}.Froze()

// Parse reads a whole OTLP-JSON document from r and returns a view over it.
func Parse(r io.Reader) (otlp.SpanCollection, error) {
	var doc any
	if err := parseConfig.NewDecoder(r).Decode(&doc); err != nil {
		return nil, otlp.Malformedf("invalid JSON document: %v", err)
	}
	return New(doc)
}

// Decode parses b as an OTLP-JSON document.
func Decode(b []byte) (otlp.SpanCollection, error) {
	var doc any
	if err := parseConfig.Unmarshal(b, &doc); err != nil {
		return nil, otlp.Malformedf("invalid JSON document: %v", err)
	}
	return New(doc)
}

// New wraps a parsed document. The document is borrowed and never modified.
// Numbers should be json.Number values; float64 is accepted but large
// integers may already have lost precision.
func New(doc any) (otlp.SpanCollection, error) {
	obj, err := asObject(doc, "span collection")
	if err != nil {
		return nil, err
	}
	c := &collection{doc: obj}
	c.once = otlp.NewOnce[otlp.ResourceSpans](c.resourceSpans)
	return c, nil
}

type collection struct {
	doc  map[string]any
	once *otlp.Once[otlp.ResourceSpans]
}

func (c *collection) ResourceSpans() otlp.Seq[otlp.ResourceSpans] {
	return c.once.Seq()
}

func (c *collection) resourceSpans(yield func(otlp.ResourceSpans, error) bool) {
	list, err := optionalList(c.doc, "resourceSpans")
	if err != nil {
		yield(nil, err)
		return
	}
	for _, item := range list {
		obj, err := asObject(item, "resourceSpans entry")
		if err != nil {
			yield(nil, err)
			return
		}
		rs := &resourceSpans{obj: obj}
		rs.once = otlp.NewOnce[otlp.ScopeSpans](rs.scopeSpans)
		if !yield(rs, nil) {
			return
		}
	}
}

type resourceSpans struct {
	obj  map[string]any
	once *otlp.Once[otlp.ScopeSpans]
}

func (r *resourceSpans) Resource() (otlp.Resource, error) {
	obj, err := optionalObject(r.obj, "resource")
	if err != nil {
		return nil, err
	}
	return resource{obj}, nil
}

func (r *resourceSpans) ScopeSpans() otlp.Seq[otlp.ScopeSpans] {
	return r.once.Seq()
}

func (r *resourceSpans) scopeSpans(yield func(otlp.ScopeSpans, error) bool) {
	list, err := optionalList(r.obj, "scopeSpans")
	if err != nil {
		yield(nil, err)
		return
	}
	for _, item := range list {
		obj, err := asObject(item, "scopeSpans entry")
		if err != nil {
			yield(nil, err)
			return
		}
		ss := &scopeSpans{obj: obj}
		ss.once = otlp.NewOnce[otlp.Span](ss.spans)
		if !yield(ss, nil) {
			return
		}
	}
}

func (r *resourceSpans) SchemaURL() (string, error) {
	return optionalString(r.obj, "schemaUrl")
}

type scopeSpans struct {
	obj  map[string]any
	once *otlp.Once[otlp.Span]
}

func (s *scopeSpans) Scope() (otlp.Scope, error) {
	obj, err := optionalObject(s.obj, "scope")
	if err != nil {
		return nil, err
	}
	return scope{obj}, nil
}

func (s *scopeSpans) Spans() otlp.Seq[otlp.Span] {
	return s.once.Seq()
}

func (s *scopeSpans) spans(yield func(otlp.Span, error) bool) {
	list, err := optionalList(s.obj, "spans")
	if err != nil {
		yield(nil, err)
		return
	}
	for _, item := range list {
		obj, err := asObject(item, "span")
		if err != nil {
			yield(nil, err)
			return
		}
		if !yield(span{obj}, nil) {
			return
		}
	}
}

func (s *scopeSpans) SchemaURL() (string, error) {
	return optionalString(s.obj, "schemaUrl")
}

type resource struct{ obj map[string]any }

func (r resource) Info() (otlp.ResourceInfo, error) {
	dropped, err := optionalUint32(r.obj, "droppedAttributesCount")
	return otlp.ResourceInfo{DroppedAttributesCount: dropped}, err
}

func (r resource) Attributes() attribute.Fields { return attributesOf(r.obj) }

type scope struct{ obj map[string]any }

func (s scope) Info() (otlp.ScopeInfo, error) {
	var info otlp.ScopeInfo
	var err error
	if info.Name, err = optionalString(s.obj, "name"); err != nil {
		return info, err
	}
	if info.Version, err = optionalString(s.obj, "version"); err != nil {
		return info, err
	}
	info.DroppedAttributesCount, err = optionalUint32(s.obj, "droppedAttributesCount")
	return info, err
}

func (s scope) Attributes() attribute.Fields { return attributesOf(s.obj) }

type span struct{ obj map[string]any }

func (s span) Info() (otlp.SpanInfo, error) {
	var info otlp.SpanInfo
	var err error

	for _, f := range []struct {
		key string
		dst *string
	}{
		{"traceId", &info.TraceID},
		{"spanId", &info.SpanID},
		{"traceState", &info.TraceState},
		{"parentSpanId", &info.ParentSpanID},
		{"name", &info.Name},
	} {
		if *f.dst, err = optionalString(s.obj, f.key); err != nil {
			return info, err
		}
	}

	for _, f := range []struct {
		key string
		dst *uint32
	}{
		{"flags", &info.Flags},
		{"droppedAttributesCount", &info.DroppedAttributesCount},
		{"droppedEventsCount", &info.DroppedEventsCount},
		{"droppedLinksCount", &info.DroppedLinksCount},
	} {
		if *f.dst, err = optionalUint32(s.obj, f.key); err != nil {
			return info, err
		}
	}

	if info.Kind, err = enum(s.obj, "kind", otlp.SpanKindFromName); err != nil {
		return info, err
	}
	if info.StartTimeUnixNano, err = timestamp(s.obj, "startTimeUnixNano"); err != nil {
		return info, err
	}
	if info.EndTimeUnixNano, err = timestamp(s.obj, "endTimeUnixNano"); err != nil {
		return info, err
	}

	status, err := optionalObject(s.obj, "status")
	if err != nil {
		return info, err
	}
	if info.Status.Message, err = optionalString(status, "message"); err != nil {
		return info, err
	}
	if info.Status.Code, err = enum(status, "code", otlp.StatusCodeFromName); err != nil {
		return info, fmt.Errorf("failed to read status of span %s: %w", info.SpanID, err)
	}
	return info, nil
}

func (s span) Attributes() attribute.Fields { return attributesOf(s.obj) }

func (s span) Events() otlp.Seq[otlp.SpanEvent] {
	return func(yield func(otlp.SpanEvent, error) bool) {
		list, err := optionalList(s.obj, "events")
		if err != nil {
			yield(nil, err)
			return
		}
		for _, item := range list {
			obj, err := asObject(item, "event")
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event{obj}, nil) {
				return
			}
		}
	}
}

func (s span) Links() otlp.Seq[otlp.SpanLink] {
	return func(yield func(otlp.SpanLink, error) bool) {
		list, err := optionalList(s.obj, "links")
		if err != nil {
			yield(nil, err)
			return
		}
		for _, item := range list {
			obj, err := asObject(item, "link")
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(link{obj}, nil) {
				return
			}
		}
	}
}

type event struct{ obj map[string]any }

func (e event) Info() (otlp.EventInfo, error) {
	var info otlp.EventInfo
	var err error
	if info.TimeUnixNano, err = timestamp(e.obj, "timeUnixNano"); err != nil {
		return info, err
	}
	if info.Name, err = optionalString(e.obj, "name"); err != nil {
		return info, err
	}
	info.DroppedAttributesCount, err = optionalUint32(e.obj, "droppedAttributesCount")
	return info, err
}

func (e event) Attributes() attribute.Fields { return attributesOf(e.obj) }

type link struct{ obj map[string]any }

func (l link) Info() (otlp.LinkInfo, error) {
	var info otlp.LinkInfo
	var err error
	if info.TraceID, err = optionalString(l.obj, "traceId"); err != nil {
		return info, err
	}
	if info.SpanID, err = optionalString(l.obj, "spanId"); err != nil {
		return info, err
	}
	if info.TraceState, err = optionalString(l.obj, "traceState"); err != nil {
		return info, err
	}
	if info.Flags, err = optionalUint32(l.obj, "flags"); err != nil {
		return info, err
	}
	info.DroppedAttributesCount, err = optionalUint32(l.obj, "droppedAttributesCount")
	return info, err
}

func (l link) Attributes() attribute.Fields { return attributesOf(l.obj) }
