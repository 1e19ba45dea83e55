package otlp

import (
	"bytes"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// jsonConfig writes compact JSON with raw UTF-8 and no HTML escaping.
var jsonConfig = jsoniter.Config{EscapeHTML: false}.Froze()

// MarshalJSON renders c as canonical OTLP-JSON.
func MarshalJSON(c SpanCollection) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON streams c to w as canonical OTLP-JSON, one field at a time.
// Zero dropped counts, empty trace states, empty attribute lists and unset
// status codes are omitted.
func WriteJSON(w io.Writer, c SpanCollection) error {
	e := &jsonEmitter{s: jsoniter.NewStream(jsonConfig, w, 4096)}
	if err := e.collection(c); err != nil {
		return err
	}
	return e.flush()
}

type jsonEmitter struct {
	s *jsoniter.Stream
}

// object tracks whether a separator is needed before the next field.
type object struct {
	s *jsoniter.Stream
	n int
}

func (e *jsonEmitter) begin() *object {
	e.s.WriteObjectStart()
	return &object{s: e.s}
}

func (o *object) field(name string) {
	if o.n > 0 {
		o.s.WriteMore()
	}
	o.s.WriteObjectField(name)
	o.n++
}

func (o *object) end() { o.s.WriteObjectEnd() }

func (o *object) stringField(name, v string) {
	o.field(name)
	o.s.WriteString(v)
}

func (o *object) optionalString(name, v string) {
	if v != "" {
		o.stringField(name, v)
	}
}

func (o *object) optionalUint32(name string, v uint32) {
	if v != 0 {
		o.field(name)
		o.s.WriteUint32(v)
	}
}

func (e *jsonEmitter) flush() error {
	if e.s.Error != nil {
		return e.s.Error
	}
	return e.s.Flush()
}

func (e *jsonEmitter) collection(c SpanCollection) error {
	top := e.begin()
	top.field("resourceSpans")
	e.s.WriteArrayStart()
	n := 0
	for rs, err := range c.ResourceSpans() {
		if err != nil {
			return err
		}
		if n > 0 {
			e.s.WriteMore()
		}
		n++
		if err := e.resourceSpans(rs); err != nil {
			return err
		}
		if err := e.flush(); err != nil {
			return err
		}
	}
	e.s.WriteArrayEnd()
	top.end()
	return nil
}

func (e *jsonEmitter) resourceSpans(rs ResourceSpans) error {
	o := e.begin()

	res, err := rs.Resource()
	if err != nil {
		return err
	}
	o.field("resource")
	if err := e.resource(res); err != nil {
		return err
	}

	o.field("scopeSpans")
	e.s.WriteArrayStart()
	n := 0
	for ss, err := range rs.ScopeSpans() {
		if err != nil {
			return err
		}
		if n > 0 {
			e.s.WriteMore()
		}
		n++
		if err := e.scopeSpans(ss); err != nil {
			return err
		}
	}
	e.s.WriteArrayEnd()

	schemaURL, err := rs.SchemaURL()
	if err != nil {
		return err
	}
	o.optionalString("schemaUrl", schemaURL)
	o.end()
	return nil
}

func (e *jsonEmitter) resource(r Resource) error {
	info, err := r.Info()
	if err != nil {
		return err
	}
	o := e.begin()
	if err := e.attributes(o, r.Attributes()); err != nil {
		return err
	}
	o.optionalUint32("droppedAttributesCount", info.DroppedAttributesCount)
	o.end()
	return nil
}

func (e *jsonEmitter) scopeSpans(ss ScopeSpans) error {
	o := e.begin()

	scope, err := ss.Scope()
	if err != nil {
		return err
	}
	o.field("scope")
	if err := e.scope(scope); err != nil {
		return err
	}

	o.field("spans")
	e.s.WriteArrayStart()
	n := 0
	for span, err := range ss.Spans() {
		if err != nil {
			return err
		}
		if n > 0 {
			e.s.WriteMore()
		}
		n++
		if err := e.span(span); err != nil {
			return err
		}
	}
	e.s.WriteArrayEnd()

	schemaURL, err := ss.SchemaURL()
	if err != nil {
		return err
	}
	o.optionalString("schemaUrl", schemaURL)
	o.end()
	return nil
}

func (e *jsonEmitter) scope(s Scope) error {
	info, err := s.Info()
	if err != nil {
		return err
	}
	o := e.begin()
	o.stringField("name", info.Name)
	o.optionalString("version", info.Version)
	if err := e.attributes(o, s.Attributes()); err != nil {
		return err
	}
	o.optionalUint32("droppedAttributesCount", info.DroppedAttributesCount)
	o.end()
	return nil
}

func (e *jsonEmitter) span(span Span) error {
	info, err := span.Info()
	if err != nil {
		return err
	}

	o := e.begin()
	o.stringField("traceId", info.TraceID)
	o.stringField("spanId", info.SpanID)
	o.optionalString("traceState", info.TraceState)
	o.stringField("parentSpanId", info.ParentSpanID)
	o.optionalUint32("flags", info.Flags)
	o.stringField("name", info.Name)
	o.field("kind")
	e.s.WriteInt32(info.Kind)
	o.stringField("startTimeUnixNano", strconv.FormatInt(info.StartTimeUnixNano, 10))
	o.stringField("endTimeUnixNano", strconv.FormatInt(info.EndTimeUnixNano, 10))
	if err := e.attributes(o, span.Attributes()); err != nil {
		return err
	}
	o.optionalUint32("droppedAttributesCount", info.DroppedAttributesCount)

	n := 0
	for event, err := range span.Events() {
		if err != nil {
			return err
		}
		if n == 0 {
			o.field("events")
			e.s.WriteArrayStart()
		} else {
			e.s.WriteMore()
		}
		n++
		if err := e.event(event); err != nil {
			return err
		}
	}
	if n > 0 {
		e.s.WriteArrayEnd()
	}
	o.optionalUint32("droppedEventsCount", info.DroppedEventsCount)

	n = 0
	for link, err := range span.Links() {
		if err != nil {
			return err
		}
		if n == 0 {
			o.field("links")
			e.s.WriteArrayStart()
		} else {
			e.s.WriteMore()
		}
		n++
		if err := e.link(link); err != nil {
			return err
		}
	}
	if n > 0 {
		e.s.WriteArrayEnd()
	}
	o.optionalUint32("droppedLinksCount", info.DroppedLinksCount)

	o.field("status")
	status := e.begin()
	status.optionalString("message", info.Status.Message)
	if info.Status.Code != 0 {
		status.field("code")
		e.s.WriteInt32(info.Status.Code)
	}
	status.end()

	o.end()
	return nil
}

func (e *jsonEmitter) event(event SpanEvent) error {
	info, err := event.Info()
	if err != nil {
		return err
	}
	o := e.begin()
	o.stringField("timeUnixNano", strconv.FormatInt(info.TimeUnixNano, 10))
	o.stringField("name", info.Name)
	if err := e.attributes(o, event.Attributes()); err != nil {
		return err
	}
	o.optionalUint32("droppedAttributesCount", info.DroppedAttributesCount)
	o.end()
	return nil
}

func (e *jsonEmitter) link(link SpanLink) error {
	info, err := link.Info()
	if err != nil {
		return err
	}
	o := e.begin()
	o.stringField("traceId", info.TraceID)
	o.stringField("spanId", info.SpanID)
	o.optionalString("traceState", info.TraceState)
	if err := e.attributes(o, link.Attributes()); err != nil {
		return err
	}
	o.optionalUint32("droppedAttributesCount", info.DroppedAttributesCount)
	o.optionalUint32("flags", info.Flags)
	o.end()
	return nil
}

// attributes writes the "attributes" field of o only if fields yields anything.
func (e *jsonEmitter) attributes(o *object, fields attribute.Fields) error {
	return e.keyValues(o, "attributes", fields)
}

func (e *jsonEmitter) keyValues(o *object, name string, fields attribute.Fields) error {
	n := 0
	for f, err := range fields {
		if err != nil {
			return err
		}
		if n == 0 {
			o.field(name)
			e.s.WriteArrayStart()
		} else {
			e.s.WriteMore()
		}
		n++
		kv := e.begin()
		kv.stringField("key", f.Key)
		kv.field("value")
		if err := e.anyValue(f.Value); err != nil {
			return err
		}
		kv.end()
	}
	if n > 0 {
		e.s.WriteArrayEnd()
	}
	return nil
}

func (e *jsonEmitter) anyValue(n attribute.Node) error {
	o := e.begin()
	switch n.Kind() {
	case attribute.KindString:
		o.stringField("stringValue", n.Literal().Str())
	case attribute.KindBool:
		o.field("boolValue")
		e.s.WriteBool(n.Literal().BoolVal())
	case attribute.KindInt:
		o.stringField("intValue", strconv.FormatInt(n.Literal().IntVal(), 10))
	case attribute.KindDouble:
		o.field("doubleValue")
		e.s.WriteFloat64(n.Literal().DoubleVal())
	case attribute.KindList:
		o.field("arrayValue")
		inner := e.begin()
		count := 0
		for item, err := range n.Items() {
			if err != nil {
				return err
			}
			if count == 0 {
				inner.field("values")
				e.s.WriteArrayStart()
			} else {
				e.s.WriteMore()
			}
			count++
			if err := e.anyValue(item); err != nil {
				return err
			}
		}
		if count > 0 {
			e.s.WriteArrayEnd()
		}
		inner.end()
	case attribute.KindMap:
		o.field("kvlistValue")
		inner := e.begin()
		if err := e.keyValues(inner, "values", n.Fields()); err != nil {
			return err
		}
		inner.end()
	}
	o.end()
	return nil
}
