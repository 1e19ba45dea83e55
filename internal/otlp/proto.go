package otlp

import (
	"fmt"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// MarshalProto renders c as OTLP Protobuf bytes compatible with the trace
// export request message.
func MarshalProto(c SpanCollection) ([]byte, error) {
	td, err := ToTraces(c)
	if err != nil {
		return nil, err
	}
	marshaler := &ptrace.ProtoMarshaler{}
	b, err := marshaler.MarshalTraces(td)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal traces: %w", err)
	}
	return b, nil
}

// ToTraces builds a pdata Traces message from c. Hex ids are decoded exactly;
// malformed or wrongly sized ids are reported as ErrMalformed.
func ToTraces(c SpanCollection) (ptrace.Traces, error) {
	td := ptrace.NewTraces()
	for rs, err := range c.ResourceSpans() {
		if err != nil {
			return td, err
		}
		if err := fillResourceSpans(td.ResourceSpans().AppendEmpty(), rs); err != nil {
			return td, err
		}
	}
	return td, nil
}

func fillResourceSpans(dst ptrace.ResourceSpans, rs ResourceSpans) error {
	res, err := rs.Resource()
	if err != nil {
		return err
	}
	info, err := res.Info()
	if err != nil {
		return err
	}
	dst.Resource().SetDroppedAttributesCount(info.DroppedAttributesCount)
	if err := fillMap(dst.Resource().Attributes(), res.Attributes()); err != nil {
		return err
	}

	for ss, err := range rs.ScopeSpans() {
		if err != nil {
			return err
		}
		if err := fillScopeSpans(dst.ScopeSpans().AppendEmpty(), ss); err != nil {
			return err
		}
	}

	schemaURL, err := rs.SchemaURL()
	if err != nil {
		return err
	}
	dst.SetSchemaUrl(schemaURL)
	return nil
}

func fillScopeSpans(dst ptrace.ScopeSpans, ss ScopeSpans) error {
	scope, err := ss.Scope()
	if err != nil {
		return err
	}
	info, err := scope.Info()
	if err != nil {
		return err
	}
	dst.Scope().SetName(info.Name)
	dst.Scope().SetVersion(info.Version)
	dst.Scope().SetDroppedAttributesCount(info.DroppedAttributesCount)
	if err := fillMap(dst.Scope().Attributes(), scope.Attributes()); err != nil {
		return err
	}

	for span, err := range ss.Spans() {
		if err != nil {
			return err
		}
		if err := fillSpan(dst.Spans().AppendEmpty(), span); err != nil {
			return err
		}
	}

	schemaURL, err := ss.SchemaURL()
	if err != nil {
		return err
	}
	dst.SetSchemaUrl(schemaURL)
	return nil
}

func fillSpan(dst ptrace.Span, span Span) error {
	info, err := span.Info()
	if err != nil {
		return err
	}

	traceID, err := DecodeTraceID(info.TraceID)
	if err != nil {
		return err
	}
	spanID, err := DecodeSpanID(info.SpanID)
	if err != nil {
		return err
	}
	parentID, err := DecodeSpanID(info.ParentSpanID)
	if err != nil {
		return err
	}

	dst.SetTraceID(traceID)
	dst.SetSpanID(spanID)
	dst.SetParentSpanID(parentID)
	dst.TraceState().FromRaw(info.TraceState)
	dst.SetFlags(info.Flags)
	dst.SetName(info.Name)
	dst.SetKind(ptrace.SpanKind(info.Kind))
	dst.SetStartTimestamp(pcommon.Timestamp(info.StartTimeUnixNano))
	dst.SetEndTimestamp(pcommon.Timestamp(info.EndTimeUnixNano))
	dst.SetDroppedAttributesCount(info.DroppedAttributesCount)
	dst.SetDroppedEventsCount(info.DroppedEventsCount)
	dst.SetDroppedLinksCount(info.DroppedLinksCount)
	dst.Status().SetMessage(info.Status.Message)
	dst.Status().SetCode(ptrace.StatusCode(info.Status.Code))

	if err := fillMap(dst.Attributes(), span.Attributes()); err != nil {
		return err
	}

	for event, err := range span.Events() {
		if err != nil {
			return err
		}
		ev, err := event.Info()
		if err != nil {
			return err
		}
		e := dst.Events().AppendEmpty()
		e.SetTimestamp(pcommon.Timestamp(ev.TimeUnixNano))
		e.SetName(ev.Name)
		e.SetDroppedAttributesCount(ev.DroppedAttributesCount)
		if err := fillMap(e.Attributes(), event.Attributes()); err != nil {
			return err
		}
	}

	for link, err := range span.Links() {
		if err != nil {
			return err
		}
		li, err := link.Info()
		if err != nil {
			return err
		}
		l := dst.Links().AppendEmpty()
		linkTraceID, err := DecodeTraceID(li.TraceID)
		if err != nil {
			return err
		}
		linkSpanID, err := DecodeSpanID(li.SpanID)
		if err != nil {
			return err
		}
		l.SetTraceID(linkTraceID)
		l.SetSpanID(linkSpanID)
		l.TraceState().FromRaw(li.TraceState)
		l.SetFlags(li.Flags)
		l.SetDroppedAttributesCount(li.DroppedAttributesCount)
		if err := fillMap(l.Attributes(), link.Attributes()); err != nil {
			return err
		}
	}

	return nil
}

func fillMap(dst pcommon.Map, fields attribute.Fields) error {
	for f, err := range fields {
		if err != nil {
			return err
		}
		if err := setValue(dst.PutEmpty(f.Key), f.Value); err != nil {
			return err
		}
	}
	return nil
}

func setValue(dst pcommon.Value, n attribute.Node) error {
	switch n.Kind() {
	case attribute.KindString:
		dst.SetStr(n.Literal().Str())
	case attribute.KindBool:
		dst.SetBool(n.Literal().BoolVal())
	case attribute.KindInt:
		dst.SetInt(n.Literal().IntVal())
	case attribute.KindDouble:
		dst.SetDouble(n.Literal().DoubleVal())
	case attribute.KindList:
		slice := dst.SetEmptySlice()
		for item, err := range n.Items() {
			if err != nil {
				return err
			}
			if err := setValue(slice.AppendEmpty(), item); err != nil {
				return err
			}
		}
	case attribute.KindMap:
		return fillMap(dst.SetEmptyMap(), n.Fields())
	}
	return nil
}
