package otlp

import (
	"fmt"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// Materialize deep-copies every reachable field of c into owned structures.
func Materialize(c SpanCollection) (*TracesData, error) {
	out := &TracesData{}
	for rs, err := range c.ResourceSpans() {
		if err != nil {
			return nil, err
		}
		data, err := materializeResourceSpans(rs)
		if err != nil {
			return nil, err
		}
		out.ResourceSpans = append(out.ResourceSpans, data)
	}
	return out, nil
}

func materializeResourceSpans(rs ResourceSpans) (ResourceSpansData, error) {
	var out ResourceSpansData

	res, err := rs.Resource()
	if err != nil {
		return out, err
	}
	if out.Resource.ResourceInfo, err = res.Info(); err != nil {
		return out, err
	}
	if out.Resource.Attributes, err = attribute.ForceFields(res.Attributes()); err != nil {
		return out, fmt.Errorf("failed to read resource attributes: %w", err)
	}

	for ss, err := range rs.ScopeSpans() {
		if err != nil {
			return out, err
		}
		data, err := materializeScopeSpans(ss)
		if err != nil {
			return out, err
		}
		out.ScopeSpans = append(out.ScopeSpans, data)
	}

	out.SchemaURL, err = rs.SchemaURL()
	return out, err
}

func materializeScopeSpans(ss ScopeSpans) (ScopeSpansData, error) {
	var out ScopeSpansData

	scope, err := ss.Scope()
	if err != nil {
		return out, err
	}
	if out.Scope.ScopeInfo, err = scope.Info(); err != nil {
		return out, err
	}
	if out.Scope.Attributes, err = attribute.ForceFields(scope.Attributes()); err != nil {
		return out, fmt.Errorf("failed to read scope attributes: %w", err)
	}

	for span, err := range ss.Spans() {
		if err != nil {
			return out, err
		}
		data, err := materializeSpan(span)
		if err != nil {
			return out, err
		}
		out.Spans = append(out.Spans, data)
	}

	out.SchemaURL, err = ss.SchemaURL()
	return out, err
}

func materializeSpan(span Span) (SpanData, error) {
	var out SpanData
	var err error

	if out.SpanInfo, err = span.Info(); err != nil {
		return out, err
	}
	if out.Attributes, err = attribute.ForceFields(span.Attributes()); err != nil {
		return out, fmt.Errorf("failed to read attributes of span %s: %w", out.SpanID, err)
	}

	for event, err := range span.Events() {
		if err != nil {
			return out, err
		}
		var e EventData
		if e.EventInfo, err = event.Info(); err != nil {
			return out, err
		}
		if e.Attributes, err = attribute.ForceFields(event.Attributes()); err != nil {
			return out, fmt.Errorf("failed to read event attributes: %w", err)
		}
		out.Events = append(out.Events, e)
	}

	for link, err := range span.Links() {
		if err != nil {
			return out, err
		}
		var l LinkData
		if l.LinkInfo, err = link.Info(); err != nil {
			return out, err
		}
		if l.Attributes, err = attribute.ForceFields(link.Attributes()); err != nil {
			return out, fmt.Errorf("failed to read link attributes: %w", err)
		}
		out.Links = append(out.Links, l)
	}

	return out, nil
}
