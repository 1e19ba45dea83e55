// Package ss4o projects search-index span documents (the Simple Schema for
// Observability layout) onto the common span model.
//
// Each document holds one span together with copies of its resource and
// instrumentation scope. Documents are grouped into resources and scopes by
// runs of consecutive equal resource and scope objects, so input must already
// be sorted by resource and then scope; an out of order stream yields several
// groups for the same logical resource.
package ss4o

import (
	"bytes"
	"io"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

var (
	// parseConfig keeps numbers as json.Number so ints and doubles stay apart.
	parseConfig = jsoniter.Config{UseNumber: true}.Froze()

	// keyConfig renders group keys with sorted object keys.
	keyConfig = jsoniter.Config{SortMapKeys: true}.Froze()
)

// ParseBare reads a JSON list of span documents.
func ParseBare(r io.Reader) (otlp.SpanCollection, error) {
	var doc any
	if err := parseConfig.NewDecoder(r).Decode(&doc); err != nil {
		return nil, otlp.Malformedf("invalid JSON document: %v", err)
	}
	docs, ok := doc.([]any)
	if !ok {
		return nil, otlp.Malformedf("bare document must be a list, got %T", doc)
	}
	return New(docs), nil
}

// ParseResponse reads a search response envelope with hits.hits[]._source.
func ParseResponse(r io.Reader) (otlp.SpanCollection, error) {
	var doc any
	if err := parseConfig.NewDecoder(r).Decode(&doc); err != nil {
		return nil, otlp.Malformedf("invalid JSON document: %v", err)
	}
	return NewFromResponse(doc)
}

// DecodeSources parses raw _source documents, as returned by a search client.
func DecodeSources(sources [][]byte) (otlp.SpanCollection, error) {
	docs := make([]any, 0, len(sources))
	for _, src := range sources {
		var doc any
		if err := parseConfig.Unmarshal(src, &doc); err != nil {
			return nil, otlp.Malformedf("invalid span document: %v", err)
		}
		docs = append(docs, doc)
	}
	return New(docs), nil
}

// NewFromResponse wraps a parsed search response envelope.
func NewFromResponse(envelope any) (otlp.SpanCollection, error) {
	obj, err := asObject(envelope, "search response")
	if err != nil {
		return nil, err
	}
	outer, err := optionalObject(obj, "hits")
	if err != nil {
		return nil, err
	}
	hits, err := optionalList(outer, "hits")
	if err != nil {
		return nil, err
	}
	docs := make([]any, 0, len(hits))
	for _, hit := range hits {
		h, err := asObject(hit, "hit")
		if err != nil {
			return nil, err
		}
		docs = append(docs, h["_source"])
	}
	return New(docs), nil
}

// New wraps a list of parsed span documents. The documents are borrowed and
// never modified.
func New(docs []any) otlp.SpanCollection {
	c := &collection{docs: docs}
	c.once = otlp.NewOnce[otlp.ResourceSpans](c.resourceSpans)
	return c
}

// groupKey identifies a resource or scope object by its canonical encoding.
type groupKey struct {
	hash uint64
	raw  []byte
}

func (k groupKey) equal(o groupKey) bool {
	return k.hash == o.hash && bytes.Equal(k.raw, o.raw)
}

func keyOf(doc map[string]any, field string) (groupKey, error) {
	raw, err := keyConfig.Marshal(doc[field])
	if err != nil {
		return groupKey{}, otlp.Malformedf("cannot encode %s: %v", field, err)
	}
	return groupKey{hash: xxhash.Sum64(raw), raw: raw}, nil
}

// runs splits docs into maximal runs with equal keys for field.
func runs(docs []map[string]any, field string, yield func([]map[string]any) bool) error {
	for start := 0; start < len(docs); {
		key, err := keyOf(docs[start], field)
		if err != nil {
			return err
		}
		end := start + 1
		for ; end < len(docs); end++ {
			next, err := keyOf(docs[end], field)
			if err != nil {
				return err
			}
			if !next.equal(key) {
				break
			}
		}
		if !yield(docs[start:end]) {
			return nil
		}
		start = end
	}
	return nil
}

type collection struct {
	docs []any
	once *otlp.Once[otlp.ResourceSpans]
}

func (c *collection) ResourceSpans() otlp.Seq[otlp.ResourceSpans] { return c.once.Seq() }

func (c *collection) resourceSpans(yield func(otlp.ResourceSpans, error) bool) {
	docs := make([]map[string]any, 0, len(c.docs))
	for _, d := range c.docs {
		obj, err := asObject(d, "span document")
		if err != nil {
			yield(nil, err)
			return
		}
		docs = append(docs, obj)
	}

	err := runs(docs, "resource", func(group []map[string]any) bool {
		rs := &resourceSpans{docs: group}
		rs.once = otlp.NewOnce[otlp.ScopeSpans](rs.scopeSpans)
		more := yield(rs, nil)
		rs.once.Invalidate()
		return more
	})
	if err != nil {
		yield(nil, err)
	}
}

type resourceSpans struct {
	docs []map[string]any
	once *otlp.Once[otlp.ScopeSpans]
}

func (r *resourceSpans) Resource() (otlp.Resource, error) {
	obj, err := optionalObject(r.docs[0], "resource")
	if err != nil {
		return nil, err
	}
	return resource{obj}, nil
}

func (r *resourceSpans) ScopeSpans() otlp.Seq[otlp.ScopeSpans] { return r.once.Seq() }

func (r *resourceSpans) scopeSpans(yield func(otlp.ScopeSpans, error) bool) {
	err := runs(r.docs, "instrumentationScope", func(group []map[string]any) bool {
		ss := &scopeSpans{docs: group}
		ss.once = otlp.NewOnce[otlp.Span](ss.spans)
		more := yield(ss, nil)
		ss.once.Invalidate()
		return more
	})
	if err != nil {
		yield(nil, err)
	}
}

// SchemaURL is not stored per resource.
func (r *resourceSpans) SchemaURL() (string, error) { return "", nil }

type scopeSpans struct {
	docs []map[string]any
	once *otlp.Once[otlp.Span]
}

func (s *scopeSpans) Scope() (otlp.Scope, error) {
	obj, err := optionalObject(s.docs[0], "instrumentationScope")
	if err != nil {
		return nil, err
	}
	return scope{obj}, nil
}

func (s *scopeSpans) Spans() otlp.Seq[otlp.Span] { return s.once.Seq() }

func (s *scopeSpans) spans(yield func(otlp.Span, error) bool) {
	for _, doc := range s.docs {
		if !yield(span{doc}, nil) {
			return
		}
	}
}

func (s *scopeSpans) SchemaURL() (string, error) {
	obj, err := optionalObject(s.docs[0], "instrumentationScope")
	if err != nil {
		return "", err
	}
	return optionalString(obj, "schemaUrl")
}

// resource reads attributes from resource.attributes when present, and from
// the resource object itself otherwise.
type resource struct{ obj map[string]any }

func (r resource) Info() (otlp.ResourceInfo, error) {
	dropped, err := optionalUint32(r.obj, "droppedAttributesCount")
	return otlp.ResourceInfo{DroppedAttributesCount: dropped}, err
}

func (r resource) Attributes() attribute.Fields {
	if attrs, ok := r.obj["attributes"].(map[string]any); ok {
		return attributes(attrs)
	}
	return attributes(r.obj)
}

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

func (s scope) Attributes() attribute.Fields {
	obj, err := optionalObject(s.obj, "attributes")
	if err != nil {
		return attribute.ErrorFields(err)
	}
	return attributes(obj)
}

type span struct{ doc map[string]any }

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
		if *f.dst, err = optionalString(s.doc, f.key); err != nil {
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
		if *f.dst, err = optionalUint32(s.doc, f.key); err != nil {
			return info, err
		}
	}

	if info.Kind, err = enumName(s.doc, "kind", otlp.SpanKindFromName); err != nil {
		return info, err
	}
	if info.StartTimeUnixNano, err = requiredTime(s.doc, "startTime"); err != nil {
		return info, err
	}
	if info.EndTimeUnixNano, err = requiredTime(s.doc, "endTime"); err != nil {
		return info, err
	}

	status, err := optionalObject(s.doc, "status")
	if err != nil {
		return info, err
	}
	if info.Status.Message, err = optionalString(status, "message"); err != nil {
		return info, err
	}
	info.Status.Code, err = enumName(status, "code", otlp.StatusCodeFromName)
	return info, err
}

func (s span) Attributes() attribute.Fields {
	obj, err := optionalObject(s.doc, "attributes")
	if err != nil {
		return attribute.ErrorFields(err)
	}
	return attributes(obj)
}

func (s span) Events() otlp.Seq[otlp.SpanEvent] {
	return func(yield func(otlp.SpanEvent, error) bool) {
		list, err := optionalList(s.doc, "events")
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
		list, err := optionalList(s.doc, "links")
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
	if info.TimeUnixNano, err = requiredTime(e.obj, "@timestamp"); err != nil {
		return info, err
	}
	if info.Name, err = optionalString(e.obj, "name"); err != nil {
		return info, err
	}
	info.DroppedAttributesCount, err = optionalUint32(e.obj, "droppedAttributesCount")
	return info, err
}

func (e event) Attributes() attribute.Fields {
	obj, err := optionalObject(e.obj, "attributes")
	if err != nil {
		return attribute.ErrorFields(err)
	}
	return attributes(obj)
}

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

func (l link) Attributes() attribute.Fields {
	obj, err := optionalObject(l.obj, "attributes")
	if err != nil {
		return attribute.ErrorFields(err)
	}
	return attributes(obj)
}
