package opensearch

import (
	"sort"
	"time"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// FieldMapping names the document fields a query is translated onto.
type FieldMapping struct {
	StartTime string `mapstructure:"start_time"`
	EndTime   string `mapstructure:"end_time"`
	TraceID   string `mapstructure:"trace_id"`
	SpanID    string `mapstructure:"span_id"`
	SpanName  string `mapstructure:"span_name"`

	ResourceAttributePrefix string `mapstructure:"resource_attribute_prefix"`
	ScopeAttributePrefix    string `mapstructure:"scope_attribute_prefix"`
	SpanAttributePrefix     string `mapstructure:"span_attribute_prefix"`
}

// DefaultFieldMapping returns the field names of the simple schema for
// observability trace index.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		StartTime:               "startTime",
		EndTime:                 "endTime",
		TraceID:                 "traceId",
		SpanID:                  "spanId",
		SpanName:                "name.keyword",
		ResourceAttributePrefix: "resource.attributes.",
		ScopeAttributePrefix:    "instrumentationScope.attributes.",
		SpanAttributePrefix:     "attributes.",
	}
}

// BuildQuery translates q into a search request body. Results are sorted by
// start time, and a page token is the start time of the last hit of the
// previous page.
func BuildQuery(q proxy.Query, fields FieldMapping, pageSize int) map[string]any {
	filter := []any{}

	// A span overlaps [From, To] when it ends after From and starts before To.
	if !q.From.IsZero() {
		filter = append(filter, rangeClause(fields.EndTime, "gte", q.From))
	}
	if !q.To.IsZero() {
		filter = append(filter, rangeClause(fields.StartTime, "lte", q.To))
	}

	if clause := selectorClause(q.Selectors, fields); clause != nil {
		filter = append(filter, clause)
	}

	filter = append(filter, attributeClauses(q.ResourceAttributes, fields.ResourceAttributePrefix)...)
	filter = append(filter, attributeClauses(q.ScopeAttributes, fields.ScopeAttributePrefix)...)
	filter = append(filter, attributeClauses(q.SpanAttributes, fields.SpanAttributePrefix)...)

	if q.SpanName != "" {
		filter = append(filter, term(fields.SpanName, q.SpanName))
	}

	body := map[string]any{
		"size":  pageSize,
		"query": map[string]any{"bool": map[string]any{"filter": filter}},
		"sort": []any{
			map[string]any{fields.StartTime: map[string]any{"order": "asc"}},
		},
	}
	if q.PageToken != nil {
		body["search_after"] = []any{string(q.PageToken)}
	}
	return body
}

func rangeClause(field, op string, t time.Time) map[string]any {
	return map[string]any{
		"range": map[string]any{
			field: map[string]any{op: t.UTC().Format(time.RFC3339Nano)},
		},
	}
}

func term(field, value string) map[string]any {
	return map[string]any{"term": map[string]any{field: map[string]any{"value": value}}}
}

// selectorClause ORs the selectors together. A selector without a trace id
// matches everything, which makes the whole clause redundant.
func selectorClause(selectors []proxy.Selector, fields FieldMapping) map[string]any {
	if len(selectors) == 0 {
		return nil
	}
	should := make([]any, 0, len(selectors))
	for _, sel := range selectors {
		if sel.TraceID == "" {
			return nil
		}
		must := []any{term(fields.TraceID, sel.TraceID)}
		if sel.SpanID != "" {
			must = append(must, term(fields.SpanID, sel.SpanID))
		}
		should = append(should, map[string]any{"bool": map[string]any{"filter": must}})
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

func attributeClauses(f attribute.Filter, prefix string) []any {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clauses := make([]any, 0, len(keys))
	for _, key := range keys {
		field := prefix + key
		values := f[key]
		switch {
		case values == nil:
			clauses = append(clauses, map[string]any{"exists": map[string]any{"field": field}})
		case len(values) == 1:
			clauses = append(clauses, term(field, values[0]))
		default:
			clauses = append(clauses, map[string]any{"terms": map[string]any{field: values}})
		}
	}
	return clauses
}
