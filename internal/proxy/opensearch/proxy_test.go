package opensearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// fakeSearcher serves pages of a fixed document list sorted by start time
type fakeSearcher struct {
	docs   [][]byte
	err    error
	bodies []map[string]any
}

func (f *fakeSearcher) Search(_ context.Context, index string, body []byte) ([][]byte, error) {
	if index != DefaultIndex {
		return nil, fmt.Errorf("unexpected index %q", index)
	}
	var parsed map[string]any
	if err := jsoniter.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	f.bodies = append(f.bodies, parsed)
	if f.err != nil {
		return nil, f.err
	}

	start := 0
	if after, ok := parsed["search_after"].([]any); ok {
		for start < len(f.docs) && jsoniter.Get(f.docs[start], "startTime").ToString() <= after[0].(string) {
			start++
		}
	}
	size := int(parsed["size"].(float64))
	end := start + size
	if end > len(f.docs) {
		end = len(f.docs)
	}
	return f.docs[start:end], nil
}

func createTestDoc(i int) []byte {
	return []byte(fmt.Sprintf(`{"traceId":"5b8efff798038103d269b633813fc60c","spanId":"eee19b7ec3c1b17%d",`+
		`"parentSpanId":"","name":"op-%d","kind":"SPAN_KIND_SERVER",`+
		`"startTime":"2024-10-15T15:46:3%d.000000001Z","endTime":"2024-10-15T15:46:3%d.5Z",`+
		`"status":{"code":"Unset"},"resource":{"attributes":{"service.name":"svc"}},`+
		`"instrumentationScope":{"name":"lib"}}`, i, i, i, i))
}

func createTestProxy(searcher Searcher, pageSize int) *Proxy {
	cfg := DefaultConfig()
	cfg.PageSize = pageSize
	return NewProxy(cfg, proxy.StaticResolver(searcher), nil)
}

func spanNames(t *testing.T, c otlp.SpanCollection) []string {
	td, err := otlp.Materialize(c)
	require.NoError(t, err)
	var names []string
	for _, rs := range td.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				names = append(names, span.Name)
			}
		}
	}
	return names
}

func TestBuildQuery(t *testing.T) {
	q := proxy.Query{
		From:               time.Date(2024, 10, 15, 15, 0, 0, 1, time.UTC),
		To:                 time.Date(2024, 10, 15, 16, 0, 0, 0, time.UTC),
		Selectors:          []proxy.Selector{{TraceID: "abc"}, {TraceID: "def", SpanID: "012"}},
		ResourceAttributes: attribute.Filter{"service.name": {"svc"}},
		ScopeAttributes:    attribute.Filter{"lib.version": nil},
		SpanAttributes:     attribute.Filter{"http.method": {"GET", "POST"}},
		SpanName:           "op",
		PageToken:          proxy.PageToken("2024-10-15T15:46:34.857023153Z"),
	}

	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(BuildQuery(q, DefaultFieldMapping(), 10))
	require.NoError(t, err)

	expected := `{
		"query": {"bool": {"filter": [
			{"range": {"endTime": {"gte": "2024-10-15T15:00:00.000000001Z"}}},
			{"range": {"startTime": {"lte": "2024-10-15T16:00:00Z"}}},
			{"bool": {"minimum_should_match": 1, "should": [
				{"bool": {"filter": [{"term": {"traceId": {"value": "abc"}}}]}},
				{"bool": {"filter": [{"term": {"traceId": {"value": "def"}}}, {"term": {"spanId": {"value": "012"}}}]}}
			]}},
			{"term": {"resource.attributes.service.name": {"value": "svc"}}},
			{"exists": {"field": "instrumentationScope.attributes.lib.version"}},
			{"terms": {"attributes.http.method": ["GET", "POST"]}},
			{"term": {"name.keyword": {"value": "op"}}}
		]}},
		"search_after": ["2024-10-15T15:46:34.857023153Z"],
		"size": 10,
		"sort": [{"startTime": {"order": "asc"}}]
	}`
	assert.JSONEq(t, expected, string(body))
}

func TestBuildQueryWildcardSelector(t *testing.T) {
	q := proxy.Query{Selectors: []proxy.Selector{{TraceID: "abc"}, {}}}

	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(BuildQuery(q, DefaultFieldMapping(), 100))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"bool":{"filter":[]}},"size":100,"sort":[{"startTime":{"order":"asc"}}]}`, string(body))
}

func TestQueryPagePaginates(t *testing.T) {
	searcher := &fakeSearcher{}
	for i := 0; i < 5; i++ {
		searcher.docs = append(searcher.docs, createTestDoc(i))
	}
	p := createTestProxy(searcher, 2)

	var names []string
	for page, err := range proxy.QueryAll(context.Background(), p, proxy.Query{}) {
		require.NoError(t, err)
		names = append(names, spanNames(t, page)...)
	}

	assert.Equal(t, []string{"op-0", "op-1", "op-2", "op-3", "op-4"}, names)
	require.Len(t, searcher.bodies, 3)
	assert.NotContains(t, searcher.bodies[0], "search_after")
	assert.Equal(t, []any{"2024-10-15T15:46:31.000000001Z"}, searcher.bodies[1]["search_after"])
}

func TestQueryPageExactMultipleEndsWithEmptyPage(t *testing.T) {
	searcher := &fakeSearcher{docs: [][]byte{createTestDoc(0), createTestDoc(1)}}
	p := createTestProxy(searcher, 2)

	pages := 0
	for _, err := range proxy.QueryAll(context.Background(), p, proxy.Query{}) {
		require.NoError(t, err)
		pages++
	}
	assert.Equal(t, 2, pages)
}

func TestQueryPageRejectsBadToken(t *testing.T) {
	searcher := &fakeSearcher{}
	p := createTestProxy(searcher, 2)

	for _, err := range p.QueryPage(context.Background(), proxy.Query{PageToken: proxy.PageToken("not-a-time")}) {
		assert.ErrorIs(t, err, proxy.ErrInvalidPageToken)
		assert.True(t, proxy.IsUserError(err))
	}
	assert.Empty(t, searcher.bodies)
}

func TestQueryPageMissingIndexIsEmpty(t *testing.T) {
	p := createTestProxy(&fakeSearcher{err: ErrIndexNotFound}, 2)

	var results []proxy.Result
	for res, err := range p.QueryPage(context.Background(), proxy.Query{}) {
		require.NoError(t, err)
		results = append(results, res)
	}
	require.Len(t, results, 1)
	assert.Empty(t, spanNames(t, results[0].Spans))
}

func TestQueryPageBackendError(t *testing.T) {
	upstream := opensearchapi.Error{Status: http.StatusForbidden}
	upstream.Err.Type = "security_exception"
	upstream.Err.Reason = "no permissions for [indices:data/read/search] and User [name=reader]"
	p := createTestProxy(&fakeSearcher{err: upstream}, 2)

	for _, err := range p.QueryPage(context.Background(), proxy.Query{}) {
		var backendErr *proxy.BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusForbidden, backendErr.Status)
		assert.Equal(t, "security_exception", backendErr.Code)
		assert.Equal(t, "Access denied", backendErr.Title)
		assert.NotContains(t, err.Error(), "reader")
	}
}

func TestQueryPageUsesCallerSearcher(t *testing.T) {
	searchers := map[string]*fakeSearcher{
		"alice": {docs: [][]byte{createTestDoc(1)}},
		"bob":   {docs: [][]byte{createTestDoc(2)}},
	}
	resolve := func(_ context.Context, caller any) (Searcher, error) {
		s, ok := searchers[fmt.Sprint(caller)]
		if !ok {
			return nil, &proxy.BackendError{Status: http.StatusUnauthorized, Code: "unauthorized", Title: "Authentication failed"}
		}
		return s, nil
	}
	p := NewProxy(DefaultConfig(), resolve, nil)

	ctx := proxy.WithCaller(context.Background(), "bob")
	for page, err := range proxy.QueryAll(ctx, p, proxy.Query{}) {
		require.NoError(t, err)
		assert.Equal(t, []string{"op-2"}, spanNames(t, page))
	}

	ctx = proxy.WithCaller(context.Background(), "mallory")
	for _, err := range proxy.QueryAll(ctx, p, proxy.Query{}) {
		var backendErr *proxy.BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusUnauthorized, backendErr.Status)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "unauthorized",
			err:    opensearchapi.Error{Status: http.StatusUnauthorized},
			status: http.StatusUnauthorized,
			code:   "search_error",
		},
		{
			name:   "string error",
			err:    fmt.Errorf("search failed: %w", opensearchapi.StringError{Status: http.StatusBadRequest, Err: "no handler found for uri [/10.0.0.1/_search]"}),
			status: http.StatusBadRequest,
			code:   "search_error",
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("request failed: %w", context.DeadlineExceeded),
			status: http.StatusInternalServerError,
			code:   "timeout",
		},
		{
			name:   "connection refused",
			err:    errors.New("dial tcp 10.0.0.1:9200: connect: connection refused"),
			status: http.StatusBadGateway,
			code:   "backend_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backendErr *proxy.BackendError
			require.True(t, errors.As(ClassifyError(tt.err), &backendErr))
			assert.Equal(t, tt.status, backendErr.Status)
			assert.Equal(t, tt.code, backendErr.Code)
			assert.NotContains(t, backendErr.Error(), "10.0.0.1")
		})
	}

	assert.ErrorIs(t, ClassifyError(context.Canceled), context.Canceled)
	assert.NoError(t, ClassifyError(nil))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.PageSize = 0
	assert.Error(t, cfg.Validate())

	client := ClientConfig{}
	assert.Error(t, client.Validate())
	client.Addresses = []string{"https://localhost:9200"}
	assert.NoError(t, client.Validate())
}
