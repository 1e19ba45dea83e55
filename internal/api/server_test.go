package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlpjson"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlptest"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

type response struct {
	Data []struct {
		ID         string         `json:"id"`
		Type       string         `json:"type"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
	Links struct {
		Self  string  `json:"self"`
		First string  `json:"first"`
		Next  *string `json:"next"`
	} `json:"links"`
	Meta struct {
		Page struct {
			NextPageToken *string `json:"next_page_token"`
		} `json:"page"`
	} `json:"meta"`
	Errors []apiError `json:"errors"`
}

// pagingProxy hands out one token on the first page and records callers
type pagingProxy struct {
	callers []any
	err     error
}

func (p *pagingProxy) QueryPage(ctx context.Context, q proxy.Query) otlp.Seq[proxy.Result] {
	return func(yield func(proxy.Result, error) bool) {
		p.callers = append(p.callers, proxy.CallerFrom(ctx))
		if p.err != nil {
			yield(proxy.Result{}, p.err)
			return
		}
		td := &otlp.TracesData{ResourceSpans: otlptest.NewTraces().ResourceSpans[:1]}
		if !yield(proxy.Result{Spans: td.Collection()}, nil) {
			return
		}
		if q.PageToken == nil {
			yield(proxy.Result{Token: proxy.PageToken("second")}, nil)
		}
	}
}

func get(t *testing.T, h http.Handler, target string, header http.Header) (int, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	if rec.Header().Get("Content-Type") == MediaType {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func spanIDs(t *testing.T, resp response) []string {
	t.Helper()
	var ids []string
	for _, item := range resp.Data {
		view, err := otlpjson.New(item.Attributes)
		require.NoError(t, err)
		td, err := otlp.Materialize(view)
		require.NoError(t, err)
		for _, rs := range td.ResourceSpans {
			for _, ss := range rs.ScopeSpans {
				for _, span := range ss.Spans {
					ids = append(ids, span.SpanID)
				}
			}
		}
	}
	return ids
}

func createStaticRouter() http.Handler {
	return NewRouter(proxy.NewStaticProxy(otlptest.NewTraces(), nil), nil, nil)
}

func TestRoot(t *testing.T) {
	code, resp := get(t, createStaticRouter(), "/", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "get_spans", resp.Data[0].ID)
	assert.Equal(t, "api_path", resp.Data[0].Type)
}

func TestListSpans(t *testing.T) {
	h := createStaticRouter()

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{
			name:   "everything",
			target: "/v1/spans",
			want:   []string{"eee19b7ec3c1b174", "eee19b7ec3c1b175", "eee19b7ec3c1b176", "eee19b7ec3c1b177"},
		},
		{
			name:   "trace",
			target: "/v1/spans/" + otlptest.TraceID2,
			want:   []string{"eee19b7ec3c1b176", "eee19b7ec3c1b177"},
		},
		{
			name:   "span",
			target: "/v1/spans/" + otlptest.TraceID1 + "/eee19b7ec3c1b175",
			want:   []string{"eee19b7ec3c1b175"},
		},
		{
			name:   "attributes and name",
			target: "/v1/spans?resource_attributes=service.name%3Dres2&span_attributes=http.method%3DGET&span_name=some_span3",
			want:   []string{"eee19b7ec3c1b177"},
		},
		{
			name:   "time window",
			target: "/v1/spans?from_time=1970-01-01T00:00:00.000002600Z&to_time=1970-01-01T00:00:00.000004000Z",
			want:   []string{"eee19b7ec3c1b176"},
		},
		{
			name:   "scope presence",
			target: "/v1/spans?scope_attributes=string_scope_attr",
			want:   []string{"eee19b7ec3c1b176"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := get(t, h, tt.target, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.want, spanIDs(t, resp))
			assert.Nil(t, resp.Meta.Page.NextPageToken)
			assert.Nil(t, resp.Links.Next)
		})
	}
}

func TestListSpansBodyIsCanonicalJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/spans", nil)
	rec := httptest.NewRecorder()
	createStaticRouter().ServeHTTP(rec, req)

	expected, err := otlp.MarshalJSON(otlptest.NewTraces().Collection())
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), `"attributes":`+string(expected))
	assert.Equal(t, MediaType, rec.Header().Get("Content-Type"))
}

func TestPagination(t *testing.T) {
	p := &pagingProxy{}
	h := NewRouter(p, nil, nil)

	code, resp := get(t, h, "/v1/spans?span_name=x", http.Header{"Authorization": {"Bearer abc"}})
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Meta.Page.NextPageToken)
	assert.Equal(t, proxy.EncodeTokens([]proxy.PageToken{proxy.PageToken("second")}), *resp.Meta.Page.NextPageToken)
	require.NotNil(t, resp.Links.Next)
	assert.Equal(t, "/v1/spans?span_name=x", resp.Links.First)

	next, err := url.Parse(*resp.Links.Next)
	require.NoError(t, err)
	assert.Equal(t, "x", next.Query().Get("span_name"))

	code, resp = get(t, h, next.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Data, 1)
	assert.Nil(t, resp.Meta.Page.NextPageToken)

	assert.Equal(t, []any{"Bearer abc", nil}, p.callers)
}

func TestMultipleTokensResumeEach(t *testing.T) {
	p := &pagingProxy{}
	h := NewRouter(p, nil, nil)

	tokens := proxy.EncodeTokens([]proxy.PageToken{proxy.PageToken("a"), proxy.PageToken("b")})
	code, resp := get(t, h, "/v1/spans?page_token="+tokens, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Data, 2)
	assert.Len(t, p.callers, 2)
}

func TestBadRequests(t *testing.T) {
	h := createStaticRouter()

	for _, target := range []string{
		"/v1/spans?from_time=yesterday",
		"/v1/spans?span_attributes=%3Dvalue",
		"/v1/spans?page_size=-1",
		"/v1/spans?page_token=%21%21%21",
		"/v1/spans?page_token=YWJj",
	} {
		t.Run(target, func(t *testing.T) {
			code, resp := get(t, h, target, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, "400", resp.Errors[0].Status)
			assert.NotEmpty(t, resp.Errors[0].Detail)
		})
	}
}

func TestBackendErrorsKeepStatus(t *testing.T) {
	p := &pagingProxy{err: &proxy.BackendError{Status: http.StatusForbidden, Code: "security_exception", Title: "Access denied"}}

	code, resp := get(t, NewRouter(p, nil, nil), "/v1/spans", nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, apiError{Status: "403", Code: "security_exception", Title: "Access denied"}, resp.Errors[0])
}

func TestUnknownRoute(t *testing.T) {
	code, resp := get(t, createStaticRouter(), "/v2/spans", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "not_found", resp.Errors[0].Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("trace_access_queries_total 1\n"))
	})
	h := NewRouter(proxy.NewStaticProxy(nil, nil), metrics, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trace_access_queries_total")
}
