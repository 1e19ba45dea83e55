package proxy

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlptest"
)

// pagedProxy serves two independent sub-queries ("a" and "b") of three pages each
type pagedProxy struct {
	calls []string
	fail  bool
}

func (p *pagedProxy) QueryPage(_ context.Context, q Query) otlp.Seq[Result] {
	return func(yield func(Result, error) bool) {
		token := string(q.PageToken)
		p.calls = append(p.calls, token)
		if p.fail && token != "" {
			yield(Result{}, &BackendError{Status: 500, Code: "boom", Title: "upstream failed"})
			return
		}

		if token == "" {
			if !yield(Result{Spans: namedPage("root")}, nil) {
				return
			}
			if !yield(Result{Token: PageToken("a1")}, nil) {
				return
			}
			yield(Result{Token: PageToken("b1")}, nil)
			return
		}

		stream, n := token[:1], token[1:]
		idx, _ := strconv.Atoi(n)
		if !yield(Result{Spans: namedPage(token)}, nil) {
			return
		}
		if idx < 3 {
			yield(Result{Token: PageToken(stream + strconv.Itoa(idx+1))}, nil)
		}
	}
}

func namedPage(name string) otlp.SpanCollection {
	td := &otlp.TracesData{ResourceSpans: []otlp.ResourceSpansData{{
		ScopeSpans: []otlp.ScopeSpansData{{
			Spans: []otlp.SpanData{otlptest.NewSpan(otlptest.TraceID1, "0000000000000001", name, 1, 2)},
		}},
	}}}
	return td.Collection()
}

func pageName(t *testing.T, c otlp.SpanCollection) string {
	td, err := otlp.Materialize(c)
	require.NoError(t, err)
	return td.ResourceSpans[0].ScopeSpans[0].Spans[0].Name
}

func TestQueryAllFollowsEveryToken(t *testing.T) {
	p := &pagedProxy{}

	var names []string
	for page, err := range QueryAll(context.Background(), p, Query{}) {
		require.NoError(t, err)
		names = append(names, pageName(t, page))
	}

	require.Len(t, names, 7)
	assert.Equal(t, "root", names[0])

	indexOf := func(s string) int {
		for i, n := range names {
			if n == s {
				return i
			}
		}
		return -1
	}
	for _, stream := range []string{"a", "b"} {
		assert.Less(t, indexOf(stream+"1"), indexOf(stream+"2"))
		assert.Less(t, indexOf(stream+"2"), indexOf(stream+"3"))
	}
	assert.Len(t, p.calls, 7)
}

func TestQueryAllStopsOnError(t *testing.T) {
	p := &pagedProxy{fail: true}

	var pages int
	var lastErr error
	for _, err := range QueryAll(context.Background(), p, Query{}) {
		if err != nil {
			lastErr = err
			break
		}
		pages++
	}

	assert.Equal(t, 1, pages)
	var backendErr *BackendError
	require.True(t, errors.As(lastErr, &backendErr))
	assert.Equal(t, 500, backendErr.Status)
	assert.False(t, IsUserError(lastErr))
}

func TestQueryAllEarlyBreak(t *testing.T) {
	p := &pagedProxy{}
	for range QueryAll(context.Background(), p, Query{}) {
		break
	}
	assert.Len(t, p.calls, 1)
}

func TestQueryAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, err := range QueryAll(ctx, &pagedProxy{}, Query{}) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestTokenText(t *testing.T) {
	tokens := []PageToken{PageToken("abc"), {0x02, 0x00, 0x00, 0x00, 0xff}, PageToken("2024-10-15T15:46:34.857023153Z")}

	text := EncodeTokens(tokens)
	assert.Equal(t, 2, countDots(text))

	decoded, err := DecodeTokens(text)
	require.NoError(t, err)
	assert.Equal(t, tokens, decoded)

	decoded, err = DecodeTokens("YWJj")
	require.NoError(t, err)
	assert.Equal(t, []PageToken{PageToken("abc")}, decoded)

	decoded, err = DecodeTokens("YWI=")
	require.NoError(t, err)
	assert.Equal(t, []PageToken{PageToken("ab")}, decoded)

	decoded, err = DecodeTokens("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = DecodeTokens("abc.!!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func countDots(s string) int {
	n := 0
	for _, c := range s {
		if c == '.' {
			n++
		}
	}
	return n
}

func TestCallerContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CallerFrom(ctx))

	ctx = WithCaller(ctx, "Bearer secret")
	assert.Equal(t, "Bearer secret", CallerFrom(ctx))

	resolve := StaticResolver(42)
	v, err := resolve(ctx, CallerFrom(ctx))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestInstrumentCounts(t *testing.T) {
	metrics := NewMetrics()
	p := Instrument(&pagedProxy{}, "paged", metrics, nil)

	for _, err := range QueryAll(context.Background(), p, Query{}) {
		require.NoError(t, err)
	}

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(7), snapshot["queries"])
	assert.Equal(t, int64(7), snapshot["pages"])
	assert.Equal(t, int64(6), snapshot["page_tokens"])
	assert.Equal(t, int64(0), snapshot["query_errors"])

	failing := Instrument(&pagedProxy{fail: true}, "failing", metrics, nil)
	for _, err := range QueryAll(context.Background(), failing, Query{}) {
		if err != nil {
			break
		}
	}
	assert.Equal(t, int64(1), metrics.Snapshot()["query_errors"])
}
