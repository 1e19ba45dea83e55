package otlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
)

// createTestTraces builds a small collection exercising every field
func createTestTraces() *TracesData {
	return &TracesData{ResourceSpans: []ResourceSpansData{{
		Resource: ResourceData{
			Attributes: attribute.Map{{Key: "service.name", Value: attribute.String("my.service")}},
		},
		ScopeSpans: []ScopeSpansData{{
			Scope: ScopeData{
				ScopeInfo:  ScopeInfo{Name: "my.library", Version: "1.0.0"},
				Attributes: attribute.Map{{Key: "my.scope.attribute", Value: attribute.String("some scope attribute")}},
			},
			Spans: []SpanData{{
				SpanInfo: SpanInfo{
					TraceID:           "5b8efff798038103d269b633813fc60c",
					SpanID:            "eee19b7ec3c1b174",
					ParentSpanID:      "eee19b7ec3c1b173",
					Name:              "server-span",
					Kind:              SpanKindServer,
					StartTimeUnixNano: 1544712660000000000,
					EndTimeUnixNano:   1544712661000000000,
				},
				Attributes: attribute.Map{{Key: "my.span.attr", Value: attribute.String("some value")}},
			}},
		}},
	}}}
}

func TestMarshalJSONMinimal(t *testing.T) {
	b, err := MarshalJSON(createTestTraces().Collection())
	require.NoError(t, err)

	expected := `{"resourceSpans":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"my.service"}}]},` +
		`"scopeSpans":[{"scope":{"name":"my.library","version":"1.0.0","attributes":[{"key":"my.scope.attribute","value":{"stringValue":"some scope attribute"}}]},` +
		`"spans":[{"traceId":"5b8efff798038103d269b633813fc60c","spanId":"eee19b7ec3c1b174","parentSpanId":"eee19b7ec3c1b173",` +
		`"name":"server-span","kind":2,"startTimeUnixNano":"1544712660000000000","endTimeUnixNano":"1544712661000000000",` +
		`"attributes":[{"key":"my.span.attr","value":{"stringValue":"some value"}}],"status":{}}]}]}]}`
	assert.Equal(t, expected, string(b))
}

func TestMarshalJSONAllFields(t *testing.T) {
	td := createTestTraces()
	rs := &td.ResourceSpans[0]
	rs.SchemaURL = "https://opentelemetry.io/schemas/1.21.0"
	rs.Resource.DroppedAttributesCount = 1
	rs.ScopeSpans[0].SchemaURL = "scope-schema"
	span := &rs.ScopeSpans[0].Spans[0]
	span.TraceState = "k=v"
	span.Flags = 1
	span.DroppedAttributesCount = 2
	span.DroppedEventsCount = 3
	span.DroppedLinksCount = 4
	span.Status = Status{Message: "boom", Code: StatusCodeError}
	span.Attributes = attribute.Map{
		{Key: "b", Value: attribute.Bool(true)},
		{Key: "i", Value: attribute.Int(-7)},
		{Key: "d", Value: attribute.Double(3.5)},
		{Key: "l", Value: attribute.List(attribute.String("x"), attribute.Int(1))},
		{Key: "m", Value: attribute.MapOf(attribute.Map{{Key: "k", Value: attribute.String("v")}})},
		{Key: "e", Value: attribute.List()},
	}
	span.Events = []EventData{{EventInfo: EventInfo{TimeUnixNano: 1544712660500000000, Name: "ev", DroppedAttributesCount: 1}}}
	span.Links = []LinkData{{
		LinkInfo:   LinkInfo{TraceID: "5b8efff798038103d269b633813fc60d", SpanID: "eee19b7ec3c1b175", Flags: 1},
		Attributes: attribute.Map{{Key: "lk", Value: attribute.Int(1)}},
	}}

	b, err := MarshalJSON(td.Collection())
	require.NoError(t, err)

	expected := `{"resourceSpans":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"my.service"}}],"droppedAttributesCount":1},` +
		`"scopeSpans":[{"scope":{"name":"my.library","version":"1.0.0","attributes":[{"key":"my.scope.attribute","value":{"stringValue":"some scope attribute"}}]},` +
		`"spans":[{"traceId":"5b8efff798038103d269b633813fc60c","spanId":"eee19b7ec3c1b174","traceState":"k=v","parentSpanId":"eee19b7ec3c1b173","flags":1,` +
		`"name":"server-span","kind":2,"startTimeUnixNano":"1544712660000000000","endTimeUnixNano":"1544712661000000000",` +
		`"attributes":[{"key":"b","value":{"boolValue":true}},{"key":"i","value":{"intValue":"-7"}},{"key":"d","value":{"doubleValue":3.5}},` +
		`{"key":"l","value":{"arrayValue":{"values":[{"stringValue":"x"},{"intValue":"1"}]}}},` +
		`{"key":"m","value":{"kvlistValue":{"values":[{"key":"k","value":{"stringValue":"v"}}]}}},` +
		`{"key":"e","value":{"arrayValue":{}}}],"droppedAttributesCount":2,` +
		`"events":[{"timeUnixNano":"1544712660500000000","name":"ev","droppedAttributesCount":1}],"droppedEventsCount":3,` +
		`"links":[{"traceId":"5b8efff798038103d269b633813fc60d","spanId":"eee19b7ec3c1b175","attributes":[{"key":"lk","value":{"intValue":"1"}}],"flags":1}],` +
		`"droppedLinksCount":4,"status":{"message":"boom","code":2}}],"schemaUrl":"scope-schema"}],` +
		`"schemaUrl":"https://opentelemetry.io/schemas/1.21.0"}]}`
	assert.Equal(t, expected, string(b))
}

func TestMarshalJSONEmpty(t *testing.T) {
	b, err := MarshalJSON((&TracesData{}).Collection())
	require.NoError(t, err)
	assert.Equal(t, `{"resourceSpans":[]}`, string(b))
}

func TestMarshalProto(t *testing.T) {
	td := createTestTraces()
	td.ResourceSpans[0].ScopeSpans[0].Spans[0].Status = Status{Message: "boom", Code: StatusCodeError}

	b, err := MarshalProto(td.Collection())
	require.NoError(t, err)

	unmarshaler := &ptrace.ProtoUnmarshaler{}
	traces, err := unmarshaler.UnmarshalTraces(b)
	require.NoError(t, err)
	require.Equal(t, 1, traces.SpanCount())

	rs := traces.ResourceSpans().At(0)
	name, ok := rs.Resource().Attributes().Get("service.name")
	require.True(t, ok)
	assert.Equal(t, "my.service", name.Str())

	ss := rs.ScopeSpans().At(0)
	assert.Equal(t, "my.library", ss.Scope().Name())
	assert.Equal(t, "1.0.0", ss.Scope().Version())

	span := ss.Spans().At(0)
	assert.Equal(t, "5b8efff798038103d269b633813fc60c", EncodeTraceID(span.TraceID()))
	assert.Equal(t, "eee19b7ec3c1b174", EncodeSpanID(span.SpanID()))
	assert.Equal(t, "eee19b7ec3c1b173", EncodeSpanID(span.ParentSpanID()))
	assert.Equal(t, ptrace.SpanKindServer, span.Kind())
	assert.Equal(t, uint64(1544712660000000000), uint64(span.StartTimestamp()))
	assert.Equal(t, ptrace.StatusCodeError, span.Status().Code())
	assert.Equal(t, "boom", span.Status().Message())
}

func TestMarshalProtoRejectsBadIDs(t *testing.T) {
	testCases := []struct {
		name    string
		traceID string
		spanID  string
	}{
		{"odd length", "5b8efff798038103d269b633813fc60", "eee19b7ec3c1b174"},
		{"non hex", "zz8efff798038103d269b633813fc60c", "eee19b7ec3c1b174"},
		{"short trace id", "abc123", "eee19b7ec3c1b174"},
		{"long span id", "5b8efff798038103d269b633813fc60c", "eee19b7ec3c1b17400"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			td := createTestTraces()
			span := &td.ResourceSpans[0].ScopeSpans[0].Spans[0]
			span.TraceID = tc.traceID
			span.SpanID = tc.spanID

			_, err := MarshalProto(td.Collection())
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestMaterializeIsDeepCopy(t *testing.T) {
	td := createTestTraces()

	copied, err := Materialize(td.Collection())
	require.NoError(t, err)
	assert.Equal(t, td, copied)

	copied.ResourceSpans[0].Resource.Attributes[0].Value = attribute.String("changed")
	v, _ := td.ResourceSpans[0].Resource.Attributes.Get("service.name")
	assert.Equal(t, "my.service", v.Str())

	assert.Equal(t, td, td.Clone())
	assert.Equal(t, 1, td.SpanCount())
}

func TestOnceInvalidatesSecondIteration(t *testing.T) {
	once := NewOnce(SeqOf([]int{1, 2, 3}))

	var got []int
	for v, err := range once.Seq() {
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.True(t, once.Consumed())

	for _, err := range once.Seq() {
		assert.ErrorIs(t, err, ErrInvalidated)
	}

	fresh := NewOnce(SeqOf([]int{1}))
	fresh.Invalidate()
	for _, err := range fresh.Seq() {
		assert.ErrorIs(t, err, ErrInvalidated)
	}
}

func TestEnumNames(t *testing.T) {
	kind, err := SpanKindFromName("Server")
	require.NoError(t, err)
	assert.Equal(t, SpanKindServer, kind)

	kind, err = SpanKindFromName("SPAN_KIND_CONSUMER")
	require.NoError(t, err)
	assert.Equal(t, SpanKindConsumer, kind)

	code, err := StatusCodeFromName("error")
	require.NoError(t, err)
	assert.Equal(t, StatusCodeError, code)

	_, err = SpanKindFromName("sideways")
	assert.ErrorIs(t, err, ErrMalformed)
}
