package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
	"github.com/deepaksharma/otel-trace-access/internal/otlp/otlptest"
	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

const bareDocuments = `[{"traceId":"5b8efff798038103d269b633813fc60c","spanId":"eee19b7ec3c1b174","name":"op","kind":"Server",` +
	`"startTime":"2024-10-15T15:46:34.857023153Z","endTime":"2024-10-15T15:46:34.957023153Z",` +
	`"status":{"code":"Ok"},"resource":{"attributes":{"service.name":"svc"}},"instrumentationScope":{"name":"lib"}}]`

func TestFormats(t *testing.T) {
	assert.Equal(t, []Format{FormatOTLPBolt, FormatOTLPJSON, FormatOTLPProto, FormatSS4O, FormatSS4OBare}, Formats())
	for _, f := range Formats() {
		assert.NotEmpty(t, f.Description())
	}

	f, err := ParseFormat("otlp-proto")
	require.NoError(t, err)
	assert.Equal(t, FormatOTLPProto, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.False(t, FormatSS4O.Writable())
	assert.True(t, FormatOTLPBolt.Writable())
}

func TestWriteThenLoad(t *testing.T) {
	for _, f := range []Format{FormatOTLPJSON, FormatOTLPProto, FormatOTLPBolt} {
		t.Run(string(f), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spans."+string(f))
			expected := otlptest.NewTraces()

			require.NoError(t, Write(path, f, expected.Collection()))

			actual, err := Load(path, f)
			require.NoError(t, err)
			if diff := cmp.Diff(expected, actual); diff != "" {
				t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBoltStoreAppendsBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.db")

	store, err := OpenBoltStore(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Append(otlptest.NewTraces().Collection()))

	second := &otlp.TracesData{ResourceSpans: otlptest.NewTraces().ResourceSpans[1:]}
	require.NoError(t, store.Append(second.Collection()))

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, store.Close())

	td, err := Load(path, FormatOTLPBolt)
	require.NoError(t, err)
	require.Len(t, td.ResourceSpans, 3)
	assert.Equal(t, 5, td.SpanCount())
	assert.True(t, td.ResourceSpans[1].Resource.Attributes.Equal(td.ResourceSpans[2].Resource.Attributes))
}

func TestEmptyBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	store, err := OpenBoltStore(path, false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	td, err := Load(path, FormatOTLPBolt)
	require.NoError(t, err)
	assert.Empty(t, td.ResourceSpans)
}

func TestReadSearchDocuments(t *testing.T) {
	view, err := Read(strings.NewReader(bareDocuments), FormatSS4OBare)
	require.NoError(t, err)
	td, err := otlp.Materialize(view)
	require.NoError(t, err)
	require.Equal(t, 1, td.SpanCount())
	assert.Equal(t, "op", td.ResourceSpans[0].ScopeSpans[0].Spans[0].Name)

	envelope := `{"hits":{"hits":[{"_source":` + strings.Trim(bareDocuments, "[]") + `}]}}`
	view, err = Read(strings.NewReader(envelope), FormatSS4O)
	require.NoError(t, err)
	td, err = otlp.Materialize(view)
	require.NoError(t, err)
	assert.Equal(t, 1, td.SpanCount())

	_, err = Read(strings.NewReader(""), FormatOTLPBolt)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteRejectsReadOnlyFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := Write(path, FormatSS4OBare, otlptest.NewTraces().Collection())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), FormatOTLPJSON)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.db"), FormatOTLPBolt)
	assert.Error(t, err)
}

func TestReloaderReplacesProxyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	require.NoError(t, os.WriteFile(path, []byte(bareDocuments), 0o600))

	static := proxy.NewStaticProxy(nil, nil)
	r, err := NewReloader("@every 1h", path, FormatSS4OBare, static, nil)
	require.NoError(t, err)

	require.NoError(t, r.Reload())
	var spans int
	for page, err := range proxy.QueryAll(context.Background(), static, proxy.Query{}) {
		require.NoError(t, err)
		td, err := otlp.Materialize(page)
		require.NoError(t, err)
		spans += td.SpanCount()
	}
	assert.Equal(t, 1, spans)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	assert.Error(t, r.Reload())

	succeeded, failed := r.Reloads()
	assert.Equal(t, int64(1), succeeded)
	assert.Equal(t, int64(1), failed)

	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Stop(ctx))
}

func TestReloaderRejectsBadSchedule(t *testing.T) {
	_, err := NewReloader("every tuesday", "spans.json", FormatOTLPJSON, proxy.NewStaticProxy(nil, nil), nil)
	assert.Error(t, err)
}
