package otlp

import (
	"encoding/hex"

	"go.opentelemetry.io/collector/pdata/pcommon"
)

// DecodeTraceID converts a hex trace id into its 16 raw bytes.
// An empty string decodes to the all-zero id.
func DecodeTraceID(s string) (pcommon.TraceID, error) {
	var id pcommon.TraceID
	if err := decodeID(id[:], s, "trace id"); err != nil {
		return pcommon.TraceID{}, err
	}
	return id, nil
}

// DecodeSpanID converts a hex span id into its 8 raw bytes.
// An empty string decodes to the all-zero id.
func DecodeSpanID(s string) (pcommon.SpanID, error) {
	var id pcommon.SpanID
	if err := decodeID(id[:], s, "span id"); err != nil {
		return pcommon.SpanID{}, err
	}
	return id, nil
}

func decodeID(dst []byte, s, what string) error {
	if s == "" {
		return nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Malformedf("invalid %s %q: %v", what, s, err)
	}
	if len(raw) != len(dst) {
		return Malformedf("invalid %s %q: want %d bytes, got %d", what, s, len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// EncodeTraceID renders a trace id as lower-case hex, or "" for the zero id.
func EncodeTraceID(id pcommon.TraceID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

// EncodeSpanID renders a span id as lower-case hex, or "" for the zero id.
func EncodeSpanID(id pcommon.SpanID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}
