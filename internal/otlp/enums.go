package otlp

import (
	"strings"
)

// Span kinds as numbered by OTLP.
const (
	SpanKindUnspecified int32 = iota
	SpanKindInternal
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// Status codes as numbered by OTLP.
const (
	StatusCodeUnset int32 = iota
	StatusCodeOk
	StatusCodeError
)

var spanKinds = map[string]int32{
	"SPAN_KIND_UNSPECIFIED": SpanKindUnspecified,
	"SPAN_KIND_INTERNAL":    SpanKindInternal,
	"SPAN_KIND_SERVER":      SpanKindServer,
	"SPAN_KIND_CLIENT":      SpanKindClient,
	"SPAN_KIND_PRODUCER":    SpanKindProducer,
	"SPAN_KIND_CONSUMER":    SpanKindConsumer,
}

var statusCodes = map[string]int32{
	"STATUS_CODE_UNSET": StatusCodeUnset,
	"STATUS_CODE_OK":    StatusCodeOk,
	"STATUS_CODE_ERROR": StatusCodeError,
}

// SpanKindFromName maps names like "Server", "SPAN_KIND_SERVER" or "server"
// to the numeric span kind.
func SpanKindFromName(name string) (int32, error) {
	return lookupEnum(spanKinds, "SPAN_KIND_", name, "span kind")
}

// StatusCodeFromName maps names like "Error" or "STATUS_CODE_ERROR" to the
// numeric status code.
func StatusCodeFromName(name string) (int32, error) {
	return lookupEnum(statusCodes, "STATUS_CODE_", name, "status code")
}

func lookupEnum(values map[string]int32, prefix, name, what string) (int32, error) {
	key := strings.ToUpper(name)
	if !strings.HasPrefix(key, prefix) {
		key = prefix + key
	}
	v, ok := values[key]
	if !ok {
		return 0, Malformedf("unknown %s %q", what, name)
	}
	return v, nil
}
