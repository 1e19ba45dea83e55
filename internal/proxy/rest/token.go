package rest

import (
	"encoding/binary"

	"github.com/deepaksharma/otel-trace-access/internal/proxy"
)

// indexWidth is the number of bytes holding the selector index at the start
// of a token.
const indexWidth = 4

// EncodeToken packs the index of the selector being walked together with the
// upstream continuation token for that selector, if any.
func EncodeToken(idx int, upstream []byte) proxy.PageToken {
	tok := make(proxy.PageToken, indexWidth, indexWidth+len(upstream))
	binary.LittleEndian.PutUint32(tok, uint32(idx))
	return append(tok, upstream...)
}

// DecodeToken splits a token produced by EncodeToken. Tokens no longer than
// the index carry no upstream token; shorter ones are zero padded.
func DecodeToken(tok proxy.PageToken) (int, []byte) {
	if len(tok) <= indexWidth {
		var buf [indexWidth]byte
		copy(buf[:], tok)
		return int(binary.LittleEndian.Uint32(buf[:])), nil
	}
	return int(binary.LittleEndian.Uint32(tok[:indexWidth])), tok[indexWidth:]
}
