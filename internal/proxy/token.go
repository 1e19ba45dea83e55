package proxy

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// tokenSeparator joins the text form of several outstanding tokens.
const tokenSeparator = "."

// EncodeTokens renders tokens as URL-safe base64 joined by ".".
func EncodeTokens(tokens []PageToken) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, base64.RawURLEncoding.EncodeToString(t))
	}
	return strings.Join(parts, tokenSeparator)
}

// DecodeTokens splits and decodes the text form produced by EncodeTokens.
// Standard padded base64 is accepted as well.
func DecodeTokens(s string) ([]PageToken, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, tokenSeparator)
	out := make([]PageToken, 0, len(parts))
	for _, part := range parts {
		raw, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			if raw, err = base64.StdEncoding.DecodeString(part); err != nil {
				return nil, fmt.Errorf("%w: %q is not base64", ErrInvalidPageToken, part)
			}
		}
		out = append(out, PageToken(raw))
	}
	return out, nil
}
