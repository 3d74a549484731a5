// Package share encodes playground state into compact URL parameters.
//
// Text is deflate-compressed and encoded as unpadded base64url.
package share

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/flate"

	"pkt.systems/langpad/schema"
)

// Query parameter names carried by share links.
const (
	ParamGrammar = "grammar"
	ParamContent = "content"
)

// maxDecodedSize bounds decompressed share payloads.
const maxDecodedSize = 4 << 20

// Encode compresses text into a URL-safe string.
func Encode(text string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(w, text); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reverses Encode. Empty input decodes to empty text.
func Decode(encoded string) (string, error) {
	encoded = strings.TrimRight(strings.TrimSpace(encoded), "=")
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrInvalidShareData, err)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrInvalidShareData, err)
	}
	if len(data) > maxDecodedSize {
		return "", fmt.Errorf("%w: payload too large", schema.ErrInvalidShareData)
	}
	return string(data), nil
}

// Link builds a share link for snapshot under baseURL.
func Link(baseURL string, snapshot schema.StateSnapshot) (string, error) {
	grammar, err := Encode(snapshot.Grammar)
	if err != nil {
		return "", err
	}
	content, err := Encode(snapshot.Content)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(ParamGrammar, grammar)
	q.Set(ParamContent, content)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseLink extracts the snapshot carried by a share link.
func ParseLink(link string) (schema.StateSnapshot, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return schema.StateSnapshot{}, fmt.Errorf("%w: %v", schema.ErrInvalidShareData, err)
	}
	q := u.Query()
	grammar, err := Decode(q.Get(ParamGrammar))
	if err != nil {
		return schema.StateSnapshot{}, err
	}
	content, err := Decode(q.Get(ParamContent))
	if err != nil {
		return schema.StateSnapshot{}, err
	}
	return schema.StateSnapshot{Grammar: grammar, Content: content}, nil
}
