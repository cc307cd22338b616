package middleware

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aretw0/graphlens/pkg/ports"
	"github.com/klauspost/compress/zstd"
)

// compressedPrefix marks content written by the compression middleware.
const compressedPrefix = "zstd:"

// NewCompressionMiddleware stores content zstd-compressed and base64
// encoded. Content without the marker is returned unchanged, so existing
// plain entries stay readable after compression is enabled.
func NewCompressionMiddleware(level zstd.EncoderLevel) (Middleware, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	// EncodeAll and DecodeAll are safe for concurrent use.
	compress := func(content string) (string, error) {
		packed := encoder.EncodeAll([]byte(content), nil)
		return compressedPrefix + base64.StdEncoding.EncodeToString(packed), nil
	}
	decompress := func(stored string) (string, error) {
		encoded, ok := strings.CutPrefix(stored, compressedPrefix)
		if !ok {
			return stored, nil
		}
		packed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("failed to decode compressed content: %w", err)
		}
		plain, err := decoder.DecodeAll(packed, nil)
		if err != nil {
			return "", fmt.Errorf("decompressing: %w", err)
		}
		return string(plain), nil
	}

	return func(next ports.HistoryStore) ports.HistoryStore {
		return &contentStore{next: next, encode: compress, decode: decompress}
	}, nil
}
