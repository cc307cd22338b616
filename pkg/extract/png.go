package extract

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Chunk is one PNG chunk. Data is clamped to the buffer when the declared
// length runs past its end.
type Chunk struct {
	Type   string
	Offset int
	Length uint32
	Data   []byte
}

// TextChunk is a decoded tEXt keyword/text pair.
type TextChunk struct {
	Keyword string
	Text    string
}

// HasSignature reports whether data starts like a PNG. Only the first four
// bytes are required to match.
func HasSignature(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], pngSignature[:4])
}

// Chunks walks the chunk list that follows the 8-byte signature. CRCs are
// not validated and a truncated chunk ends the walk.
func Chunks(data []byte) []Chunk {
	var chunks []Chunk
	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := binary.BigEndian.Uint32(data[offset : offset+4])
		typ := string(data[offset+4 : offset+8])
		start := offset + 8

		end := len(data)
		truncated := uint64(length) > uint64(len(data)-start)
		if !truncated {
			end = start + int(length)
		}
		chunks = append(chunks, Chunk{Type: typ, Offset: offset, Length: length, Data: data[start:end]})
		if truncated {
			break
		}
		offset = end + 4 // CRC
	}
	return chunks
}

// ScanTextChunks returns every tEXt chunk in file order.
func ScanTextChunks(data []byte) []TextChunk {
	var out []TextChunk
	for _, c := range Chunks(data) {
		if c.Type != "tEXt" {
			continue
		}
		out = append(out, parseText(c.Data))
	}
	return out
}

// parseText splits at the first NUL. A chunk without one is all keyword.
func parseText(body []byte) TextChunk {
	keyEnd := bytes.IndexByte(body, 0)
	var text []byte
	if keyEnd < 0 {
		keyEnd = len(body)
	} else {
		text = body[keyEnd+1:]
	}
	return TextChunk{Keyword: latin1(body[:keyEnd]), Text: decodeUTF8(text)}
}

// PNG keywords are Latin-1.
func latin1(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// decodeUTF8 mirrors a lenient text decoder: a leading BOM is dropped and
// each invalid byte becomes U+FFFD.
func decodeUTF8(b []byte) string {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
