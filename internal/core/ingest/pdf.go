package ingest

import (
	"bytes"
	"encoding/hex"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ExtractPDFText pulls best-effort text out of a PDF without interpreting it.
// It scans every content stream, inflates it when compressed, and collects the
// literal (...) and hex <...> strings the stream draws.
//
// Known limitation: layout is lost, and text drawn through custom font encodings
// or glyph maps comes out garbled or not at all.
func ExtractPDFText(data []byte) string {
	return extractPDFText(data, maxInflatedTotal)
}

// extractPDFText stops reading streams once budget bytes have been decoded.
func extractPDFText(data []byte, budget int64) string {
	var segments []string
	for _, m := range streamPattern.FindAllSubmatchIndex(data, -1) {
		if budget <= 0 {
			break
		}
		body := trimStreamPadding(data[m[2]:m[3]])
		decoded := decodeStream(body, min(budget, maxInflatedStream))
		budget -= int64(len(decoded))
		if len(decoded) == 0 {
			continue
		}
		parts := pdfStrings(decoded)
		if len(parts) == 0 {
			parts = []string{salvagePrintable(decoded)}
		}
		segments = appendSegments(segments, parts)
	}

	if len(segments) == 0 {
		segments = appendSegments(segments, pdfStrings(data))
	}
	return strings.Join(segments, "\n")
}

// Decoded bytes allowed per stream and per document.
const (
	maxInflatedStream int64 = 64 << 20
	maxInflatedTotal  int64 = 128 << 20
)

var (
	streamPattern = regexp.MustCompile(`(?s)stream(.*?)endstream`)
	hexPattern    = regexp.MustCompile(`<([0-9A-Fa-f\s]*)>`)
)

func appendSegments(dst, parts []string) []string {
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dst = append(dst, p)
		}
	}
	return dst
}

// trimStreamPadding drops the single EOL after "stream" and the single EOL before "endstream".
func trimStreamPadding(b []byte) []byte {
	switch {
	case bytes.HasPrefix(b, []byte("\r\n")):
		b = b[2:]
	case len(b) > 0 && (b[0] == '\n' || b[0] == '\r'):
		b = b[1:]
	}
	switch {
	case bytes.HasSuffix(b, []byte("\r\n")):
		b = b[:len(b)-2]
	case len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r'):
		b = b[:len(b)-1]
	}
	return b
}

type streamDecoder func(b []byte, limit int64) ([]byte, error)

var streamDecoders = []streamDecoder{inflateRaw, inflateZlib, passThrough}

// decodeStream returns the first non-empty result of raw deflate, zlib, then the
// bytes as they are, cut to at most limit bytes.
func decodeStream(body []byte, limit int64) []byte {
	for _, dec := range streamDecoders {
		out, err := dec(body, limit)
		if err == nil && len(out) > 0 {
			return out
		}
	}
	return nil
}

func inflateRaw(b []byte, limit int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, limit))
}

func inflateZlib(b []byte, limit int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, limit))
}

func passThrough(b []byte, limit int64) ([]byte, error) {
	if int64(len(b)) > limit {
		b = b[:limit]
	}
	return b, nil
}

type span struct {
	start, end int
	text       string
}

// pdfStrings returns literal and hex strings of content in the order they appear.
// Hex-looking runs inside a literal string belong to the literal.
func pdfStrings(content []byte) []string {
	spans := literalSpans(content)
	literals := len(spans)
	for _, m := range hexPattern.FindAllSubmatchIndex(content, -1) {
		inside := false
		for _, l := range spans[:literals] {
			if m[0] >= l.start && m[1] <= l.end {
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		if s, ok := decodeHex(content[m[2]:m[3]]); ok {
			spans = append(spans, span{m[0], m[1], s})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]string, 0, len(spans))
	for _, s := range spans {
		if s.text != "" {
			out = append(out, s.text)
		}
	}
	return out
}

// literalSpans returns the outermost balanced (...) strings of content. Unescaped
// parentheses nest; a backslash escapes the next byte. An opening parenthesis that
// is never closed does not hide the complete strings inside it.
func literalSpans(content []byte) []span {
	var (
		open  []int
		spans []span
	)
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\\':
			i++
		case '(':
			open = append(open, i)
		case ')':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			// strings nested in this one were recorded last; drop them
			for len(spans) > 0 && spans[len(spans)-1].start > start {
				spans = spans[:len(spans)-1]
			}
			spans = append(spans, span{start: start, end: i + 1})
		}
	}
	for k := range spans {
		spans[k].text = decodeLiteral(content[spans[k].start+1 : spans[k].end-1])
	}
	return spans
}

var literalEscapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
	'(': '(', ')': ')', '\\': '\\',
}

// decodeLiteral resolves backslash escapes of a PDF literal string. The resulting
// bytes are single-byte characters and are converted from Latin-1.
func decodeLiteral(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(raw) {
			break
		}
		c = raw[i]
		if r, ok := literalEscapes[c]; ok {
			out = append(out, r)
			continue
		}
		if isOctal(c) {
			v := 0
			n := 0
			for n < 3 && i < len(raw) && isOctal(raw[i]) {
				v = v*8 + int(raw[i]-'0')
				i++
				n++
			}
			i--
			out = append(out, byte(v&0xFF))
			continue
		}
		out = append(out, c)
	}
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(out)
	if err != nil {
		return string(out)
	}
	return string(text)
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

// decodeHex decodes a hex string body. Fragments shorter than 8 digits are noise.
func decodeHex(raw []byte) (string, bool) {
	digits := make([]byte, 0, len(raw))
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r', '\f':
			continue
		}
		digits = append(digits, c)
	}
	if len(digits) < 8 || len(digits)%2 != 0 {
		return "", false
	}
	b := make([]byte, len(digits)/2)
	if _, err := hex.Decode(b, digits); err != nil {
		return "", false
	}
	if bytes.HasPrefix(b, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if s, err := dec.Bytes(b); err == nil {
			return string(s), true
		}
	}
	if utf8.Valid(b) {
		return string(b), true
	}
	return strings.ToValidUTF8(string(b), ""), true
}

// salvagePrintable blanks out everything that is not printable ASCII or common whitespace.
func salvagePrintable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c == '\t' || c == '\n' || c == '\r' || (c >= 0x20 && c <= 0x7E) {
			out[i] = c
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}
