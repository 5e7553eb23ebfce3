package ingest

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode"

	"creator-coach/config"
	"creator-coach/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
)

// Format is the extraction path chosen for an upload.
type Format string

const (
	FormatUnsupported Format = ""
	FormatPDF         Format = "pdf"
	FormatText        Format = "text"
)

// Extraction is the outcome of Extract. Unsupported input and unreadable input are
// both reported here rather than as errors: Format tells them apart.
type Extraction struct {
	Format Format
	Text   string
}

// Supported reports whether a handler exists for the input.
func (e Extraction) Supported() bool {
	return e.Format != FormatUnsupported
}

// DetectFormat picks the extraction path from the declared media type and file name.
// When the declared type is missing or generic, the content is sniffed.
func DetectFormat(data []byte, mediaType, fileName string) Format {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case mt == "application/pdf" || ext == ".pdf":
		return FormatPDF
	case strings.HasPrefix(mt, "text/") || ext == ".txt" || ext == ".md":
		return FormatText
	}

	if mt == "" || mt == "application/octet-stream" {
		sniffed := mimetype.Detect(data)
		switch {
		case sniffed.Is("application/pdf"):
			return FormatPDF
		case strings.HasPrefix(sniffed.String(), "text/plain"):
			return FormatText
		}
	}
	return FormatUnsupported
}

// Extract turns an upload into plain text. It never fails: a PDF that cannot be
// parsed yields empty text.
func Extract(data []byte, mediaType, fileName string) Extraction {
	format := DetectFormat(data, mediaType, fileName)
	switch format {
	case FormatPDF:
		return Extraction{Format: format, Text: safeExtractPDF(data, fileName)}
	case FormatText:
		return Extraction{Format: format, Text: sanitizeUTF8Printable(strings.ToValidUTF8(string(data), ""))}
	}
	return Extraction{Format: FormatUnsupported}
}

func safeExtractPDF(data []byte, fileName string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Module(config.ModuleIngest).WithFields(map[string]interface{}{
				"file":  fileName,
				"panic": r,
			}).Warn("pdf extraction aborted")
			text = ""
		}
	}()
	return ExtractPDFText(data)
}

// sanitizeUTF8Printable removes BOM and non-printable runes, keeping common whitespace.
func sanitizeUTF8Printable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' || r == unicode.ReplacementChar {
			continue
		}
		if r != '\n' && r != '\t' && r != '\r' && !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
