package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"iara/internal/providers"
	"iara/internal/util"
)

var (
	ErrTooLarge    = errors.New("file exceeds extraction size limit")
	ErrUnsupported = errors.New("unsupported file kind")
)

const DefaultMaxBytes = 10 << 20

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindDoc   Kind = "doc"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// KindFor maps a declared content type, or failing that the file extension, to a Kind.
// It returns "" for anything outside the four supported kinds.
func KindFor(contentType, filename string) Kind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return KindPDF
	case ct == "application/msword", ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDoc
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	case ct == "text/plain":
		return KindText
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".doc", ".docx":
		return KindDoc
	case ".jpg", ".jpeg", ".png", ".gif":
		return KindImage
	case ".txt":
		return KindText
	}
	return ""
}

type Result struct {
	Filename    string `json:"filename"`
	Kind        Kind   `json:"kind"`
	Text        string `json:"text"`
	Placeholder bool   `json:"placeholder"`
	Bytes       int    `json:"bytes"`
	Checksum    string `json:"sha256"`
}

type Extractor struct {
	MaxBytes int64
}

func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{MaxBytes: maxBytes}
}

// Extract returns the text of one file. PDFs go through the PDF reader; every other
// kind, and any PDF that yields no text, gets a descriptive placeholder instead.
func (e *Extractor) Extract(filename, contentType string, data []byte) (Result, error) {
	if int64(len(data)) > e.MaxBytes {
		return Result{}, fmt.Errorf("%s is %d bytes: %w", filename, len(data), ErrTooLarge)
	}
	kind := KindFor(contentType, filename)
	if kind == "" {
		return Result{}, fmt.Errorf("%s (%s): %w", filename, contentType, ErrUnsupported)
	}
	out := Result{Filename: filename, Kind: kind, Bytes: len(data), Checksum: util.SHA256Hex(data)}

	switch kind {
	case KindPDF:
		text, err := pdfText(data)
		if err != nil {
			log.Printf("extract pdf filename=%s err=%v", filename, err)
			out.Text, out.Placeholder = Placeholder(kind, filename, len(data)), true
			return out, nil
		}
		out.Text = text
	case KindText:
		out.Text = util.SanitizeText(strings.ToValidUTF8(string(data), ""))
	default:
		out.Text, out.Placeholder = Placeholder(kind, filename, len(data)), true
	}
	return out, nil
}

// Placeholder is the fixed description used when no text can be produced.
func Placeholder(kind Kind, filename string, size int) string {
	switch kind {
	case KindPDF:
		return fmt.Sprintf("%s %s (%d bytes): text could not be extracted automatically; review the original document.", providers.MarkerPDF, filename, size)
	case KindDoc:
		return fmt.Sprintf("%s %s (%d bytes): Word documents are not parsed; content must be reviewed manually.", providers.MarkerDOC, filename, size)
	case KindImage:
		return fmt.Sprintf("%s %s (%d bytes): image content requires manual review.", providers.MarkerImage, filename, size)
	default:
		return fmt.Sprintf("[FILE] %s (%d bytes)", filename, size)
	}
}

func pdfText(data []byte) (text string, err error) {
	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var b strings.Builder
	for page := 1; page <= doc.NumPage(); page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	text = util.SanitizeText(b.String())
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}
