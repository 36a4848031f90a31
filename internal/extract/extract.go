// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrBinaryContent indicates a non-PDF upload that is not valid UTF-8 text.
var ErrBinaryContent = errors.New("content is not valid UTF-8 text")

// pdfMagic is the header every PDF starts with.
const pdfMagic = "%PDF-"

// Text extracts plain text from uploaded bytes. PDFs are detected by
// extension or header; anything else must already be UTF-8 text.
func Text(data []byte, filename string) (string, error) {
	if isPDF(data, filename) {
		return fromPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", filename, ErrBinaryContent)
	}
	return string(data), nil
}

func isPDF(data []byte, filename string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte(pdfMagic))
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return b.String(), nil
}
