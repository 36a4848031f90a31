package extract

import (
	"errors"
	"testing"
)

func TestTextPlain(t *testing.T) {
	got, err := Text([]byte("Retention period is seven years.\n"), "policy.txt")
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != "Retention period is seven years.\n" {
		t.Errorf("Text() = %q", got)
	}
}

func TestTextMarkdownPassesThrough(t *testing.T) {
	in := "# Policy\n\nVendors must be reviewed."
	got, err := Text([]byte(in), "policy.md")
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if got != in {
		t.Errorf("Text() = %q, want unchanged input", got)
	}
}

func TestTextRejectsBinary(t *testing.T) {
	_, err := Text([]byte{0xff, 0xfe, 0x00, 0x01}, "blob.bin")
	if !errors.Is(err, ErrBinaryContent) {
		t.Errorf("Text() error = %v, want ErrBinaryContent", err)
	}
}

func TestTextRejectsCorruptPDF(t *testing.T) {
	// Header says PDF, body is garbage: must surface a parse error, not
	// fall through to the plain-text path.
	if _, err := Text([]byte("%PDF-1.7 not actually a pdf"), "doc.pdf"); err == nil {
		t.Error("Text() = nil, want PDF parse error")
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     bool
	}{
		{name: "pdf extension", data: []byte("x"), filename: "doc.pdf", want: true},
		{name: "uppercase extension", data: []byte("x"), filename: "DOC.PDF", want: true},
		{name: "pdf header without extension", data: []byte("%PDF-1.4 ..."), filename: "upload", want: true},
		{name: "plain text", data: []byte("hello"), filename: "notes.txt", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPDF(tt.data, tt.filename); got != tt.want {
				t.Errorf("isPDF(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}
