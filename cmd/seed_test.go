package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestSupportedSeedFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "policy.pdf", want: true},
		{name: "POLICY.PDF", want: true},
		{name: "notes.txt", want: true},
		{name: "readme.md", want: true},
		{name: "image.png", want: false},
		{name: "archive.zip", want: false},
		{name: "noextension", want: false},
	}
	for _, tt := range tests {
		if got := supportedSeedFile(tt.name); got != tt.want {
			t.Errorf("supportedSeedFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "arca") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	orig := flagLogLevel
	defer func() { flagLogLevel = orig }()

	flagLogLevel = "verbose"
	if _, err := newLogger(); err == nil {
		t.Error("newLogger() = nil error for unknown level")
	}

	flagLogLevel = "debug"
	if _, err := newLogger(); err != nil {
		t.Errorf("newLogger() error = %v", err)
	}
}
