package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		logFunc func(l Logger)
		want    []string
		notWant []string
	}{
		{
			name: "text format includes message and attrs",
			cfg:  Config{Level: slog.LevelInfo},
			logFunc: func(l Logger) {
				l.Info("server started", "addr", ":8080")
			},
			want: []string{"server started", "addr=:8080"},
		},
		{
			name: "json format",
			cfg:  Config{Level: slog.LevelInfo, JSON: true},
			logFunc: func(l Logger) {
				l.Info("indexed", "chunks", 4)
			},
			want: []string{`"msg":"indexed"`, `"chunks":4`},
		},
		{
			name: "debug suppressed at info level",
			cfg:  Config{Level: slog.LevelInfo},
			logFunc: func(l Logger) {
				l.Debug("verbose detail")
			},
			notWant: []string{"verbose detail"},
		},
		{
			name: "debug visible at debug level",
			cfg:  Config{Level: slog.LevelDebug},
			logFunc: func(l Logger) {
				l.Debug("verbose detail")
			},
			want: []string{"verbose detail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.cfg)
			tt.logFunc(logger)

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q, got: %s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output should not contain %q, got: %s", nw, out)
				}
			}
		})
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	// Must not panic and must swallow everything.
	logger.Info("discarded")
	logger.Error("also discarded")
}
