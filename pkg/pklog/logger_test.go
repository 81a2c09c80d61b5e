package pklog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriterLoggerText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "text")

	log.Debugf("hidden %d", 1)
	log.Infof("loading plugin %s", "default")
	log.Warnf("skipped %s", "broken")

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("debug line should be filtered, got %q", got)
	}
	want := "[INFO] loading plugin default\n[WARN] skipped broken\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriterLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "json")
	log.Errorf("boom: %v", "bad")

	var e struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &e); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if e.Level != "error" || e.Message != "boom: bad" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	b.Warnf("Error loading plugin %s", "broken")

	if !b.Contains("[WARN] Error loading plugin broken") {
		t.Errorf("expected warning line, got %q", b.String())
	}
	b.Reset()
	if len(b.Lines()) != 0 {
		t.Errorf("expected empty buffer after Reset")
	}
}
