package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return record
}

func TestNew_DefaultAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Store: "sqlite"})

	log.Component("reconciler").Info("run finished", "grouping", "G1")

	record := decodeLine(t, &buf)
	want := map[string]string{
		SERVICE:    DefaultService,
		STORE:      "sqlite",
		COMPONENT:  "reconciler",
		"grouping": "G1",
		"msg":      "run finished",
	}
	for key, value := range want {
		if record[key] != value {
			t.Errorf("%s = %v, want %q", key, record[key], value)
		}
	}
}

func TestNew_OmitsEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf, Service: "scheduling"}).Info("ready")

	record := decodeLine(t, &buf)
	if record[SERVICE] != "scheduling" {
		t.Errorf("service = %v", record[SERVICE])
	}
	if _, ok := record[STORE]; ok {
		t.Errorf("store attribute should be omitted, got %v", record[STORE])
	}
}

func TestNew_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Level: "warning"})

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	log.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn record was dropped")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
