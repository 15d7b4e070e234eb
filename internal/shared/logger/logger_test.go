package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSONEntry(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerWithWriters("map-service", LevelDebug, &out, &errOut)

	l.Info(Entry{Action: "route_recomputed", Message: "ok", Additional: map[string]any{"points": 3}})

	var got Entry
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v (raw=%q)", err, out.String())
	}
	if got.Level != "INFO" || got.Service != "map-service" || got.Action != "route_recomputed" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("timestamp not filled")
	}
	if _, ok := got.Additional["caller"]; !ok {
		t.Error("caller not recorded")
	}
	if errOut.Len() != 0 {
		t.Errorf("info must not go to error writer, got %q", errOut.String())
	}
}

func TestLoggerRoutesErrorsAndFiltersLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerWithWriters("map-service", LevelInfo, &out, &errOut)

	l.Debug(Entry{Action: "hidden"})
	l.Error(Entry{Action: "save_failed", Error: &ErrObj{Msg: "boom"}})

	if out.Len() != 0 {
		t.Errorf("debug below min level was written: %q", out.String())
	}
	if !strings.Contains(errOut.String(), `"save_failed"`) {
		t.Errorf("error entry missing from error writer: %q", errOut.String())
	}
}

func TestWithContextFillsCorrelationFields(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerWithWriters("map-service", LevelDebug, &out, &out)

	l.WithContext("req-1", "user-9").Warn(Entry{Action: "notice"})

	var got Entry
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RequestID != "req-1" || got.UserID != "user-9" {
		t.Errorf("correlation ids not propagated: %+v", got)
	}
	if _, leaked := got.Additional["user_id"]; leaked {
		t.Error("reserved key leaked into additional")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
