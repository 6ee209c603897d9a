package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Warn, Out: &buf})

	l.Info("hidden", nil)
	l.Warn("shown", map[string]any{"k": "v"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLogger_JSONWithFieldsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Debug, Format: FormatJSON, App: "dental-clinic", Out: &buf}).
		With(map[string]any{"request_id": "r-1"})

	l.Error("boom", map[string]any{"err": errors.New("db down")})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["app"] != "dental-clinic" || entry["request_id"] != "r-1" {
		t.Fatalf("missing base fields: %#v", entry)
	}
	if entry["err"] != "db down" {
		t.Fatalf("expected error string, got %#v", entry["err"])
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fb := Nop()
	if got := FromContext(context.Background(), fb); got != fb {
		t.Fatalf("expected fallback logger")
	}

	var buf bytes.Buffer
	l := New(Options{Out: &buf})
	ctx := WithContext(context.Background(), l)
	FromContext(ctx, fb).Info("hello", nil)
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected context logger to be used")
	}
}
