package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "engine-test", Output: &buf})

	ctx := logg.WithOrderID(context.Background(), "ord-123")
	ctx = logg.WithUserID(ctx, "usr-456")
	logg.Info(ctx, "transition applied")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["order_id"] != "ord-123" {
		t.Fatalf("missing order_id field: %v", entry)
	}
	if entry["user_id"] != "usr-456" {
		t.Fatalf("missing user_id field: %v", entry)
	}
	if entry["service"] != "engine-test" {
		t.Fatalf("missing service field: %v", entry)
	}
}

func TestErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "engine-test", Output: &buf})

	logg.Error(context.Background(), "boom", errors.New("stock gone negative"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["stack"] == nil || entry["stack"] == "" {
		t.Fatal("expected stack trace on error logs")
	}
	if entry["error"] != "stock gone negative" {
		t.Fatalf("unexpected error field: %v", entry["error"])
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("WARN"); got != zerolog.WarnLevel {
		t.Fatalf("ParseLevel(WARN) = %v", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("ParseLevel(empty) = %v", got)
	}
	if got := ParseLevel("bogus"); got != zerolog.InfoLevel {
		t.Fatalf("ParseLevel(bogus) = %v", got)
	}
}
