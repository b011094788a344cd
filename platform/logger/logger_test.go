package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestJSONOutsideDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.StageChanged("bkg_1", "NEW", "QUALIFIED", "anna")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "booking_stage_changed" || entry["to"] != "QUALIFIED" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	log.WithContext(ctx).Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-42"`)) {
		t.Fatalf("expected request id in %q", buf.String())
	}
}
