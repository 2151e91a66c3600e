package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output %q is not one JSON line: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["component"] != "test" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(nil, "loud", "json"); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := New(nil, "info", "xml"); err == nil {
		t.Error("bad format accepted")
	}
}
