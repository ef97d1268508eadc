package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type row struct {
	ID      string          `json:"id"`
	Order   int             `json:"order"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, row{ID: "a", Order: 2}, "", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"id":"a","order":2}` {
		t.Fatalf("unexpected json: %s", got)
	}
}

func TestWrite_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	v := []row{{ID: "a", Order: 0, Payload: json.RawMessage(`{"label":"Home"}`)}}
	if err := Write(&buf, v, "yaml", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"- id: a", "order: 0", "label: Home"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected error")
	}
}
