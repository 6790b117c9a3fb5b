package snapshot

import (
	"encoding/json"
	"testing"
)

func TestUnwrap_EmptyShapes(t *testing.T) {
	inputs := []string{
		``,
		`null`,
		`""`,
		`{"result": ""}`,
		`{"content": []}`,
		`{}`,
	}

	for _, in := range inputs {
		text, kind := Unwrap(json.RawMessage(in))
		if text != "" || kind != EnvelopeEmpty {
			t.Errorf("Unwrap(%q) = (%q, %v), want empty", in, text, kind)
		}
	}
}

func TestUnwrap_PlainString(t *testing.T) {
	text, kind := Unwrap(json.RawMessage(`"- names: Kitchen Light\n  domain: light"`))
	if kind != EnvelopePlainText {
		t.Fatalf("kind = %v, want EnvelopePlainText", kind)
	}
	if text != "- names: Kitchen Light\n  domain: light" {
		t.Errorf("text = %q", text)
	}
}

func TestUnwrap_ContentEnvelope(t *testing.T) {
	raw := `{"content":[{"type":"text","text":"- names: Kitchen Light\n  domain: light\n  state: 'on'"}]}`

	text, kind := Unwrap(json.RawMessage(raw))
	if kind != EnvelopeContent {
		t.Fatalf("kind = %v, want EnvelopeContent", kind)
	}
	if got := Parse(text); len(got) != 1 || got[0].ID != "Kitchen Light" {
		t.Errorf("unwrapped text did not parse: %+v", got)
	}
}

func TestUnwrap_ContentEnvelopeJoinsTextItems(t *testing.T) {
	raw := `{"content":[
		{"type":"text","text":"- names: A\n  domain: light\n  state: 'on'"},
		{"type":"image","text":"ignored"},
		{"type":"text","text":"- names: B\n  domain: lock\n  state: locked"}
	]}`

	text, _ := Unwrap(json.RawMessage(raw))
	if got := Parse(text); len(got) != 2 {
		t.Errorf("parsed %d entities from joined content, want 2", len(got))
	}
}

func TestUnwrap_ResultKey(t *testing.T) {
	raw := `{"result": "- names: Kitchen Light\n  domain: light\n  state: 'on'"}`

	text, kind := Unwrap(json.RawMessage(raw))
	if kind != EnvelopeResult {
		t.Fatalf("kind = %v, want EnvelopeResult", kind)
	}
	if got := Parse(text); len(got) != 1 {
		t.Errorf("unwrapped text did not parse: %q", text)
	}
}

func TestUnwrap_JSONNestedInString(t *testing.T) {
	inner, _ := json.Marshal(map[string]string{
		"result": "- names: Kitchen Light\n  domain: light\n  state: 'on'",
	})
	outer, _ := json.Marshal(string(inner))

	text, kind := Unwrap(outer)
	if kind != EnvelopeResult {
		t.Fatalf("kind = %v, want EnvelopeResult", kind)
	}
	if got := Parse(text); len(got) != 1 {
		t.Errorf("nested payload did not parse: %q", text)
	}
}

func TestUnwrap_NonJSONBytes(t *testing.T) {
	text, kind := Unwrap(json.RawMessage("- names: Kitchen Light\n  domain: light\n  state: 'on'"))
	if kind != EnvelopePlainText {
		t.Fatalf("kind = %v, want EnvelopePlainText", kind)
	}
	if got := Parse(text); len(got) != 1 {
		t.Errorf("raw text did not parse: %q", text)
	}
}

func TestUnwrap_RecursionBounded(t *testing.T) {
	// A payload nested deeper than the unwrap bound must come back empty
	// rather than recurse forever.
	payload := `"- names: X"`
	for i := 0; i < 10; i++ {
		b, _ := json.Marshal(payload)
		payload = string(b)
	}

	text, kind := Unwrap(json.RawMessage(payload))
	if kind != EnvelopeEmpty || text != "" {
		t.Errorf("deeply nested payload = (%q, %v), want empty", text, kind)
	}
}
