package snapshot

import (
	"encoding/json"
	"strings"
)

// EnvelopeKind identifies which wrapping shape Unwrap found around the
// snapshot text.
type EnvelopeKind int

const (
	// EnvelopeEmpty means no usable text was found (null, empty result).
	EnvelopeEmpty EnvelopeKind = iota

	// EnvelopePlainText means the payload was a bare JSON string.
	EnvelopePlainText

	// EnvelopeContent means the payload was a content envelope with text
	// items, the shape tool results normally arrive in.
	EnvelopeContent

	// EnvelopeResult means the payload carried the text under a "result"
	// key, possibly nested inside a string.
	EnvelopeResult
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeEmpty:
		return "empty"
	case EnvelopePlainText:
		return "plain_text"
	case EnvelopeContent:
		return "content"
	case EnvelopeResult:
		return "result"
	default:
		return "unknown"
	}
}

// maxUnwrapDepth bounds recursion through nested JSON-in-string payloads.
const maxUnwrapDepth = 4

// contentEnvelope is the tool-result wrapping shape.
type contentEnvelope struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Result *string `json:"result"`
}

// Unwrap extracts the snapshot text from whatever envelope raw arrived in.
// It is total: any input yields ("", EnvelopeEmpty) at worst. The returned
// kind is diagnostic only; callers hand the text to Parse either way.
func Unwrap(raw json.RawMessage) (string, EnvelopeKind) {
	return unwrap(raw, 0)
}

func unwrap(raw json.RawMessage, depth int) (string, EnvelopeKind) {
	if depth > maxUnwrapDepth {
		return "", EnvelopeEmpty
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", EnvelopeEmpty
	}

	// A bare JSON string, which may itself hold a nested JSON document.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return unwrapString(s, depth)
	}

	var env contentEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if len(env.Content) > 0 {
			var parts []string
			for _, item := range env.Content {
				if item.Type == "text" && item.Text != "" {
					parts = append(parts, item.Text)
				}
			}
			if text, _ := unwrapString(strings.Join(parts, "\n"), depth); text != "" {
				return text, EnvelopeContent
			}
			return "", EnvelopeEmpty
		}
		if env.Result != nil {
			if text, _ := unwrapString(*env.Result, depth); text != "" {
				return text, EnvelopeResult
			}
			return "", EnvelopeEmpty
		}
	}

	// Not JSON at all; treat the bytes as the text.
	if !looksLikeJSON(trimmed) {
		return trimmed, EnvelopePlainText
	}
	return "", EnvelopeEmpty
}

// unwrapString resolves a string payload that may contain a further JSON
// document rather than the snapshot text itself.
func unwrapString(s string, depth int) (string, EnvelopeKind) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", EnvelopeEmpty
	}
	if looksLikeJSON(trimmed) {
		// A string whose whole content is JSON is a nested envelope, not
		// snapshot text; if it cannot be resolved there is nothing usable.
		text, kind := unwrap(json.RawMessage(trimmed), depth+1)
		if kind == EnvelopeEmpty {
			return "", EnvelopeEmpty
		}
		return text, EnvelopeResult
	}
	return trimmed, EnvelopePlainText
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, "\"")
}
