package oracle

import "testing"

type decision struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
}

func TestDecodeJSONPlain(t *testing.T) {
	out, err := DecodeJSON[decision](`{"decision":"stop","confidence":0.9}`)
	if err != nil {
		t.Fatalf("DecodeJSON error: %v", err)
	}
	if out.Decision != "stop" || out.Confidence != 0.9 {
		t.Fatalf("unexpected decode result: %#v", out)
	}
}

func TestDecodeJSONFenced(t *testing.T) {
	raw := "```json\n{\"decision\":\"continue\",\"confidence\":0.4}\n```"
	out, err := DecodeJSON[decision](raw)
	if err != nil {
		t.Fatalf("DecodeJSON error: %v", err)
	}
	if out.Decision != "continue" {
		t.Fatalf("unexpected decision: %q", out.Decision)
	}
}

func TestDecodeJSONEmbeddedInProse(t *testing.T) {
	raw := `Here is my verdict: {"decision":"stop","confidence":1} — hope that helps.`
	out, err := DecodeJSON[decision](raw)
	if err != nil {
		t.Fatalf("DecodeJSON error: %v", err)
	}
	if out.Decision != "stop" {
		t.Fatalf("unexpected decision: %q", out.Decision)
	}
}

func TestDecodeOrFallback(t *testing.T) {
	fallback := decision{Decision: "continue", Confidence: 0.5}

	got, degraded := DecodeOr("not json at all", fallback)
	if !degraded {
		t.Fatalf("expected fallback to be used")
	}
	if got != fallback {
		t.Fatalf("expected fallback value, got %#v", got)
	}

	got, degraded = DecodeOr(`{"decision":"stop","confidence":0.8}`, fallback)
	if degraded {
		t.Fatalf("expected parse to succeed")
	}
	if got.Decision != "stop" {
		t.Fatalf("unexpected decision: %q", got.Decision)
	}
}
