package llm

import (
	"errors"
	"testing"
)

func TestDecodeResponses_FlatOutputText(t *testing.T) {
	gen, err := decodeResponses([]byte(`{"output_text": "hello", "usage": {"total_tokens": 12}}`))
	if err != nil {
		t.Fatalf("decodeResponses failed: %v", err)
	}
	if gen.Text != "hello" || gen.Tokens != 12 {
		t.Errorf("Unexpected generation: %+v", gen)
	}
}

func TestDecodeResponses_NestedOutput(t *testing.T) {
	body := `{
		"output": [
			{"type": "reasoning", "content": []},
			{"type": "message", "content": [
				{"type": "output_text", "text": "nested hello"}
			]}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`

	gen, err := decodeResponses([]byte(body))
	if err != nil {
		t.Fatalf("decodeResponses failed: %v", err)
	}
	if gen.Text != "nested hello" {
		t.Errorf("Expected nested text, got %q", gen.Text)
	}
	// Total falls back to input + output when absent.
	if gen.Tokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", gen.Tokens)
	}
}

func TestDecodeResponses_Failures(t *testing.T) {
	if _, err := decodeResponses([]byte("not json")); err == nil {
		t.Error("Expected error for malformed body")
	}

	if _, err := decodeResponses([]byte(`{}`)); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}

	if _, err := decodeResponses([]byte(`{"error": {"message": "nope"}}`)); err == nil {
		t.Error("Expected error for embedded error body")
	}
}

func TestDecodeChat(t *testing.T) {
	body := `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "chat hello"}}], "usage": {"total_tokens": 9}}`
	gen, err := decodeChat([]byte(body))
	if err != nil {
		t.Fatalf("decodeChat failed: %v", err)
	}
	if gen.Text != "chat hello" || gen.Tokens != 9 {
		t.Errorf("Unexpected generation: %+v", gen)
	}

	if _, err := decodeChat([]byte(`{"choices": []}`)); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for no choices, got %v", err)
	}
}

func TestDecodeImage(t *testing.T) {
	ref, err := decodeImage([]byte(`{"data": [{"url": "https://img.example/x.png"}]}`))
	if err != nil {
		t.Fatalf("decodeImage failed: %v", err)
	}
	if ref != "https://img.example/x.png" {
		t.Errorf("Expected URL, got %q", ref)
	}

	ref, err = decodeImage([]byte(`{"data": [{"b64_json": "YWJj"}]}`))
	if err != nil {
		t.Fatalf("decodeImage failed: %v", err)
	}
	if ref != "data:image/png;base64,YWJj" {
		t.Errorf("Expected data URI, got %q", ref)
	}

	if _, err := decodeImage([]byte(`{"data": []}`)); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse for empty data, got %v", err)
	}
}
