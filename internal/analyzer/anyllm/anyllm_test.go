package anyllm

import "testing"

func TestExtractJSON_Fenced(t *testing.T) {
	t.Parallel()
	in := "Here is the analysis:\n```json\n{\"detectedNeed\": \"hungry\"}\n```\nHope that helps!"
	want := `{"detectedNeed": "hungry"}`
	if got := extractJSON(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractJSON_Bare(t *testing.T) {
	t.Parallel()
	in := `{"confidence": 80}`
	if got := extractJSON(in); got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestExtractJSON_NoBraces(t *testing.T) {
	t.Parallel()
	in := "no json here"
	if got := extractJSON(in); got != in {
		t.Errorf("got %q, want input back", got)
	}
}

func TestNew_RequiresProviderAndModel(t *testing.T) {
	t.Parallel()
	if _, err := New("", "llama3"); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("smoke-signals", "m1"); err == nil {
		t.Error("expected error for unsupported provider")
	}
}
