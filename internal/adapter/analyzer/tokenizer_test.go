package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("Electrical->RedRock_Hawk_Fuse box diagram")
	want := []string{"electrical", "redrock", "hawk", "fuse", "box", "diagram"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestTokenizer_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("the fuse of the truck")
	for _, token := range tokens {
		if token == "the" || token == "of" {
			t.Errorf("stopword %q should be removed, got %v", token, tokens)
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("a b c ECU")
	if len(tokens) != 1 || tokens[0] != "ecu" {
		t.Errorf("expected only 'ecu', got %v", tokens)
	}
}

func TestTokenizer_Dedup(t *testing.T) {
	tok := NewTokenizer(2)

	tokens := tok.Tokenize("fuse FUSE Fuse")
	if len(tokens) != 1 {
		t.Errorf("expected duplicates collapsed, got %v", tokens)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(2)

	if tokens := tok.Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 2},
		{"hello-world", 2},
		{"Tianlong->KL", 2},
		{"DCM3.7 wiring", 2},
		{"end.", 1},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
