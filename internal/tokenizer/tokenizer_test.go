package tokenizer

import "testing"

func TestTokenizeBasic(t *testing.T) {
	toks := TokenizeDefault([]byte("fn main() { tokenize(s); }"))
	var words []string
	for _, tok := range toks {
		words = append(words, tok.Text)
	}
	want := []string{"fn", "main", "tokenize"}
	if len(words) != len(want) {
		t.Fatalf("got %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("got %v, want %v", words, want)
		}
	}
}

func TestTokenizeMinLength(t *testing.T) {
	toks := TokenizeDefault([]byte("a bb ccc"))
	if len(toks) != 2 {
		t.Fatalf("expected single-char tokens dropped, got %v", toks)
	}
}

func TestTokenizeLineNumbers(t *testing.T) {
	toks := TokenizeDefault([]byte("alpha\nbeta\n\ngamma"))
	want := map[string]uint32{"alpha": 1, "beta": 2, "gamma": 4}
	for _, tok := range toks {
		if want[tok.Text] != tok.Line {
			t.Fatalf("token %s: got line %d, want %d", tok.Text, tok.Line, want[tok.Text])
		}
	}
}

func TestTokenizeCaseFoldingStable(t *testing.T) {
	a := TokenizeDefault([]byte("UserMapperCache"))
	b := TokenizeDefault([]byte("usermappercache"))
	if len(a) != 1 || len(b) != 1 || a[0].Text != b[0].Text {
		t.Fatalf("tokenize not case-folding-stable: %v vs %v", a, b)
	}
}

func TestTokenizeIdempotent(t *testing.T) {
	text := []byte("The Quick_Brown Fox42 jumps")
	first := TokenizeDefault(text)
	second := TokenizeDefault(text)
	if len(first) != len(second) {
		t.Fatalf("non-idempotent: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-idempotent at %d: %v vs %v", i, first[i], second[i])
		}
	}
}
