package pathkey

import "testing"

func TestNormalizeExtensionsDedupAndSort(t *testing.T) {
	got := NormalizeExtensions(" TS, cs,ts , TSX")
	want := "cs,ts,tsx"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHash8Deterministic(t *testing.T) {
	a := Hash8("/proj", "cs,ts", KindCodeStructure)
	b := Hash8("/proj", "ts,cs", KindCodeStructure) // order-insensitive via normalization
	if a != b {
		t.Fatalf("hash should be insensitive to input ordering of extensions: %d vs %d", a, b)
	}
	c := Hash8("/other", "cs,ts", KindCodeStructure)
	if a == c {
		t.Fatalf("different roots should (almost certainly) hash differently")
	}
}

func TestIndexFileNameShape(t *testing.T) {
	name := IndexFileName("/proj", "cs,ts", KindWordSearch)
	if len(name) < len("words_")+8+len(".word-search") {
		t.Fatalf("unexpected short name: %s", name)
	}
	if name[len(name)-len(".word-search"):] != ".word-search" {
		t.Fatalf("expected .word-search suffix, got %s", name)
	}
}
