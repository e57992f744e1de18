package codec

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type sample struct {
	Name  string
	Count int
	Lines []uint32
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")

	in := sample{Name: "alpha", Count: 3, Lines: []uint32{1, 4, 9}}
	if err := Save(in, path); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out sample
	if err := Load(path, &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestLoadLegacyUnprefixed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.bin")

	in := sample{Name: "legacy", Count: 1, Lines: []uint32{2}}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := gob.NewEncoder(f).Encode(in); err != nil {
		t.Fatal(err)
	}
	f.Close()

	var out sample
	if err := Load(path, &out); err != nil {
		t.Fatalf("load legacy: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("legacy round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestMagicPrefixPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	if err := Save(sample{Name: "x"}, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "LZ4S" {
		t.Fatalf("expected LZ4S magic prefix, got %v", data[:min(4, len(data))])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
