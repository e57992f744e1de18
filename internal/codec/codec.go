// Package codec implements the compressed serializer (spec.md §4.3): a
// 4-byte magic prefix "LZ4S" followed by an LZ4-frame-compressed gob stream,
// with backward-compatible loading of raw (un-prefixed) gob payloads.
package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/pustynsky/codescope/internal/diag"
)

// Magic is the 4-byte prefix identifying an LZ4-framed payload.
var Magic = [4]byte{'L', 'Z', '4', 'S'}

// Save encodes value with gob, LZ4-frames it, prefixes the magic, and writes
// it atomically (temp file + rename) to path.
func Save(value interface{}, path string) error {
	start := time.Now()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(value); err != nil {
		return fmt.Errorf("codec: gob encode: %w", err)
	}
	rawLen := raw.Len()

	var compressed bytes.Buffer
	compressed.Write(Magic[:])
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		zw.Close()
		return fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("codec: lz4 close: %w", err)
	}

	if err := atomicWrite(path, compressed.Bytes()); err != nil {
		return err
	}

	elapsed := time.Since(start)
	ratio := 0.0
	if rawLen > 0 {
		ratio = float64(compressed.Len()) / float64(rawLen)
	}
	diag.Log("codec", "saved %s: %d -> %d bytes (ratio %.3f) in %v", filepath.Base(path), rawLen, compressed.Len(), ratio, elapsed)
	return nil
}

// Load reads path and decodes it into value. It auto-detects the LZ4S magic
// prefix; payloads without it are assumed to be raw gob streams (legacy
// fallback, spec.md §4.3).
func Load(path string, value interface{}) error {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("codec: read %s: %w", path, err)
	}

	var payload []byte
	compressed := false
	if len(data) >= 4 && [4]byte{data[0], data[1], data[2], data[3]} == Magic {
		compressed = true
		zr := lz4.NewReader(bytes.NewReader(data[4:]))
		var out bytes.Buffer
		if _, err := out.ReadFrom(zr); err != nil {
			return fmt.Errorf("codec: lz4 decompress %s: %w", path, err)
		}
		payload = out.Bytes()
	} else {
		payload = data
	}

	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(value); err != nil {
		return fmt.Errorf("codec: gob decode %s: %w", path, err)
	}

	diag.Log("codec", "loaded %s: %d bytes (compressed=%t) in %v", filepath.Base(path), len(data), compressed, time.Since(start))
	return nil
}

// atomicWrite writes data to a temp file in the same directory as path, then
// renames it into place — the atomic temp+rename idiom spec.md §3 requires
// for all whole-file index replacement.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("codec: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("codec: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("codec: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("codec: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("codec: rename into place: %w", err)
	}
	return nil
}

// RegisterConcreteTypes is called once at process start so gob can encode
// interface-typed fields (none currently exist in the index structs, but
// kept as the extension point the teacher's own serializer documents).
func RegisterConcreteTypes(values ...interface{}) {
	for _, v := range values {
		gob.Register(v)
	}
}
