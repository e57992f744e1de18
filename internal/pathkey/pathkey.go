// Package pathkey canonicalizes project roots and derives the deterministic
// on-disk names of index files, per spec.md §3 "Identity" and §4.2.
package pathkey

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Canonicalize resolves symlinks and produces a stable absolute path. If the
// path does not yet exist (e.g. a root about to be created), it falls back
// to a cleaned absolute path without symlink resolution.
func Canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}

// NormalizeExtensions lowercases, sorts, and dedups a comma-separated
// extension spec, returning the canonical form used both for display and for
// hashing (spec.md §4.2).
func NormalizeExtensions(spec string) string {
	parts := strings.Split(spec, ",")
	seen := make(map[string]struct{}, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		p = strings.TrimPrefix(p, ".")
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Kind identifies which of the three (or four) persisted index types a name
// is being derived for.
type Kind string

const (
	KindFileList      Kind = "file-list"
	KindWordSearch    Kind = "word-search"
	KindCodeStructure Kind = "code-structure"
	KindGitHistory    Kind = "git-history"
)

// semanticPrefix returns the human-readable prefix used before the hash.
func semanticPrefix(kind Kind) string {
	switch kind {
	case KindFileList:
		return "files"
	case KindWordSearch:
		return "words"
	case KindCodeStructure:
		return "defs"
	case KindGitHistory:
		return "git"
	default:
		return "index"
	}
}

// Hash8 computes the low 32 bits of FNV-1a over (canonicalRoot, extensions,
// kindTag), per spec.md §3 "Identity". Collisions are not detected, matching
// the spec's stated guarantee.
func Hash8(canonicalRoot, extensionsSpec string, kind Kind) uint32 {
	h := fnv.New64a()
	h.Write([]byte(canonicalRoot))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeExtensions(extensionsSpec)))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	sum := h.Sum64()
	return uint32(sum & 0xFFFFFFFF)
}

// IndexFileName returns "{prefix}_{hash8:8hex}.{ext}" for the given
// (root, extensions, kind) triple, the deterministic on-disk name spec.md §6
// requires.
func IndexFileName(canonicalRoot, extensionsSpec string, kind Kind) string {
	hash := Hash8(canonicalRoot, extensionsSpec, kind)
	return strings.ToLower(semanticPrefix(kind)) + "_" + hex8(hash) + "." + string(kind)
}

func hex8(v uint32) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = digits[v&0xF]
		v >>= 4
	}
	return string(b)
}

// DataDir returns the platform-specific user-data directory the process
// stores index files under, creating it if necessary.
func DataDir(appName string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// IndexFilePath joins DataDir with IndexFileName for convenience.
func IndexFilePath(appName, canonicalRoot, extensionsSpec string, kind Kind) (string, error) {
	dir, err := DataDir(appName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, IndexFileName(canonicalRoot, extensionsSpec, kind)), nil
}
