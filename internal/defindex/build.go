package defindex

import (
	"context"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pustynsky/codescope/internal/cserr"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/walker"
)

// Build runs the parallel DefinitionIndex build of spec.md §4.8: choose a
// grammar per extension, parse and walk each file (lazily instantiating
// grammars per worker), then merge sequentially to assign global
// definition indices and populate the secondary indexes.
func Build(ctx context.Context, opts walker.Options, maxAgeSecs int64, nowUnix int64) (*Index, error) {
	tsExts := map[string]struct{}{"cs": {}, "ts": {}, "tsx": {}}
	walkOpts := opts
	walkOpts.Extensions = intersectExts(opts.Extensions, tsExts)

	files, err := walker.Walk(ctx, walkOpts)
	if err != nil {
		return nil, cserr.Wrap(cserr.IO, "defindex.Build", err)
	}

	extractions := make([]*fileExtraction, len(files))

	maxProcs := opts.MaxGoroutines
	if maxProcs <= 0 {
		maxProcs = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProcs)

	// One grammarSet per worker slot: a worker that only ever lands files of
	// one language never instantiates the other grammar (spec.md §4.8 step 1).
	// A running goroutine checks a set out of the free pool and returns it
	// when done, so no two goroutines use the same parser at once.
	perWorker := make([]*grammarSet, maxProcs)
	free := make(chan *grammarSet, maxProcs)
	for i := range perWorker {
		perWorker[i] = newGrammarSet()
		free <- perWorker[i]
	}

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			l := langForExt(extOf(f.RelPath))
			if l == langNone {
				return nil
			}
			grammars := <-free
			defer func() { free <- grammars }()

			raw, err := os.ReadFile(f.Path)
			if err != nil {
				diag.Index("defindex: skip unreadable file %s: %v", f.Path, err)
				return nil
			}
			clean := strings.ToValidUTF8(string(raw), "�")

			fe, extractErr := extractFile(grammars, l, f.RelPath, []byte(clean))
			if extractErr != nil {
				fe = &fileExtraction{path: f.RelPath, lang: l, parseFailed: true}
			}
			if fe != nil {
				fe.lossy = clean != string(raw)
			}
			extractions[i] = fe
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, gs := range perWorker {
			gs.close()
		}
		return nil, cserr.Wrap(cserr.IO, "defindex.Build", err)
	}
	for _, gs := range perWorker {
		gs.close()
	}

	snap := Snapshot{
		Root:           opts.Root,
		CreatedAt:      nowUnix,
		MaxAgeSecs:     maxAgeSecs,
		Extensions:     []string{"cs", "ts", "tsx"},
		NameIndex:      make(map[string][]uint32),
		KindIndex:      make(map[Kind][]uint32),
		AttributeIndex: make(map[string][]uint32),
		BaseTypeIndex:  make(map[string][]uint32),
		FileIndex:      make(map[string][]uint32),
		MethodCalls:    make(map[uint32][]CallSite),
	}

	for _, fe := range extractions {
		if fe == nil {
			continue
		}
		mergeExtraction(&snap, fe)
	}

	diag.Index("defindex: built %d definitions across %d files (%d parse errors, %d lossy)",
		len(snap.Definitions), len(snap.Files), snap.ParseErrors, snap.LossyUTF8Files)

	return wrap(snap), nil
}

// mergeExtraction appends one file's extraction into snap, assigning global
// definition indices starting at len(snap.Definitions) and populating every
// secondary index (spec.md §4.8 step 7). Shared by the initial parallel
// build's sequential merge and the watcher's per-file add/update mutation
// (spec.md §4.12), so both paths assign indices and populate indices
// identically.
func mergeExtraction(snap *Snapshot, fe *fileExtraction) {
	if fe.parseFailed {
		snap.ParseErrors++
		return
	}
	if fe.lossy {
		snap.LossyUTF8Files++
	}
	if len(fe.definitions) == 0 {
		return
	}
	snap.Files = append(snap.Files, fe.path)

	base := uint32(len(snap.Definitions))
	for localIdx, def := range fe.definitions {
		globalIdx := base + uint32(localIdx)
		snap.Definitions = append(snap.Definitions, def)

		key := lower(def.Name)
		snap.NameIndex[key] = append(snap.NameIndex[key], globalIdx)
		snap.KindIndex[def.Kind] = append(snap.KindIndex[def.Kind], globalIdx)
		snap.FileIndex[def.File] = append(snap.FileIndex[def.File], globalIdx)
		for _, attr := range def.Attributes {
			ak := lower(attr)
			snap.AttributeIndex[ak] = append(snap.AttributeIndex[ak], globalIdx)
		}
		for _, bt := range def.BaseTypes {
			bk := lower(bt)
			snap.BaseTypeIndex[bk] = append(snap.BaseTypeIndex[bk], globalIdx)
		}

		if calls, ok := fe.callsByDef[localIdx]; ok {
			remapped := make([]CallSite, len(calls))
			for i, cs := range calls {
				cs.CallerDefIdx = globalIdx
				remapped[i] = cs
			}
			snap.MethodCalls[globalIdx] = remapped
		}
	}
}

func intersectExts(a map[string]struct{}, b map[string]struct{}) map[string]struct{} {
	if len(a) == 0 {
		return b
	}
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func extOf(relPath string) string {
	i := strings.LastIndexByte(relPath, '.')
	if i < 0 {
		return ""
	}
	return relPath[i+1:]
}
