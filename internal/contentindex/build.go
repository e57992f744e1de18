package contentindex

import (
	"context"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pustynsky/codescope/internal/cserr"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/tokenizer"
	"github.com/pustynsky/codescope/internal/walker"
)

// fileResult is one worker's thread-local output for a single file,
// spec.md §4.6 step 2's "(path, local token -> line-list) pairs".
type fileResult struct {
	path       string
	tokenLines map[string][]uint32 // ascending, deduped per file
	tokenCount int
	lossy      bool
}

// Build runs the parallel pipeline of spec.md §4.6: walk, tokenize each file
// in a worker pool into thread-local maps, merge sequentially in walk order
// (which assigns deterministic FileIDs), drop buffers, then build the
// trigram accelerator.
func Build(ctx context.Context, opts walker.Options, maxAgeSecs int64, nowUnix int64) (*Index, error) {
	files, err := walker.Walk(ctx, opts)
	if err != nil {
		return nil, cserr.Wrap(cserr.IO, "contentindex.Build", err)
	}

	results := make([]*fileResult, len(files))

	maxProcs := opts.MaxGoroutines
	if maxProcs <= 0 {
		maxProcs = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProcs)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			r, err := tokenizeFile(f.Path)
			if err != nil {
				diag.Index("contentindex: skip unreadable file %s: %v", f.Path, err)
				return nil
			}
			r.path = f.RelPath
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, cserr.Wrap(cserr.IO, "contentindex.Build", err)
	}

	// Sequential merge: assigns FileIDs in walk order, so every token's
	// postings list is built with ascending FileIDs for free.
	tokenToPostings := make(map[string][]Posting)
	fileMetas := make([]FileMeta, 0, len(results))
	var totalTokens int64
	var lossyFiles int

	for i, r := range results {
		if r == nil {
			continue // unreadable file, excluded from the index
		}
		fileID := uint32(len(fileMetas))
		_ = i
		fileMetas = append(fileMetas, FileMeta{Path: r.path, TokenCount: r.tokenCount})
		totalTokens += int64(r.tokenCount)
		if r.lossy {
			lossyFiles++
		}

		tokens := make([]string, 0, len(r.tokenLines))
		for tok := range r.tokenLines {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		for _, tok := range tokens {
			tokenToPostings[tok] = append(tokenToPostings[tok], Posting{
				FileID: fileID,
				Lines:  r.tokenLines[tok],
			})
		}
	}

	vocab := make([]string, 0, len(tokenToPostings))
	for tok := range tokenToPostings {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)

	postings := make([][]Posting, len(vocab))
	for i, tok := range vocab {
		postings[i] = tokenToPostings[tok]
	}

	snap := Snapshot{
		Root:        opts.Root,
		Files:       fileMetas,
		Tokens:      vocab,
		Postings:    postings,
		TotalTokens: totalTokens,
		LossyFiles:  lossyFiles,
		CreatedAt:   nowUnix,
		MaxAgeSecs:  maxAgeSecs,
	}

	// Buffers and the merge-time maps are unreachable past this point;
	// only the vocabulary and postings survive into the trigram build.
	snap.Trigram = buildTrigramIndex(snap.Tokens)

	diag.Index("contentindex: built %d files, %d tokens, %d lossy", len(fileMetas), len(vocab), lossyFiles)
	return wrap(snap), nil
}

// tokenizeFile reads path lossily (invalid UTF-8 bytes become U+FFFD,
// spec.md §4.6 step 2) and tokenizes it into a thread-local map.
func tokenizeFile(path string) (*fileResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	clean := strings.ToValidUTF8(string(raw), "�")
	lossy := clean != string(raw)

	toks := tokenizer.TokenizeDefault([]byte(clean))

	lines := make(map[string][]uint32, len(toks))
	for _, t := range toks {
		ls := lines[t.Text]
		if n := len(ls); n == 0 || ls[n-1] != t.Line {
			lines[t.Text] = append(ls, t.Line)
		}
	}

	return &fileResult{
		tokenLines: lines,
		tokenCount: len(toks),
		lossy:      lossy,
	}, nil
}
