// Package simcheck detects near-duplicate texts in-process.
//
// A Checker embeds every text of a batch, builds the pairwise similarity
// matrix (percentages in [0, 100], diagonal exactly 100) and reports clone
// pairs whose similarity reaches the threshold (90 by default).
//
//	checker, _ := simcheck.New(
//	    simcheck.WithEmbedder(myEmbedder),
//	    simcheck.WithThreshold(85),
//	)
//	res, err := checker.Analyze(ctx, []string{"first text", "second text"})
//	if errors.Is(err, simcheck.ErrInvalidInput) {
//	    // fix the batch
//	}
//	for _, p := range res.Clones {
//	    fmt.Println(p.A, p.B, res.Matrix[p.A][p.B])
//	}
//
// Without WithEmbedder the Checker uses a local feature-hashing embedder that
// needs no network and catches lexical near-duplicates only. Use
// NewOllamaEmbedder or NewOpenAIEmbedder for semantic similarity.
package simcheck
