package ollama

import (
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// charsPerToken is the fallback ratio until the BPE ranks are available.
const charsPerToken = 4

// tokenCounter estimates prompt tokens. Ollama's embeddings endpoint reports none,
// and budgets need a count.
type tokenCounter func(text string) int

// tiktokenCounter counts with cl100k_base. The ranks are fetched once in the
// background (cached under TIKTOKEN_CACHE_DIR); until then, or when the fetch
// fails, the count falls back to runes/charsPerToken.
type tiktokenCounter struct {
	enc atomic.Pointer[tiktoken.Tiktoken]
}

func newTiktokenCounter(logger *zap.Logger) *tiktokenCounter {
	c := &tiktokenCounter{}
	go c.load(logger)
	return c
}

func (c *tiktokenCounter) load(logger *zap.Logger) {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		logger.Warn("Token encoding unavailable, estimating from text length", zap.Error(err))
		return
	}
	c.enc.Store(enc)
}

func (c *tiktokenCounter) count(text string) int {
	if enc := c.enc.Load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

// approxTokens never reports zero for non-empty text.
func approxTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return max(n/charsPerToken, 1)
}
