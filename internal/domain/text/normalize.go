// Package text canonicalizes submitted texts before they are embedded.
package text

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/simcheck/internal/domain"
)

// Normalize applies NFKC, trims, collapses whitespace runs to a single space
// and lower-cases. Case and spacing must not change the embedding.
// A text that is blank after trimming is rejected with domain.ErrInvalidInput.
func Normalize(raw string) (string, error) {
	s := strings.ToValidUTF8(raw, "\uFFFD")
	s = norm.NFKC.String(s)

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", domain.NewInvalidInput(domain.NoIndex, "text is empty")
	}

	// Caser keeps state between calls, so each call gets its own.
	lower := cases.Lower(language.Und)
	return lower.String(strings.Join(fields, " ")), nil
}

// Validator normalizes texts and enforces a raw size limit.
type Validator struct {
	MaxBytes int // 0 = unlimited
}

// Normalize checks the size limit and then normalizes raw.
func (v Validator) Normalize(raw string) (string, error) {
	if v.MaxBytes > 0 && len(raw) > v.MaxBytes {
		return "", domain.NewInvalidInput(domain.NoIndex, fmt.Sprintf("text exceeds %d bytes", v.MaxBytes))
	}
	return Normalize(raw)
}
