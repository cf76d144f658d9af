// Package metrics holds the usage counters of a report.
package metrics

// Metrics holds embedding usage for a time period.
type Metrics struct {
	texts  int
	tokens int
}

// New creates a Metrics snapshot.
func New(texts, tokens int) Metrics {
	return Metrics{texts: texts, tokens: tokens}
}

// Texts returns the number of distinct texts sent to the embedder.
func (m Metrics) Texts() int { return m.texts }

// Tokens returns the total tokens consumed. Providers that do not report tokens contribute 0.
func (m Metrics) Tokens() int { return m.tokens }
