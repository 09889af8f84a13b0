// Package parser normalizes raw log lines from heterogeneous backends into
// canonical model.LogRecord values.
package parser

import (
	"strings"
	"unicode"

	"github.com/atikulmunna/lognorm/internal/model"
)

// Parser converts a raw logical line into a LogEntry.
type Parser interface {
	Normalize(line model.RawLine) model.LogEntry
}

// DefaultMatchers returns the built-in matchers in priority order. The
// strictly delimited formats come first; the database multi-line variant
// precedes the single-line one so statement dumps are never truncated; the
// timestamp-less data-sync format is the weakest commitment and goes last.
func DefaultMatchers() []Matcher {
	return []Matcher{
		NewGenericMatcher(),
		NewAccessLogMatcher(),
		NewCacheMatcher(),
		NewPostgresMultilineMatcher(),
		NewPostgresMatcher(),
		NewDataSyncMatcher(),
	}
}

// Normalizer tries its matchers in order; the first match wins.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	matchers []Matcher
}

// New returns a Normalizer over the given matchers, tried in order.
func New(matchers ...Matcher) *Normalizer {
	return &Normalizer{matchers: matchers}
}

var defaultNormalizer = New(DefaultMatchers()...)

// Default returns the shared Normalizer built from DefaultMatchers.
func Default() *Normalizer { return defaultNormalizer }

// Match returns the record and the format of the first matcher that
// recognizes raw. ok is false when no matcher does. Trailing whitespace,
// including a final newline, is ignored by every format.
func (n *Normalizer) Match(raw string) (rec model.LogRecord, format Format, ok bool) {
	raw = strings.TrimRightFunc(raw, unicode.IsSpace)
	for _, m := range n.matchers {
		if rec, ok := m.Match(raw); ok {
			return rec, m.Format(), true
		}
	}
	return model.LogRecord{}, "", false
}

// Parse returns the canonical record for raw, or false if the line is
// unrecognized.
func (n *Normalizer) Parse(raw string) (model.LogRecord, bool) {
	rec, _, ok := n.Match(raw)
	return rec, ok
}

func (n *Normalizer) Normalize(line model.RawLine) model.LogEntry {
	entry := model.LogEntry{Source: line.Source, Raw: line.Text}
	if rec, format, ok := n.Match(line.Text); ok {
		entry.Parsed = true
		entry.Format = string(format)
		entry.Record = &rec
	}
	return entry
}

// Parse normalizes raw with the default matchers.
func Parse(raw string) (model.LogRecord, bool) {
	return defaultNormalizer.Parse(raw)
}
