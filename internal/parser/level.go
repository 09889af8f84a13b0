package parser

import "strings"

// Canonical levels.
const (
	LevelDebug     = "DEBUG"
	LevelInfo      = "INFO"
	LevelNotice    = "NOTICE"
	LevelWarning   = "WARNING"
	LevelError     = "ERROR"
	LevelLog       = "LOG"
	LevelFatal     = "FATAL"
	LevelPanic     = "PANIC"
	LevelStatement = "STATEMENT"
	LevelDetail    = "DETAIL"
)

var canonicalLevels = map[string]struct{}{
	LevelDebug:     {},
	LevelInfo:      {},
	LevelNotice:    {},
	LevelWarning:   {},
	LevelError:     {},
	LevelLog:       {},
	LevelFatal:     {},
	LevelPanic:     {},
	LevelStatement: {},
	LevelDetail:    {},
}

// CanonicalLevels returns the canonical vocabulary in declaration order.
func CanonicalLevels() []string {
	return []string{
		LevelDebug, LevelInfo, LevelNotice, LevelWarning, LevelError,
		LevelLog, LevelFatal, LevelPanic, LevelStatement, LevelDetail,
	}
}

// IsCanonical reports whether level is a member of the canonical set.
// The comparison is case-sensitive.
func IsCanonical(level string) bool {
	_, ok := canonicalLevels[level]
	return ok
}

// NormalizeLevel uppercases raw and returns it when it is canonical,
// otherwise INFO.
func NormalizeLevel(raw string) string {
	upper := strings.ToUpper(raw)
	if IsCanonical(upper) {
		return upper
	}
	return LevelInfo
}
