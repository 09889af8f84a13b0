package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/atikulmunna/lognorm/internal/model"
)

// Format names the source grammar a matcher recognizes.
type Format string

const (
	FormatGeneric           Format = "generic"
	FormatAccessLog         Format = "access_log"
	FormatCache             Format = "cache"
	FormatPostgresMultiline Format = "postgres_multiline"
	FormatPostgres          Format = "postgres"
	FormatDataSync          Format = "data_sync"
)

// Matcher recognizes exactly one source format. Match reports false when
// the line does not satisfy the grammar in full.
type Matcher interface {
	Format() Format
	Match(raw string) (model.LogRecord, bool)
}

// Patterns are compiled once and shared by every matcher instance.
var (
	genericRe = regexp.MustCompile(
		`^\[(?P<timestamp>[^\]]+)\] \[(?P<pid>\d+)\] \[(?P<level>INFO|ERROR|WARN|DEBUG|WARNING|CRITICAL)\] (?P<message>(?s:.*))$`)

	accessLogRe = regexp.MustCompile(
		`^(?P<ip>\S+) (?P<ident>\S+) (?P<user>\S+) \[(?P<timestamp>[^\]]+)\] ` +
			`"(?P<method>[^\s"]+) (?P<path>[^\s"]+)(?: (?P<protocol>[^"]*))?" ` +
			`(?P<status>\d{3}) (?P<bytes>\S+) "(?P<referer>[^"]*)" "(?P<agent>[^"]*)"$`)

	cacheRe = regexp.MustCompile(
		`^(?P<role>\d+:[A-Za-z]) (?P<timestamp>\d{1,2} [A-Za-z]{3} \d{4} \d{2}:\d{2}:\d{2}\.\d{3}) (?P<symbol>\S) (?P<message>(?s:.*))$`)

	postgresMultilineRe = regexp.MustCompile(
		`(?s)^` + postgresHeader(`[A-Za-z]+`) + `:\s*(?P<message>.*?)\s*$`)

	postgresRe = regexp.MustCompile(
		`^` + postgresHeader(`[A-Za-z]+`) + `:\s*(?P<message>.*)$`)

	dataSyncRe = regexp.MustCompile(
		`^\[(?P<level>\w+)\] (?P<action>[^\n]+?) for (?P<service>\S+) (?P<message>(?s:.*))$`)
)

// postgresHeader builds the "<timestamp zone> [<pid>] <LEVEL>" prefix shared
// by both database matchers. The zone token stays part of the timestamp.
func postgresHeader(level string) string {
	return `(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d+)? [A-Za-z0-9+\-:]+) \[(?P<pid>\d+)\] (?P<level>` + level + `)`
}

// submatch returns the named group of m, or "" when the group is missing.
func submatch(re *regexp.Regexp, m []string, name string) string {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

// ---------------------------------------------------------------------------
// Generic bracketed application log
// ---------------------------------------------------------------------------

// GenericMatcher handles "[ts] [pid] [LEVEL] message" lines. It only accepts
// its own closed level set and passes the level through verbatim.
type GenericMatcher struct {
	re *regexp.Regexp
}

// NewGenericMatcher returns a matcher for bracketed application lines.
func NewGenericMatcher() *GenericMatcher { return &GenericMatcher{re: genericRe} }

// Format reports FormatGeneric.
func (m *GenericMatcher) Format() Format { return FormatGeneric }

// Match extracts timestamp, level and message. The message may span lines.
func (m *GenericMatcher) Match(raw string) (model.LogRecord, bool) {
	groups := m.re.FindStringSubmatch(raw)
	if groups == nil {
		return model.LogRecord{}, false
	}
	return model.LogRecord{
		Timestamp: submatch(m.re, groups, "timestamp"),
		Level:     submatch(m.re, groups, "level"),
		Message:   submatch(m.re, groups, "message"),
	}, true
}

// ---------------------------------------------------------------------------
// HTTP combined access log
// ---------------------------------------------------------------------------

// AccessLogMatcher handles Apache/Nginx "combined" lines:
// ip ident user [date] "METHOD path PROTO" status bytes "referer" "agent"
type AccessLogMatcher struct {
	re *regexp.Regexp
}

// NewAccessLogMatcher returns a matcher for combined access log lines.
func NewAccessLogMatcher() *AccessLogMatcher { return &AccessLogMatcher{re: accessLogRe} }

// Format reports FormatAccessLog.
func (m *AccessLogMatcher) Format() Format { return FormatAccessLog }

// Match requires a method and a path in the request field. The level is
// always INFO and the client address is kept in IP.
func (m *AccessLogMatcher) Match(raw string) (model.LogRecord, bool) {
	groups := m.re.FindStringSubmatch(raw)
	if groups == nil {
		return model.LogRecord{}, false
	}

	// Access logs carry no severity; the protocol token is dropped.
	msg := fmt.Sprintf("%s %s %s %s \"%s\" \"%s\"",
		submatch(m.re, groups, "method"),
		submatch(m.re, groups, "path"),
		submatch(m.re, groups, "status"),
		submatch(m.re, groups, "bytes"),
		submatch(m.re, groups, "referer"),
		submatch(m.re, groups, "agent"),
	)

	return model.LogRecord{
		Timestamp: submatch(m.re, groups, "timestamp"),
		Level:     LevelInfo,
		Message:   msg,
		IP:        submatch(m.re, groups, "ip"),
	}, true
}

// ---------------------------------------------------------------------------
// Cache server (role-prefixed)
// ---------------------------------------------------------------------------

// cacheSymbolLevels maps the cache server's one-character level marks.
var cacheSymbolLevels = map[string]string{
	".": LevelDebug,
	"-": LevelInfo,
	"*": LevelNotice,
	"#": LevelWarning,
}

// CacheMatcher handles "pid:R DD Mon YYYY HH:MM:SS.mmm <symbol> message"
// lines, where R is the process role letter.
type CacheMatcher struct {
	re *regexp.Regexp
}

// NewCacheMatcher returns a matcher for role-prefixed cache server lines.
func NewCacheMatcher() *CacheMatcher { return &CacheMatcher{re: cacheRe} }

// Format reports FormatCache.
func (m *CacheMatcher) Format() Format { return FormatCache }

// Match maps the level symbol and keeps the role. Folded continuation lines
// stay in the trimmed message.
func (m *CacheMatcher) Match(raw string) (model.LogRecord, bool) {
	groups := m.re.FindStringSubmatch(raw)
	if groups == nil {
		return model.LogRecord{}, false
	}

	level, ok := cacheSymbolLevels[submatch(m.re, groups, "symbol")]
	if !ok {
		level = LevelInfo
	}

	return model.LogRecord{
		Timestamp: submatch(m.re, groups, "timestamp"),
		Level:     level,
		Message:   strings.TrimSpace(submatch(m.re, groups, "message")),
		Role:      submatch(m.re, groups, "role"),
	}, true
}

// ---------------------------------------------------------------------------
// Relational database
// ---------------------------------------------------------------------------

// PostgresMatcher handles "YYYY-MM-DD HH:MM:SS.fff TZ [pid] LEVEL: message".
// Both variants share the header. The multi-line variant lets the message
// span embedded newlines and keeps them, so the single-line variant only
// sees what the multi-line one rejects.
type PostgresMatcher struct {
	re        *regexp.Regexp
	multiline bool
}

// NewPostgresMatcher returns the single-line database matcher.
func NewPostgresMatcher() *PostgresMatcher {
	return &PostgresMatcher{re: postgresRe}
}

// NewPostgresMultilineMatcher returns the database matcher whose message
// may span embedded newlines.
func NewPostgresMultilineMatcher() *PostgresMatcher {
	return &PostgresMatcher{re: postgresMultilineRe, multiline: true}
}

// Format reports which of the two database variants m is.
func (m *PostgresMatcher) Format() Format {
	if m.multiline {
		return FormatPostgresMultiline
	}
	return FormatPostgres
}

// Match normalizes the level token and trims the message.
func (m *PostgresMatcher) Match(raw string) (model.LogRecord, bool) {
	groups := m.re.FindStringSubmatch(raw)
	if groups == nil {
		return model.LogRecord{}, false
	}
	return model.LogRecord{
		Timestamp: submatch(m.re, groups, "timestamp"),
		Level:     NormalizeLevel(submatch(m.re, groups, "level")),
		Message:   strings.TrimSpace(submatch(m.re, groups, "message")),
	}, true
}

// ---------------------------------------------------------------------------
// Data synchronization job
// ---------------------------------------------------------------------------

// DataSyncMatcher handles "[LEVEL] <action> for <service> <message>". These
// lines carry no timestamp, and any bracketed word is accepted as a level.
type DataSyncMatcher struct {
	re *regexp.Regexp
}

// NewDataSyncMatcher returns a matcher for data synchronization job lines.
func NewDataSyncMatcher() *DataSyncMatcher { return &DataSyncMatcher{re: dataSyncRe} }

// Format reports FormatDataSync.
func (m *DataSyncMatcher) Format() Format { return FormatDataSync }

// Match uppercases the level and rebuilds the message from its parts.
func (m *DataSyncMatcher) Match(raw string) (model.LogRecord, bool) {
	groups := m.re.FindStringSubmatch(raw)
	if groups == nil {
		return model.LogRecord{}, false
	}

	msg := fmt.Sprintf("%s for %s %s",
		submatch(m.re, groups, "action"),
		submatch(m.re, groups, "service"),
		strings.TrimRightFunc(submatch(m.re, groups, "message"), unicode.IsSpace),
	)

	return model.LogRecord{
		Timestamp: "",
		Level:     strings.ToUpper(submatch(m.re, groups, "level")),
		Message:   msg,
	}, true
}
