package model

// LogRecord is the canonical structured form of one logical log line.
type LogRecord struct {
	Timestamp string `json:"timestamp"`      // raw substring, never parsed
	Level     string `json:"log_level"`      // never empty
	Message   string `json:"message"`        // internal newlines preserved
	Role      string `json:"role,omitempty"` // cache-server lines only
	IP        string `json:"ip,omitempty"`   // access-log lines only
}

// RawLine is one logical record read from a source, possibly spanning
// several physical lines.
type RawLine struct {
	Text   string
	Source string
}

// LogEntry is a RawLine after normalization. Record is nil when no format
// recognized the line.
type LogEntry struct {
	Source string     `json:"source,omitempty"`
	Raw    string     `json:"raw"`
	Format string     `json:"format,omitempty"`
	Parsed bool       `json:"parsed"`
	Record *LogRecord `json:"record,omitempty"`
}

// Level returns the record's level, or "" for unparsed entries.
func (e LogEntry) Level() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.Level
}
