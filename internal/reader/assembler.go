package reader

import "strings"

// Assembler joins physical lines into logical records. A line starting with
// a space or tab continues the record before it. Empty lines are dropped.
type Assembler struct {
	join    bool
	pending []string
}

// NewAssembler returns an Assembler. With join false every physical line is
// its own record.
func NewAssembler(join bool) *Assembler {
	return &Assembler{join: join}
}

// Push adds a physical line. It returns the previous record when line
// starts a new one.
func (a *Assembler) Push(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	if !a.join {
		return line, true
	}

	if len(a.pending) > 0 && isContinuation(line) {
		a.pending = append(a.pending, line)
		return "", false
	}

	rec, ok := a.Flush()
	a.pending = append(a.pending, line)
	return rec, ok
}

// Flush returns the buffered record, if any, and resets the buffer.
func (a *Assembler) Flush() (string, bool) {
	if len(a.pending) == 0 {
		return "", false
	}
	rec := strings.Join(a.pending, "\n")
	a.pending = a.pending[:0]
	return rec, true
}

func isContinuation(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}
