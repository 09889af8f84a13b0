// Package reader reads log files or streams to EOF and emits logical
// records for normalization.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/model"
)

const (
	outBuffer           = 512
	DefaultMaxLineBytes = 1024 * 1024
)

// StdinName is the source name used for standard input.
const StdinName = "-"

type source struct {
	name string
	open func() (io.ReadCloser, error)
}

// Reader emits RawLine values for each logical record in its sources.
type Reader struct {
	sources      []source
	out          chan model.RawLine
	join         bool
	maxLineBytes int
}

// Option configures a Reader.
type Option func(*Reader)

// WithJoinContinuations toggles folding indented lines into the previous
// record.
func WithJoinContinuations(join bool) Option {
	return func(r *Reader) { r.join = join }
}

// WithMaxLineBytes caps the length of a single physical line.
func WithMaxLineBytes(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxLineBytes = n
		}
	}
}

// New creates a Reader with no sources.
func New(opts ...Option) *Reader {
	r := &Reader{
		out:          make(chan model.RawLine, outBuffer),
		join:         true,
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddFile queues a file path. The file is opened when reading reaches it.
func (r *Reader) AddFile(path string) {
	r.sources = append(r.sources, source{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	})
}

// AddReader queues an already open stream under the given source name.
func (r *Reader) AddReader(name string, rd io.Reader) {
	r.sources = append(r.sources, source{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(rd), nil },
	})
}

// Lines returns the channel where logical records are sent.
func (r *Reader) Lines() <-chan model.RawLine {
	return r.out
}

// Start reads every source in order and closes Lines when done. Sources that
// cannot be opened are logged and skipped; a read error stops the run.
func (r *Reader) Start(ctx context.Context) error {
	defer close(r.out)

	for _, src := range r.sources {
		if err := r.readSource(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readSource(ctx context.Context, src source) error {
	rc, err := src.open()
	if err != nil {
		logger.Warn("cannot open source", "source", src.name, "error", err)
		return nil
	}
	defer rc.Close()

	asm := NewAssembler(r.join)
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, min(64*1024, r.maxLineBytes)), r.maxLineBytes)

	for scanner.Scan() {
		if rec, ok := asm.Push(scanner.Text()); ok {
			if err := r.emit(ctx, rec, src.name); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", src.name, err)
	}

	if rec, ok := asm.Flush(); ok {
		return r.emit(ctx, rec, src.name)
	}
	return nil
}

func (r *Reader) emit(ctx context.Context, text, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r.out <- model.RawLine{Text: text, Source: name}:
		return nil
	}
}

// Expand resolves glob patterns to absolute file paths. Recursive patterns
// like /var/log/**/*.log are supported via doublestar.
func Expand(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			logger.Warn("pattern matched no files", "pattern", pattern)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if !seen[abs] {
				seen[abs] = true
				paths = append(paths, abs)
			}
		}
	}
	return paths, nil
}
