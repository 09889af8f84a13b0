package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atikulmunna/lognorm/internal/model"
	"github.com/atikulmunna/lognorm/internal/parser"
)

func collect(t *testing.T, r *Reader) []model.RawLine {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(ctx) }()

	var got []model.RawLine
	for line := range r.Lines() {
		got = append(got, line)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("reader failed: %v", err)
	}
	return got
}

func TestAssemblerJoinsIndentedLines(t *testing.T) {
	a := NewAssembler(true)

	var recs []string
	for _, line := range []string{
		"2024-10-08 04:22:01.512 UTC [70] DETAIL:  parameters: $1 = 'njchar",
		"        hello', $2 = 'aaaa'",
		"2024-10-08 04:22:01.600 UTC [70] LOG:  done",
	} {
		if rec, ok := a.Push(line); ok {
			recs = append(recs, rec)
		}
	}
	if rec, ok := a.Flush(); ok {
		recs = append(recs, rec)
	}

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %q", len(recs), recs)
	}
	want := "2024-10-08 04:22:01.512 UTC [70] DETAIL:  parameters: $1 = 'njchar\n        hello', $2 = 'aaaa'"
	if recs[0] != want {
		t.Errorf("expected %q, got %q", want, recs[0])
	}
}

func TestAssemblerLeadingContinuationStartsRecord(t *testing.T) {
	a := NewAssembler(true)
	if _, ok := a.Push("   orphan"); ok {
		t.Error("first line should be buffered, not emitted")
	}
	rec, ok := a.Flush()
	if !ok || rec != "   orphan" {
		t.Errorf("expected orphan line kept as its own record, got %q", rec)
	}
}

func TestAssemblerWithoutJoin(t *testing.T) {
	a := NewAssembler(false)
	rec, ok := a.Push("\tindented")
	if !ok || rec != "\tindented" {
		t.Errorf("expected line passed through, got %q", rec)
	}
	if _, ok := a.Flush(); ok {
		t.Error("expected nothing buffered")
	}
}

func TestReaderFromStream(t *testing.T) {
	input := "51:M 08 Oct 2024 04:21:40.150 * Ready\n\n" +
		"2024-10-08 04:21:41.017 UTC [1] STATEMENT:  SELECT 1\n" +
		"\tFROM dual\n" +
		"[INFO] Data sync for svc done\n"

	r := New()
	r.AddReader(StdinName, strings.NewReader(input))
	got := collect(t, r)

	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}
	if got[1].Text != "2024-10-08 04:21:41.017 UTC [1] STATEMENT:  SELECT 1\n\tFROM dual" {
		t.Errorf("unexpected joined record %q", got[1].Text)
	}
	for _, line := range got {
		if line.Source != StdinName {
			t.Errorf("expected source %q, got %q", StdinName, line.Source)
		}
	}
}

func TestReaderFoldedBlocksParse(t *testing.T) {
	input := "51:M 08 Oct 2024 04:21:40.150 # Warning: no config file\n" +
		"   using defaults\n" +
		"[ERROR] Data sync for sync_org_incidents failed: timeout\n" +
		"    retrying in 5s\n" +
		"[2024-10-08 04:21:42 +0000] [164] [INFO] Booting worker\n"

	r := New()
	r.AddReader(StdinName, strings.NewReader(input))
	got := collect(t, r)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(got), got)
	}

	want := []struct {
		format string
		msg    string
	}{
		{"cache", "Warning: no config file\n   using defaults"},
		{"data_sync", "Data sync for sync_org_incidents failed: timeout\n    retrying in 5s"},
		{"generic", "Booting worker"},
	}
	for i, w := range want {
		entry := parser.Default().Normalize(got[i])
		if !entry.Parsed {
			t.Errorf("record %d: expected parsed, got unparsed %q", i, got[i].Text)
			continue
		}
		if entry.Format != w.format {
			t.Errorf("record %d: expected format %s, got %s", i, w.format, entry.Format)
		}
		if entry.Record.Message != w.msg {
			t.Errorf("record %d: expected message %q, got %q", i, w.msg, entry.Record.Message)
		}
	}
}

func TestReaderFilesAndGlob(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "svc", "db")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	appLog := filepath.Join(dir, "svc", "app.log")
	dbLog := filepath.Join(nested, "postgres.log")
	if err := os.WriteFile(appLog, []byte("line a\nline b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbLog, []byte("line c"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := Expand([]string{filepath.Join(dir, "**", "*.log"), appLog})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 unique paths, got %v", paths)
	}

	r := New(WithJoinContinuations(false))
	for _, p := range paths {
		r.AddFile(p)
	}
	got := collect(t, r)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %+v", got)
	}
}

func TestReaderSkipsMissingFile(t *testing.T) {
	r := New()
	r.AddFile(filepath.Join(t.TempDir(), "missing.log"))
	r.AddReader("inline", strings.NewReader("hello\n"))

	got := collect(t, r)
	if len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("expected only inline line, got %+v", got)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	r := New(WithMaxLineBytes(16))
	r.AddReader("big", strings.NewReader(strings.Repeat("x", 64)+"\n"))

	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(context.Background()) }()
	for range r.Lines() {
	}
	if err := <-errCh; err == nil {
		t.Error("expected error for oversized line")
	}
}

func TestReaderHonoursCancel(t *testing.T) {
	r := New()
	r.AddReader("many", strings.NewReader(strings.Repeat("line\n", outBuffer*4)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
