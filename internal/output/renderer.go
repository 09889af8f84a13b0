package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/atikulmunna/lognorm/internal/model"
)

// Renderer writes LogEntry values to an output stream.
type Renderer interface {
	Render(entry model.LogEntry) error
}

// New returns the renderer for format ("text" or "json") writing to w.
func New(format string, w io.Writer) Renderer {
	if strings.EqualFold(format, "json") {
		return NewJSONRenderer(w)
	}
	return NewTextRenderer(w)
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleInfo   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleDebug  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleNotice = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))            // blue
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))           // yellow
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleFatal  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleDetail   = lipgloss.NewStyle().Foreground(lipgloss.Color("141")) // violet
	styleSource   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true)
	styleMeta     = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	styleUnparsed = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

// TextRenderer prints entries to the terminal with severity-based colors.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(entry model.LogEntry) error {
	src := styleSource.Render(entry.Source)

	if entry.Record == nil {
		tag := styleUnparsed.Render(fmt.Sprintf("%-9s", "?"))
		_, err := fmt.Fprintf(r.w, "%s %s %s\n", tag, src, styleUnparsed.Render(entry.Raw))
		return err
	}

	rec := entry.Record
	parts := make([]string, 0, 6)
	if rec.Timestamp != "" {
		parts = append(parts, rec.Timestamp)
	}
	parts = append(parts, styleLevelTag(rec.Level), src)
	if rec.Role != "" {
		parts = append(parts, styleMeta.Render("role="+rec.Role))
	}
	if rec.IP != "" {
		parts = append(parts, styleMeta.Render("ip="+rec.IP))
	}
	parts = append(parts, rec.Message)

	_, err := fmt.Fprintln(r.w, strings.Join(parts, " "))
	return err
}

func styleLevelTag(level string) string {
	padded := fmt.Sprintf("%-9s", level)
	switch level {
	case "DEBUG":
		return styleDebug.Render(padded)
	case "NOTICE", "LOG":
		return styleNotice.Render(padded)
	case "WARN", "WARNING":
		return styleWarn.Render(padded)
	case "ERROR":
		return styleError.Render(padded)
	case "FATAL", "PANIC", "CRITICAL":
		return styleFatal.Render(padded)
	case "STATEMENT", "DETAIL":
		return styleDetail.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each entry as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONRenderer{enc: enc}
}

func (r *JSONRenderer) Render(entry model.LogEntry) error {
	return r.enc.Encode(entry)
}
