package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents the output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format name; "" selects table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Formatter formats data for output.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format, wide bool) Formatter {
	switch format {
	case FormatJSON:
		return JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{Wide: wide}
	}
}

// Printer writes command results in the selected format.
type Printer struct {
	w      io.Writer
	format Format
	wide   bool
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, format Format, wide bool) *Printer {
	return &Printer{w: w, format: format, wide: wide}
}

// Format returns the selected format.
func (p *Printer) Format() Format { return p.format }

// Structured reports whether output is machine readable.
func (p *Printer) Structured() bool { return p.format == FormatJSON || p.format == FormatYAML }

// Print writes data. In table format t is rendered when non-nil.
func (p *Printer) Print(data any, t *Table) error {
	if p.format == FormatTable && t != nil {
		return t.RenderWide(p.w, p.wide)
	}
	return NewFormatter(p.format, p.wide).Format(p.w, data)
}

// Message writes a human-readable line. Structured formats print the
// payload instead so scripts always get a parseable document.
func (p *Printer) Message(payload any, format string, args ...any) error {
	if p.Structured() {
		return NewFormatter(p.format, false).Format(p.w, payload)
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}
