package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvandessel/macrosim/internal/model"
)

// ErrNeedsEscape indicates a field that must be quoted or escaped under
// QuoteNone but no escape character was configured.
var ErrNeedsEscape = errors.New("field needs escaping but no escape character is set")

// Quoting selects which fields are wrapped in quote characters.
type Quoting int

const (
	// QuoteMinimal quotes only fields holding the delimiter, the quote
	// character or a line break.
	QuoteMinimal Quoting = iota
	// QuoteAll quotes every field.
	QuoteAll
	// QuoteNonNumeric quotes every field that is not a number.
	QuoteNonNumeric
	// QuoteNone never quotes; special characters are preceded by Escape.
	QuoteNone
)

// ErrUnknownQuoting indicates a quoting style name ParseQuoting does not know.
var ErrUnknownQuoting = errors.New("unknown quoting style")

// ParseQuoting maps a style name ("minimal", "all", "nonnumeric", "none")
// to its Quoting value. The empty string means QuoteMinimal.
func ParseQuoting(name string) (Quoting, error) {
	switch strings.ToLower(name) {
	case "", "minimal":
		return QuoteMinimal, nil
	case "all":
		return QuoteAll, nil
	case "nonnumeric":
		return QuoteNonNumeric, nil
	case "none":
		return QuoteNone, nil
	}
	return QuoteMinimal, fmt.Errorf("%w: %q", ErrUnknownQuoting, name)
}

// CSVOptions configures delimited-text output.
type CSVOptions struct {
	Delimiter rune // default ','
	Quote     rune // default '"'
	Escape    rune // used only with QuoteNone
	Quoting   Quoting
	UseCRLF   bool
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}

// WriteCSV writes rows as delimited text.
func WriteCSV(w io.Writer, rows []Row, opts CSVOptions) error {
	opts = opts.withDefaults()

	if opts.Quoting == QuoteMinimal && opts.Quote == '"' {
		cw := csv.NewWriter(w)
		cw.Comma = opts.Delimiter
		cw.UseCRLF = opts.UseCRLF
		record := make([]string, 0, 16)
		for _, row := range rows {
			record = record[:0]
			for _, cell := range row {
				record = append(record, FormatCell(cell))
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	}

	return (&delimitedWriter{w: bufio.NewWriter(w), opts: opts}).writeAll(rows)
}

// delimitedWriter handles the quoting styles encoding/csv does not offer.
type delimitedWriter struct {
	w    *bufio.Writer
	opts CSVOptions
}

func (d *delimitedWriter) writeAll(rows []Row) error {
	eol := "\n"
	if d.opts.UseCRLF {
		eol = "\r\n"
	}
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				d.w.WriteRune(d.opts.Delimiter)
			}
			if err := d.writeField(cell); err != nil {
				return err
			}
		}
		d.w.WriteString(eol)
	}
	return d.w.Flush()
}

func (d *delimitedWriter) special(s string) bool {
	return strings.ContainsRune(s, d.opts.Delimiter) ||
		strings.ContainsRune(s, d.opts.Quote) ||
		strings.ContainsAny(s, "\r\n")
}

func (d *delimitedWriter) writeField(cell any) error {
	s := FormatCell(cell)

	quote := false
	switch d.opts.Quoting {
	case QuoteAll:
		quote = true
	case QuoteNonNumeric:
		quote = !isNumeric(cell)
	case QuoteMinimal:
		quote = d.special(s)
	case QuoteNone:
		return d.writeEscaped(s)
	}

	if !quote {
		d.w.WriteString(s)
		return nil
	}
	q := string(d.opts.Quote)
	d.w.WriteString(q)
	d.w.WriteString(strings.ReplaceAll(s, q, q+q))
	d.w.WriteString(q)
	return nil
}

func (d *delimitedWriter) writeEscaped(s string) error {
	if !d.special(s) {
		d.w.WriteString(s)
		return nil
	}
	if d.opts.Escape == 0 {
		return fmt.Errorf("%w: %q", ErrNeedsEscape, s)
	}
	for _, r := range s {
		if r == d.opts.Delimiter || r == d.opts.Quote || r == d.opts.Escape || r == '\r' || r == '\n' {
			d.w.WriteRune(d.opts.Escape)
		}
		d.w.WriteRune(r)
	}
	return nil
}

// SeriesToCSV flattens series and writes it to path.
func SeriesToCSV(path string, series model.ModelListSeries, opts Options, csvOpts CSVOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, SeriesToTable(series, opts), csvOpts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
