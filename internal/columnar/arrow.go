// Package columnar writes flattened simulation tables as Apache Arrow IPC
// files and reads them back, for analysis in dataframe tools.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/table"
)

// ErrUnsupportedCell indicates a cell type with no Arrow mapping.
var ErrUnsupportedCell = errors.New("unsupported cell type")

// Schema derives an Arrow schema from a header and its rows. A column's
// type comes from the first row holding a value for it: int cells map to
// int64, strings to utf8 and everything else to float64. Every column is
// nullable because narrower branches leave trailing cells empty.
func Schema(header []string, rows []table.Row) *arrow.Schema {
	fields := make([]arrow.Field, len(header))
	for j, name := range header {
		fields[j] = arrow.Field{Name: name, Type: columnType(rows, j), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func columnType(rows []table.Row, j int) arrow.DataType {
	for _, row := range rows {
		if j >= len(row) || row[j] == nil {
			continue
		}
		switch row[j].(type) {
		case int, int64:
			return arrow.PrimitiveTypes.Int64
		case string:
			return arrow.BinaryTypes.String
		}
		return arrow.PrimitiveTypes.Float64
	}
	return arrow.PrimitiveTypes.Float64
}

// Write encodes rows as a single-record Arrow IPC file. The file footer
// is written after seeking, so w must be seekable.
func Write(w io.WriteSeeker, header []string, rows []table.Row) error {
	mem := memory.NewGoAllocator()
	schema := Schema(header, rows)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, row := range rows {
		for j := range header {
			if j >= len(row) || row[j] == nil {
				b.Field(j).AppendNull()
				continue
			}
			if err := appendCell(b.Field(j), row[j]); err != nil {
				return fmt.Errorf("row %d, column %q: %w", i, header[j], err)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finish arrow file: %w", err)
	}
	return nil
}

func appendCell(b array.Builder, v any) error {
	switch fb := b.(type) {
	case *array.Int64Builder:
		switch x := v.(type) {
		case int:
			fb.Append(int64(x))
		case int64:
			fb.Append(x)
		default:
			return fmt.Errorf("%w: %T in an integer column", ErrUnsupportedCell, v)
		}
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %T in a text column", ErrUnsupportedCell, v)
		}
		fb.Append(s)
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			fb.Append(x)
		case float32:
			fb.Append(float64(x))
		case int:
			fb.Append(float64(x))
		default:
			return fmt.Errorf("%w: %T in a number column", ErrUnsupportedCell, v)
		}
	default:
		return fmt.Errorf("%w: builder %T", ErrUnsupportedCell, b)
	}
	return nil
}

// Read decodes every record of an Arrow IPC file back into a header and
// rows. Null cells come back as nil; int64 columns come back as int.
func Read(r ipc.ReadAtSeeker) ([]string, []table.Row, error) {
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open arrow file: %w", err)
	}
	defer fr.Close()

	fields := fr.Schema().Fields()
	header := make([]string, len(fields))
	for j, f := range fields {
		header[j] = f.Name
	}

	var rows []table.Row
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		for k := 0; k < int(rec.NumRows()); k++ {
			row := make(table.Row, len(fields))
			for j := range fields {
				row[j] = cell(rec.Column(j), k)
			}
			rows = append(rows, row)
		}
	}
	return header, rows, nil
}

func cell(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch c := col.(type) {
	case *array.Int64:
		return int(c.Value(i))
	case *array.String:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	}
	return nil
}

// WriteSeries flattens series and writes it as an Arrow IPC file at path.
func WriteSeries(path string, series model.ModelListSeries, opts table.Options) error {
	if len(series) == 0 || len(series[0]) == 0 {
		return fmt.Errorf("nothing to write: series is empty")
	}
	header := table.Header(series[0][0], opts)
	rows := table.SeriesToTable(series, table.Options{ConcatNames: opts.ConcatNames})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, header, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
