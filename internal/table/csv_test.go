package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
	"github.com/nvandessel/macrosim/internal/simulation"
)

func TestSeriesToCSV_RoundTrip(t *testing.T) {
	m := model.New(&model.Group{
		Name:         model.StringPtr("Simple model"),
		Compartments: sir(57000000, 1, 0),
		Transitions:  ordered.Of(ordered.E("S_I", 0.6), ordered.E("I_R", 0.1)),
	})
	series, err := simulation.Simulate(t.Context(), model.ModelList{m})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := SeriesToCSV(path, series, Options{Header: true}, CSVOptions{}); err != nil {
		t.Fatalf("SeriesToCSV() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	rows := SeriesToTable(series, Options{Header: true})
	if len(records) != len(rows) {
		t.Fatalf("csv has %d records, table has %d rows", len(records), len(rows))
	}
	for i, row := range rows {
		for j, cell := range row {
			if records[i][j] != FormatCell(cell) {
				t.Errorf("record %d field %d = %q, want %q", i, j, records[i][j], FormatCell(cell))
			}
		}
	}
	if records[0][0] != "iter" || records[len(records)-1][0] != "365" {
		t.Errorf("unexpected first/last records: %v / %v", records[0], records[len(records)-1])
	}
}

func TestWriteCSV_Quoting(t *testing.T) {
	rows := []Row{
		{"iter", "name", "S"},
		{50, "a,b", 1.5},
		{51, `say "hi"`, 2.0},
	}

	tests := []struct {
		name string
		opts CSVOptions
		want string
	}{
		{
			name: "minimal",
			opts: CSVOptions{},
			want: "iter,name,S\n50,\"a,b\",1.5\n51,\"say \"\"hi\"\"\",2.0\n",
		},
		{
			name: "all",
			opts: CSVOptions{Quoting: QuoteAll},
			want: "\"iter\",\"name\",\"S\"\n\"50\",\"a,b\",\"1.5\"\n\"51\",\"say \"\"hi\"\"\",\"2.0\"\n",
		},
		{
			name: "non numeric",
			opts: CSVOptions{Quoting: QuoteNonNumeric},
			want: "\"iter\",\"name\",\"S\"\n50,\"a,b\",1.5\n51,\"say \"\"hi\"\"\",2.0\n",
		},
		{
			name: "none with escape",
			opts: CSVOptions{Quoting: QuoteNone, Escape: '\\'},
			want: "iter,name,S\n50,a\\,b,1.5\n51,say \\\"hi\\\",2.0\n",
		},
		{
			name: "semicolon minimal",
			opts: CSVOptions{Delimiter: ';'},
			want: "iter;name;S\n50;a,b;1.5\n51;\"say \"\"hi\"\"\";2.0\n",
		},
		{
			name: "single quote minimal",
			opts: CSVOptions{Quote: '\''},
			want: "iter,name,S\n50,'a,b',1.5\n51,say \"hi\",2.0\n",
		},
		{
			name: "crlf",
			opts: CSVOptions{Quoting: QuoteAll, UseCRLF: true},
			want: "\"iter\",\"name\",\"S\"\r\n\"50\",\"a,b\",\"1.5\"\r\n\"51\",\"say \"\"hi\"\"\",\"2.0\"\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteCSV(&buf, rows, tt.opts); err != nil {
				t.Fatalf("WriteCSV() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("WriteCSV() =\n%q\nwant\n%q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriteCSV_QuoteNoneWithoutEscape(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Row{{"a,b"}}, CSVOptions{Quoting: QuoteNone})
	if !errors.Is(err, ErrNeedsEscape) {
		t.Errorf("WriteCSV() error = %v, want ErrNeedsEscape", err)
	}
}

func TestParseQuoting(t *testing.T) {
	tests := []struct {
		name    string
		want    Quoting
		wantErr bool
	}{
		{"", QuoteMinimal, false},
		{"minimal", QuoteMinimal, false},
		{"ALL", QuoteAll, false},
		{"nonnumeric", QuoteNonNumeric, false},
		{"none", QuoteNone, false},
		{"sometimes", QuoteMinimal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuoting(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuoting(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownQuoting) {
				t.Errorf("error = %v, want ErrUnknownQuoting", err)
			}
			if got != tt.want {
				t.Errorf("ParseQuoting(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
