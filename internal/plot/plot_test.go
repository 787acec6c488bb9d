package plot

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
	"github.com/nvandessel/macrosim/internal/simulation"
)

func twoTowns(t *testing.T) model.ModelListSeries {
	t.Helper()
	to, freq := 30, 10
	town := func(name string, s float64) *model.Model {
		return model.New(&model.Group{
			Name:         model.StringPtr(name),
			Compartments: ordered.Of(ordered.E("S", s), ordered.E("I", 10.0), ordered.E("R", 0.0)),
			Transitions:  ordered.Of(ordered.E("S_I", 0.3), ordered.E("I_R", 0.1)),
			Parameters:   &model.Overrides{To: &to, RecordFrequency: &freq},
		})
	}
	series, err := simulation.Simulate(t.Context(), model.ModelList{town("a", 990), town("b", 490)})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	return series
}

func TestCollect(t *testing.T) {
	series := twoTowns(t)

	tests := []struct {
		name      string
		opts      Options
		wantNames []string
		wantFirst float64 // first value of the first line
	}{
		{"all compartments summed", Options{Model: -1}, []string{"S", "I", "R"}, 1480},
		{"with population", Options{Model: -1, Population: true}, []string{"N", "S", "I", "R"}, 1500},
		{"filtered", Options{Model: -1, Compartments: []string{"I"}}, []string{"I"}, 20},
		{"single model", Options{Model: 1}, []string{"S", "I", "R"}, 490},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := Collect(series, tt.opts)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if got := lines.Totals.Keys(); !slices.Equal(got, tt.wantNames) {
				t.Errorf("names = %v, want %v", got, tt.wantNames)
			}
			if want := []float64{0, 10, 20, 30}; !slices.Equal(lines.Iterations, want) {
				t.Errorf("iterations = %v, want %v", lines.Iterations, want)
			}
			first, _ := lines.Totals.Get(tt.wantNames[0])
			if len(first) != len(series) {
				t.Fatalf("line length = %d, want %d", len(first), len(series))
			}
			if first[0] != tt.wantFirst {
				t.Errorf("first value = %v, want %v", first[0], tt.wantFirst)
			}
		})
	}
}

func TestCollect_ModelOutOfRange(t *testing.T) {
	if _, err := Collect(twoTowns(t), Options{Model: 5}); err == nil {
		t.Error("expected error for model out of range")
	}
}

func TestRender_PNG(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, twoTowns(t), Options{Title: "towns", Model: -1, Width: 640, Height: 320}, false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 320 {
		t.Errorf("size = %dx%d, want 640x320", b.Dx(), b.Dy())
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	series := twoTowns(t)

	svgPath := filepath.Join(dir, "chart.svg")
	if err := WriteFile(svgPath, series, Options{Model: -1}); err != nil {
		t.Fatalf("WriteFile(svg) error = %v", err)
	}
	data, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("svg output missing <svg element")
	}

	pngPath := filepath.Join(dir, "chart.png")
	if err := WriteFile(pngPath, series, Options{Model: -1}); err != nil {
		t.Fatalf("WriteFile(png) error = %v", err)
	}
	data, err = os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("png output missing signature")
	}
}

func TestChart_Errors(t *testing.T) {
	series := twoTowns(t)

	if _, err := Chart(series[:1], Options{Model: -1}); !errors.Is(err, ErrTooFewSnapshots) {
		t.Errorf("Chart(one snapshot) error = %v, want ErrTooFewSnapshots", err)
	}
	if _, err := Chart(series, Options{Model: -1, Compartments: []string{"Z"}}); err == nil {
		t.Error("expected error when no compartment matches")
	}

	path := filepath.Join(t.TempDir(), "bad.png")
	if err := WriteFile(path, series[:1], Options{Model: -1}); err == nil {
		t.Error("expected WriteFile error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed render should not leave a file behind")
	}
}
