package table

import (
	"slices"
	"testing"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
)

func sir(s, i, r float64) *ordered.Map[float64] {
	return ordered.Of(ordered.E("S", s), ordered.E("I", i), ordered.E("R", r))
}

func stamped(g *model.Group, iteration int) *model.Model {
	m := model.New(g)
	m.SetIteration(iteration)
	return m
}

func complicated() *model.Group {
	return &model.Group{
		Name: model.StringPtr("Van Wyks Dorp"),
		Groups: []*model.Group{{
			Transitions: ordered.Of(ordered.E("I_R", 0.1)),
			Groups: []*model.Group{
				{
					Name: model.StringPtr("Male"),
					Groups: []*model.Group{
						{Name: model.StringPtr("0-50"), Compartments: sir(290, 1, 0)},
						{Name: model.StringPtr("50-100"), Compartments: sir(200, 0, 0)},
					},
				},
				{
					Name: model.StringPtr("Female"),
					Groups: []*model.Group{
						{Name: model.StringPtr("0-50"), Compartments: sir(310, 0, 0)},
						{Name: model.StringPtr("50-100"), Compartments: sir(290, 0, 0)},
					},
				},
			},
		}},
	}
}

func TestHeader(t *testing.T) {
	sep := "|"
	tests := []struct {
		name string
		m    *model.Model
		opts Options
		want []string
	}{
		{
			name: "simple",
			m:    stamped(&model.Group{Name: model.StringPtr("Simple model"), Compartments: sir(1, 0, 0)}, 350),
			want: []string{"iter", "name_0", "S", "I", "R"},
		},
		{
			name: "three named levels",
			m:    stamped(complicated(), 350),
			want: []string{"iter", "name_0", "name_1", "name_2", "S", "I", "R"},
		},
		{
			name: "concatenated names",
			m:    stamped(complicated(), 350),
			opts: Options{ConcatNames: &sep},
			want: []string{"iter", "name", "S", "I", "R"},
		},
		{
			name: "with ident",
			m: func() *model.Model {
				m := stamped(complicated(), 0)
				m.SetIdent(4)
				return m
			}(),
			want: []string{"ident", "iter", "name_0", "name_1", "name_2", "S", "I", "R"},
		},
		{
			name: "unstamped and unnamed",
			m:    model.New(&model.Group{Compartments: sir(1, 0, 0)}),
			want: []string{"S", "I", "R"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Header(tt.m, tt.opts); !slices.Equal(got, tt.want) {
				t.Errorf("Header() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeader_WidestBranchWins(t *testing.T) {
	m := stamped(&model.Group{
		Name: model.StringPtr("root"),
		Groups: []*model.Group{
			{Name: model.StringPtr("small"), Compartments: ordered.Of(ordered.E("S", 1.0))},
			{Name: model.StringPtr("big"), Compartments: sir(1, 2, 3)},
		},
	}, 0)

	want := []string{"iter", "name_0", "name_1", "S", "I", "R"}
	if got := Header(m, Options{}); !slices.Equal(got, want) {
		t.Errorf("Header() = %v, want %v", got, want)
	}
}

func TestModelToTable_PadsShallowBranches(t *testing.T) {
	rows := ModelToTable(stamped(complicated(), 350), Options{})

	want := []Row{
		{350, "Van Wyks Dorp", "Male", "0-50", 290.0, 1.0, 0.0},
		{350, "Van Wyks Dorp", "Male", "50-100", 200.0, 0.0, 0.0},
		{350, "Van Wyks Dorp", "Female", "0-50", 310.0, 0.0, 0.0},
		{350, "Van Wyks Dorp", "Female", "50-100", 290.0, 0.0, 0.0},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if !slices.Equal(rows[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestModelToTable_PadsFromPreviousBranch(t *testing.T) {
	leaf := func(name string) *model.Group {
		return &model.Group{Name: model.StringPtr(name), Compartments: ordered.Of(ordered.E("S", 1.0))}
	}
	m := stamped(&model.Group{
		Name: model.StringPtr("root"),
		Groups: []*model.Group{
			{Name: model.StringPtr("A"), Groups: []*model.Group{leaf("a1"), leaf("a2")}},
			{Name: model.StringPtr("B"), Groups: []*model.Group{leaf("b1"), leaf("b2")}},
			{Name: model.StringPtr("C"), Groups: []*model.Group{leaf("c1")}},
		},
	}, 7)

	want := []Row{
		{7, "root", "A", "a1", 1.0},
		{7, "root", "A", "a2", 1.0},
		{7, "root", "B", "b1", 1.0},
		{7, "root", "B", "b2", 1.0},
		{7, "root", "C", "c1", 1.0},
	}
	rows := ModelToTable(m, Options{})
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if !slices.Equal(rows[i], want[i]) {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestModelToTable_ConcatNames(t *testing.T) {
	sep := "|"
	rows := ModelToTable(stamped(complicated(), 0), Options{ConcatNames: &sep})

	if len(rows[0]) != 5 {
		t.Fatalf("row width = %d, want 5", len(rows[0]))
	}
	if rows[3][1] != "Van Wyks Dorp|Female|50-100" {
		t.Errorf("name = %v, want Van Wyks Dorp|Female|50-100", rows[3][1])
	}
}

func TestModelToTable_DoesNotMutate(t *testing.T) {
	m := stamped(complicated(), 10)
	before := m.Clone()
	_ = ModelToTable(m, Options{})
	_ = Header(m, Options{})

	if *m.Iteration != *before.Iteration {
		t.Error("iteration changed")
	}
	for g := range model.Traverse(m.Group) {
		if g.Name != nil && *g.Name == "" {
			t.Error("group name cleared")
		}
	}
}

func TestModelListToTable(t *testing.T) {
	a := stamped(&model.Group{Name: model.StringPtr("A"), Compartments: sir(1, 0, 0)}, 5)
	b := stamped(&model.Group{Name: model.StringPtr("B"), Compartments: sir(2, 0, 0)}, 5)

	rows := ModelListToTable(model.ModelList{a, b}, Options{Header: true})
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "iter" {
		t.Errorf("first row should be the header, got %v", rows[0])
	}
	if rows[2][1] != "B" {
		t.Errorf("second model row name = %v, want B", rows[2][1])
	}
}

func TestSeriesToTable(t *testing.T) {
	series := model.ModelListSeries{
		{stamped(&model.Group{Name: model.StringPtr("A"), Compartments: sir(10, 1, 0)}, 0)},
		{stamped(&model.Group{Name: model.StringPtr("A"), Compartments: sir(9, 1, 1)}, 50)},
	}

	rows := SeriesToTable(series, Options{Header: true})
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (one header)", len(rows))
	}
	if rows[1][0] != 0 || rows[2][0] != 50 {
		t.Errorf("iterations = %v, %v; want 0, 50", rows[1][0], rows[2][0])
	}

	if got := SeriesToTable(nil, Options{Header: true}); len(got) != 0 {
		t.Errorf("empty series gave %d rows", len(got))
	}
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{350, "350"},
		{"Van Wyks Dorp", "Van Wyks Dorp"},
		{65525.67886409864, "65525.67886409864"},
		{7.38650518227673e-07, "7.38650518227673e-07"},
		{56934475.32113517, "56934475.32113517"},
		{57000000.0, "57000000.0"},
		{0.0, "0.0"},
		{0.0001, "0.0001"},
		{1e16, "1e+16"},
		{-2.5, "-2.5"},
	}
	for _, tt := range tests {
		if got := FormatCell(tt.in); got != tt.want {
			t.Errorf("FormatCell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
