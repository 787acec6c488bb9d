// Package table flattens model trees into rows: one row per leaf group,
// carrying the run identifier, iteration and ancestor names before the
// leaf's compartment values.
package table

import (
	"slices"
	"strconv"
	"strings"

	"github.com/nvandessel/macrosim/internal/model"
)

// Column names that do not come from the model tree.
const (
	IdentColumn     = "ident"
	IterationColumn = "iter"
	NameColumn      = "name"
	namePrefix      = "name_"
)

// Options controls flattening.
type Options struct {
	// Header prepends a header row.
	Header bool
	// ConcatNames joins the ancestor names into a single "name" column
	// with this separator. Nil gives one column per named level.
	ConcatNames *string
}

// Row is one table row. Cells are int (ident, iteration), string (names)
// or float64 (compartments); header rows hold strings only.
type Row []any

// branch is the flattened context of one leaf.
type branch struct {
	idents    []any
	identCols []string
	names     []string
	leaf      *model.Group
}

// branches walks m in pre-order and returns one branch per leaf. A leaf
// whose context is shallower than the previous leaf's inherits the leading
// entries it lacks from that leaf's padded context, so rows stay aligned
// when sibling branches have different depths.
func branches(m *model.Model) []branch {
	var (
		out                []branch
		idents, prevIdents []any
		cols, prevCols     []string
		names, prevNames   []string
	)
	for g := range model.Traverse(m.Group) {
		if g == m.Group {
			if m.Ident != nil {
				idents = append(idents, *m.Ident)
				cols = append(cols, IdentColumn)
			}
			if m.Iteration != nil {
				idents = append(idents, *m.Iteration)
				cols = append(cols, IterationColumn)
			}
		}
		if g.Name != nil {
			names = append(names, *g.Name)
		}
		if !g.IsLeaf() {
			continue
		}

		i := max(len(prevIdents)-len(idents), 0)
		j := max(len(prevNames)-len(names), 0)
		out = append(out, branch{
			idents:    concat(prevIdents[:i], idents),
			identCols: concat(prevCols[:i], cols),
			names:     concat(prevNames[:j], names),
			leaf:      g,
		})

		last := out[len(out)-1]
		prevIdents, prevCols, prevNames = last.idents, last.identCols, last.names
		idents, cols, names = nil, nil, nil
	}
	return out
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (b branch) header(concatNames *string) []string {
	h := slices.Clone(b.identCols)
	if concatNames != nil {
		h = append(h, NameColumn)
	} else {
		for i := range b.names {
			h = append(h, namePrefix+strconv.Itoa(i))
		}
	}
	return append(h, b.leaf.Compartments.Keys()...)
}

func (b branch) row(concatNames *string) Row {
	r := make(Row, 0, len(b.idents)+len(b.names)+b.leaf.Compartments.Len())
	r = append(r, b.idents...)
	if concatNames != nil {
		r = append(r, strings.Join(b.names, *concatNames))
	} else {
		for _, n := range b.names {
			r = append(r, n)
		}
	}
	for _, v := range b.leaf.Compartments.All() {
		r = append(r, v)
	}
	return r
}

// Header returns the column names for m: the widest column list over all
// of its leaves, the first one winning ties.
func Header(m *model.Model, opts Options) []string {
	var widest []string
	for _, b := range branches(m) {
		if h := b.header(opts.ConcatNames); len(h) > len(widest) {
			widest = h
		}
	}
	return widest
}

// ModelToTable returns one row per leaf of m, in traversal order.
// opts.Header is ignored; see ModelListToTable.
func ModelToTable(m *model.Model, opts Options) []Row {
	bs := branches(m)
	rows := make([]Row, 0, len(bs))
	for _, b := range bs {
		rows = append(rows, b.row(opts.ConcatNames))
	}
	return rows
}

// ModelListToTable concatenates the rows of every model in list. The
// header, when requested, is taken from the first model.
func ModelListToTable(list model.ModelList, opts Options) []Row {
	var rows []Row
	if opts.Header && len(list) > 0 {
		rows = append(rows, headerRow(Header(list[0], opts)))
	}
	for _, m := range list {
		rows = append(rows, ModelToTable(m, opts)...)
	}
	return rows
}

// SeriesToTable flattens a whole recorded series in snapshot order. The
// header, when requested, is taken from the first model of the first
// snapshot.
func SeriesToTable(series model.ModelListSeries, opts Options) []Row {
	var rows []Row
	if opts.Header && len(series) > 0 && len(series[0]) > 0 {
		rows = append(rows, headerRow(Header(series[0][0], opts)))
	}
	body := Options{ConcatNames: opts.ConcatNames}
	for _, list := range series {
		rows = append(rows, ModelListToTable(list, body)...)
	}
	return rows
}

func headerRow(h []string) Row {
	r := make(Row, len(h))
	for i, c := range h {
		r[i] = c
	}
	return r
}
