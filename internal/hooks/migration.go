package hooks

import (
	"math/rand/v2"
	"strings"

	"github.com/nvandessel/macrosim/internal/aggregate"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
)

const (
	// MigrationRateKey is the parameter holding the fraction moved per run.
	MigrationRateKey = "migration_rate"
	// DefaultMigrationRate applies when MigrationRateKey is unset.
	DefaultMigrationRate = 0.01
	// MigrationRatesKey holds per-pair rates as a nested map from model
	// name to model name to rate. Either order of the pair matches.
	MigrationRatesKey = "migration_rates"
)

// Migration moves individuals between the models of a list. For every pair
// of models, every pair of leaf groups with the same name path and every
// living compartment the two leaves share, it moves migration_rate times
// the smaller of the two counts. A pair listed under migration_rates uses its
// own rate instead. With noise set, every move is scaled by a uniform factor
// in [1-noise, 1+noise]. On even iterations individuals move from the
// earlier model in the list to the later one, on odd iterations back.
//
// Attach it to a single model of the list; every attached model runs a full
// exchange.
type Migration struct{}

func (Migration) Name() string { return "migrate" }

type move struct {
	from, to *model.Group
	key      string
	amount   float64
}

func (Migration) Run(m *model.Model, siblings model.ModelList) error {
	rate := DefaultMigrationRate
	var pairs map[string]any
	jitter := func() float64 { return 1 }
	if p := m.Parameters; p != nil {
		rate = p.Float(MigrationRateKey, DefaultMigrationRate)
		pairs, _ = p.Extra[MigrationRatesKey].(map[string]any)
		if p.Noise != 0 {
			rng := migrationSource(m)
			lo, hi := 1-p.Noise, 1+p.Noise
			jitter = func() float64 { return lo + (hi-lo)*rng.Float64() }
		}
	}
	forward := m.IterationOr(0)%2 == 0

	leaves := make([]*ordered.Map[*model.Group], len(siblings))
	for i, s := range siblings {
		leaves[i] = leafPaths(s.Group)
	}

	var moves []move
	for a := range siblings {
		for b := a + 1; b < len(siblings); b++ {
			r := pairRate(pairs, siblings[a].Label(), siblings[b].Label(), rate)
			for path, ga := range leaves[a].All() {
				gb, ok := leaves[b].Get(path)
				if !ok {
					continue
				}
				for key, va := range ga.Compartments.All() {
					if strings.HasPrefix(key, aggregate.DeadPrefix) {
						continue
					}
					vb, ok := gb.Compartments.Get(key)
					if !ok {
						continue
					}
					mv := move{from: ga, to: gb, key: key, amount: r * min(va, vb) * jitter()}
					if !forward {
						mv.from, mv.to = gb, ga
					}
					moves = append(moves, mv)
				}
			}
		}
	}

	for _, mv := range moves {
		from, _ := mv.from.Compartments.Get(mv.key)
		mv.from.Compartments.Set(mv.key, from-mv.amount)
		to, _ := mv.to.Compartments.Get(mv.key)
		mv.to.Compartments.Set(mv.key, to+mv.amount)
	}
	return nil
}

// migrationSource seeds the move noise from the model's seed and iteration
// so seeded runs stay reproducible.
func migrationSource(m *model.Model) *rand.Rand {
	if m.Parameters.Seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	ident := -1
	if m.Ident != nil {
		ident = *m.Ident
	}
	s2 := uint64(uint32(ident))<<32 | uint64(uint32(m.IterationOr(0)))
	return rand.New(rand.NewPCG(^*m.Parameters.Seed, s2))
}

func pairRate(pairs map[string]any, a, b string, def float64) float64 {
	for _, k := range [][2]string{{a, b}, {b, a}} {
		inner, ok := pairs[k[0]].(map[string]any)
		if !ok {
			continue
		}
		switch v := inner[k[1]].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return def
}

// leafPaths indexes the leaves below g by their slash-joined name path in
// traversal order. The root's own name is left out so models with different
// names still match.
func leafPaths(g *model.Group) *ordered.Map[*model.Group] {
	out := ordered.New[*model.Group]()
	var walk func(g *model.Group, path string)
	walk = func(g *model.Group, path string) {
		if g.IsLeaf() {
			out.Set(path, g)
			return
		}
		for _, child := range g.Groups {
			walk(child, path+"/"+child.Label())
		}
	}
	walk(g, "")
	return out
}
