package simulation

import (
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/macrosim/internal/logging"
)

// Source draws uniform variates in [0, 1).
type Source interface {
	Float64() float64
}

// SourceFactory builds the noise source for one model of a run. seed is the
// model's seed parameter (nil when unset), ident the run identifier (-1 when
// unset) and index the model's position in its list.
type SourceFactory func(seed *uint64, ident, index int) Source

// PCGSource seeds a PCG stream from the seed parameter and the run's
// position, so a seeded run is reproducible whether it runs alone or inside
// a parallel series. Without a seed the stream is drawn at random.
func PCGSource(seed *uint64, ident, index int) Source {
	var s1 uint64
	if seed != nil {
		s1 = *seed
	} else {
		s1 = rand.Uint64()
	}
	s2 := uint64(uint32(ident))<<32 | uint64(uint32(index))
	return rand.New(rand.NewPCG(s1, s2))
}

type options struct {
	ident   *int
	logger  *slog.Logger
	trace   *logging.RunTrace
	sources SourceFactory
}

// Option configures a simulation run.
type Option func(*options)

// WithIdent stamps every recorded model with a run identifier.
func WithIdent(ident int) Option {
	return func(o *options) {
		o.ident = &ident
	}
}

// WithLogger sets the operational logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTrace records run events to a JSONL trace.
func WithTrace(rt *logging.RunTrace) Option {
	return func(o *options) {
		o.trace = rt
	}
}

// WithSourceFactory replaces the noise source. Tests use it to pin the
// uniform variates.
func WithSourceFactory(f SourceFactory) Option {
	return func(o *options) {
		if f != nil {
			o.sources = f
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  logging.Discard(),
		sources: PCGSource,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
