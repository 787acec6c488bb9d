package rules

import (
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/macrosim/internal/ordered"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Key
		wantErr bool
	}{
		{"simple", "S_I", Key{"S", "I"}, false},
		{"multi-letter", "Im_Ic", Key{"Im", "Ic"}, false},
		{"numbered", "S_I1", Key{"S", "I1"}, false},
		{"no separator", "SI", Key{}, true},
		{"two separators", "S_I_R", Key{}, true},
		{"empty from", "_I", Key{}, true},
		{"empty to", "S_", Key{}, true},
		{"empty", "", Key{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedTransitionKey) {
					t.Errorf("ParseKey(%q) error = %v, want ErrMalformedTransitionKey", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func sirInput(key string, coeff float64) Input {
	k, _ := ParseKey(key)
	return Input{
		Key:          k,
		Coefficient:  coeff,
		Compartments: ordered.Of(ordered.E("S", 900.0), ordered.E("I", 100.0), ordered.E("R", 0.0)),
		Totals: ordered.Of(
			ordered.E("N", 2000.0),
			ordered.E("S", 1800.0),
			ordered.E("I", 200.0),
			ordered.E("R", 0.0),
		),
		Infectiousness: func() float64 { return 500 },
	}
}

func TestBuiltinRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		key  string
		want float64
	}{
		{"mass action uses model total of destination", MassAction{}, "S_I", 0.5 * 900 * 200 / 2000},
		{"proportional uses source", Proportional{}, "I_R", 0.5 * 100},
		{"birth uses destination", Birth{}, "I_S", 0.5 * 900},
		{"force of infection uses weighted sum", ForceOfInfection{}, "S_I", 0.5 * 900 * 500 / 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Delta(sirInput(tt.key, 0.5))
			if err != nil {
				t.Fatalf("Delta: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZeroPopulation(t *testing.T) {
	for _, r := range []Rule{MassAction{}, ForceOfInfection{}} {
		t.Run(r.Name(), func(t *testing.T) {
			in := sirInput("S_I", 0.3)
			in.Totals.Set("N", 0)
			_, err := r.Delta(in)
			if !errors.Is(err, ErrZeroPopulation) {
				t.Errorf("Delta error = %v, want ErrZeroPopulation", err)
			}
		})
	}

	// Proportional flows do not divide by N.
	in := sirInput("I_R", 0.1)
	in.Totals.Set("N", 0)
	if _, err := (Proportional{}).Delta(in); err != nil {
		t.Errorf("Proportional with N=0: %v", err)
	}
}

func TestUnknownCompartment(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		key  string
	}{
		{"proportional missing source", Proportional{}, "E_I"},
		{"birth missing destination", Birth{}, "B_X"},
		{"mass action missing total", MassAction{}, "S_E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rule.Delta(sirInput(tt.key, 0.1))
			if !errors.Is(err, ErrUnknownCompartment) {
				t.Errorf("Delta error = %v, want ErrUnknownCompartment", err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		r, ok := ByName(name)
		if !ok {
			t.Fatalf("ByName(%q) not found", name)
		}
		if r.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, r.Name())
		}
	}
	if _, ok := ByName("nope"); ok {
		t.Error("ByName(nope) should fail")
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if _, ok := d[DefaultKey].(Proportional); !ok {
		t.Errorf("default rule = %T, want Proportional", d[DefaultKey])
	}
	if _, ok := d["S_I"].(MassAction); !ok {
		t.Errorf("S_I rule = %T, want MassAction", d["S_I"])
	}
	if _, ok := d["B_S"].(Birth); !ok {
		t.Errorf("B_S rule = %T, want Birth", d["B_S"])
	}

	// Each call is independent.
	d["S_I"] = Proportional{}
	if _, ok := Defaults()["S_I"].(MassAction); !ok {
		t.Error("mutating one Defaults() table leaked into the next")
	}
}
