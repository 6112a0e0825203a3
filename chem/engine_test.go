package chem

import (
	"math"
	"testing"

	"github.com/watermodel/msx/mathexpr"
	"github.com/watermodel/msx/odesolve"
)

// constResolver resolves every variable to a fixed table, used by tests
// that don't need terms/parameters/hydraulics.
type constResolver []float64

func (r constResolver) Resolve(slot int) (float64, error) { return r[slot], nil }

func compile(t *testing.T, src string, vars map[string]int) *mathexpr.Expr {
	t.Helper()
	e, err := mathexpr.Compile(src, func(name string) (int, bool) {
		i, ok := vars[name]
		return i, ok
	})
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return e
}

// TestFirstOrderDecay checks a single bulk rate species dC/dt = -k*C
// decays to the analytic solution over one reaction step.
func TestFirstOrderDecay(t *testing.T) {
	vars := map[string]int{"C": 0, "K": 1}
	rate := compile(t, "-K*C", vars)

	specs := []SpeciesSpec{{Bulk: true, PipeKind: Rate, PipeExpr: rate}}
	e := NewEngine(specs, odesolve.RK5, CouplingNone)

	k := 0.5
	c := []float64{1.0}
	rtol := []float64{1e-8}
	atol := []float64{1e-10}
	rf := func(cur []float64) mathexpr.Resolver {
		return constResolver{cur[0], k}
	}

	dt := 1.0
	if err := e.ReactPipe(dt, c, rtol, atol, rf); err != nil {
		t.Fatal(err)
	}
	want := math.Exp(-k * dt)
	if math.Abs(c[0]-want) > 1e-5 {
		t.Errorf("C = %v, want %v", c[0], want)
	}
}

// TestEquilibriumSpecies checks a species held at equilibrium C - K = 0
// tracks a rate species K that itself decays.
func TestEquilibriumSpecies(t *testing.T) {
	vars := map[string]int{"K": 0, "EQ": 1}
	rateExpr := compile(t, "-0.1*K", vars)
	equilExpr := compile(t, "EQ-K", vars)

	specs := []SpeciesSpec{
		{Bulk: true, PipeKind: Rate, PipeExpr: rateExpr},
		{Bulk: true, PipeKind: Equil, PipeExpr: equilExpr},
	}
	e := NewEngine(specs, odesolve.RK5, CouplingFull)

	c := []float64{2.0, 2.0}
	rtol := []float64{1e-8, 1e-8}
	atol := []float64{1e-10, 1e-10}
	rf := func(cur []float64) mathexpr.Resolver {
		return constResolver{cur[0], cur[1]}
	}

	if err := e.ReactPipe(1.0, c, rtol, atol, rf); err != nil {
		t.Fatal(err)
	}
	if math.Abs(c[1]-c[0]) > 1e-6 {
		t.Errorf("equilibrium species C[1]=%v did not track rate species C[0]=%v", c[1], c[0])
	}
}
