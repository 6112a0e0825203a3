package msx

import (
	"strings"
	"testing"

	"github.com/watermodel/msx/odesolve"
)

func newTopologyNetwork() *Network {
	net := &Network{
		Nodes: []*Node{{ID: "A", Index: 0, TankIdx: -1}, {ID: "B", Index: 1, TankIdx: -1}},
		Links: []*Link{{ID: "L1", Index: 0, N1: 0, N2: 1}},
	}
	net.buildIndexes()
	return net
}

const chemFixture = `
[TITLE]
test network

[SPECIES]
CL MG 0.01 0.001

[COEFFICIENTS]
CONSTANT K0 0.5

[TERMS]
T1 K0 * CL

[PIPES]
RATE CL -T1

[SOURCES]
A CL MASS 10.0

[QUALITY]
A CL 2.0

[OPTIONS]
TIMESTEP 600
SOLVER ROS2
COUPLING FULL
RTOL 0.0001
ATOL 0.001
`

func TestParseChemistryEndToEnd(t *testing.T) {
	net := newTopologyNetwork()
	opts, err := ParseChemistry(strings.NewReader(chemFixture), net)
	if err != nil {
		t.Fatalf("ParseChemistry failed: %v", err)
	}

	if opts.Timestep != 600 {
		t.Errorf("Timestep = %v, want 600", opts.Timestep)
	}
	if opts.Solver != odesolve.ROS2 {
		t.Errorf("Solver = %v, want ROS2", opts.Solver)
	}
	if opts.RTol != 0.0001 || opts.ATol != 0.001 {
		t.Errorf("RTol/ATol = %v/%v, want 0.0001/0.001", opts.RTol, opts.ATol)
	}

	if len(net.Species) != 1 || net.Species[0].ID != "CL" {
		t.Fatalf("expected one species CL, got %+v", net.Species)
	}
	sp := net.Species[0]
	if sp.PipeExprKind != ExprRate || sp.PipeExpr == nil {
		t.Fatalf("CL should have a compiled pipe RATE expression, got kind %v expr %v", sp.PipeExprKind, sp.PipeExpr)
	}
	// CL is only ever reacted in the pipe zone, never in a tank, so its
	// kind must be inferred as Wall rather than the default Bulk.
	if sp.Kind != Wall {
		t.Errorf("CL kind = %v, want Wall (referenced only by PIPES)", sp.Kind)
	}

	if len(net.Constants) != 1 || net.Constants[0].ID != "K0" || net.Constants[0].Value != 0.5 {
		t.Fatalf("expected constant K0=0.5, got %+v", net.Constants)
	}
	if len(net.Terms) != 1 || net.Terms[0].Expr == nil {
		t.Fatalf("expected one compiled term, got %+v", net.Terms)
	}

	nodeA := net.Nodes[0]
	if len(nodeA.Sources) != 1 || nodeA.Sources[0].Kind != SourceMassBooster || nodeA.Sources[0].Base != 10.0 {
		t.Fatalf("expected a mass-booster source of 10.0 on node A, got %+v", nodeA.Sources)
	}
	if nodeA.C0[0] != 2.0 {
		t.Fatalf("expected initial quality 2.0 on node A, got %v", nodeA.C0[0])
	}

	// Finalize runs as part of ParseChemistry; the runtime lookup tables
	// must be rebuilt and usable afterward.
	if i, ok := net.NodeByID("B"); !ok || i != 1 {
		t.Fatalf("NodeByID(B) after parse = (%d, %v), want (1, true)", i, ok)
	}
}

func TestParseChemistryRejectsUndefinedReference(t *testing.T) {
	net := newTopologyNetwork()
	bad := `
[SPECIES]
CL MG

[PIPES]
RATE UNKNOWN -1.0
`
	if _, err := ParseChemistry(strings.NewReader(bad), net); err == nil {
		t.Fatalf("expected an error for a RATE expression on an undefined species")
	}
}

func TestParseChemistryRejectsEquilInPipeZone(t *testing.T) {
	net := newTopologyNetwork()
	bad := `
[SPECIES]
CL MG

[PIPES]
EQUIL CL 0
`
	_, err := ParseChemistry(strings.NewReader(bad), net)
	if err == nil {
		t.Fatalf("expected an error for EQUIL in the pipe zone")
	}
	e, ok := err.(*Error)
	if !ok || e.Code != ErrIllegalMathExpr {
		t.Fatalf("expected ErrIllegalMathExpr, got %v", err)
	}
}

func TestParseChemistryTankMixing(t *testing.T) {
	net := &Network{
		Nodes: []*Node{{ID: "A", Index: 0, TankIdx: -1}, {ID: "T1", Index: 1, TankIdx: -1}},
		Links: []*Link{{ID: "L1", Index: 0, N1: 0, N2: 1}},
	}
	net.buildIndexes()

	fixture := `
[SPECIES]
CL MG

[TANKS]
RATE CL -CL
T1 100.0 500.0 MIXED
`
	if _, err := ParseChemistry(strings.NewReader(fixture), net); err != nil {
		t.Fatalf("ParseChemistry failed: %v", err)
	}
	if len(net.Tanks) != 1 {
		t.Fatalf("expected one tank, got %d", len(net.Tanks))
	}
	// CL is reacted in the tank zone, so it must be inferred as Bulk even
	// though it happens to carry the same zero value as the default.
	if net.Species[0].Kind != Bulk {
		t.Errorf("CL kind = %v, want Bulk (referenced by TANKS)", net.Species[0].Kind)
	}
	tk := net.Tanks[0]
	if tk.V0 != 500.0 || tk.Mixing != MixComplete {
		t.Fatalf("tank = %+v, want V0=500 Mixing=MixComplete", tk)
	}
	if !net.Nodes[1].IsTank() {
		t.Fatalf("node T1 should be marked as a tank")
	}
}
