package msx

import (
	"testing"

	"github.com/watermodel/msx/chem"
	"github.com/watermodel/msx/odesolve"
)

func newTransportFixture(t *testing.T) (*Project, *segPool) {
	t.Helper()
	net := &Network{
		Nodes: []*Node{
			{ID: "A", Index: 0, TankIdx: -1, C: []float64{2}, C0: []float64{2}},
			{ID: "B", Index: 1, TankIdx: -1, C: []float64{0}, C0: []float64{0}},
		},
		Links: []*Link{
			{ID: "L1", Index: 0, N1: 0, N2: 1, Q: 10, FlowDir: 1},
		},
		Species: []*Species{{ID: "CL", Index: 0}},
	}
	net.buildIndexes()

	pool := newSegPool(1)
	net.Links[0].Segs = newSegList(pool)
	net.Links[0].Segs.PushTail(20, []float64{5})

	specs := []chem.SpeciesSpec{{Bulk: true}}
	p := &Project{
		Net:    net,
		Opts:   &Options{Timestep: 1},
		engine: chem.NewEngine(specs, odesolve.RK5, chem.CouplingNone),
	}
	return p, pool
}

func TestTransportStepAdvectsAndBlendsAtNode(t *testing.T) {
	p, _ := newTransportFixture(t)

	if err := p.transportStep(1); err != nil {
		t.Fatalf("transportStep failed: %v", err)
	}

	if got := p.Net.Nodes[1].C[0]; got != 5 {
		t.Fatalf("node B concentration = %v, want 5 (blended from the link's head segment)", got)
	}
	// Node A had no inflow this step and keeps its stored concentration.
	if got := p.Net.Nodes[0].C[0]; got != 2 {
		t.Fatalf("node A concentration = %v, want unchanged 2", got)
	}

	l := p.Net.Links[0]
	if l.Segs.Len() != 2 {
		t.Fatalf("link should now hold 2 segments (old tail shrunk, new tail pushed from A), got %d", l.Segs.Len())
	}
	if got := l.Segs.Head().c[0]; got != 5 {
		t.Fatalf("link head concentration = %v, want 5", got)
	}
	if got := l.Segs.Tail().c[0]; got != 2 {
		t.Fatalf("link tail concentration = %v, want 2 (A's release concentration)", got)
	}
	if got := l.Segs.Head().v; got != 10 {
		t.Fatalf("link head volume after a 10-volume discharge = %v, want 10", got)
	}
}

func TestTransportStepAppliesSourceWithoutMutatingStoredQuality(t *testing.T) {
	p, _ := newTransportFixture(t)
	p.Net.Nodes[0].Sources = []*Source{{Kind: SourceConcen, Species: 0, Base: 99}}

	if err := p.transportStep(1); err != nil {
		t.Fatalf("transportStep failed: %v", err)
	}

	// The source overrides what node A releases downstream...
	l := p.Net.Links[0]
	if got := l.Segs.Tail().c[0]; got != 99 {
		t.Fatalf("link tail concentration (source-fed) = %v, want 99", got)
	}
	// ...but node A's own stored concentration is untouched, so a
	// subsequent GetQual still sees the real value.
	if got := p.Net.Nodes[0].C[0]; got != 2 {
		t.Fatalf("node A stored concentration changed by source application: got %v, want 2", got)
	}
}

func TestTransportStepMixesIntoDownstreamTank(t *testing.T) {
	p, pool := newTransportFixture(t)
	p.Net.Tanks = []*Tank{{Node: 1, Mixing: MixComplete, V: 100, C: []float64{0}}}
	p.Net.Nodes[1].TankIdx = 0
	_ = pool

	if err := p.transportStep(1); err != nil {
		t.Fatalf("transportStep failed: %v", err)
	}

	tk := p.Net.Tanks[0]
	if tk.V != 110 {
		t.Fatalf("tank volume = %v, want 110 (100 + 10 inflow)", tk.V)
	}
	if got := tk.C[0]; got <= 0 {
		t.Fatalf("tank concentration should have picked up inflow quality, got %v", got)
	}
	if got := p.Net.Nodes[1].C[0]; got != tk.C[0] {
		t.Fatalf("node B concentration (%v) should mirror its tank's discharge concentration (%v)", got, tk.C[0])
	}
}
