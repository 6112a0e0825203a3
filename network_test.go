package msx

import "testing"

func TestPatternAtWraps(t *testing.T) {
	p := &Pattern{ID: "P1", Mult: []float64{1, 2, 3}}
	cases := []struct {
		idx  int
		want float64
	}{
		{0, 1}, {1, 2}, {2, 3}, {3, 1}, {5, 3},
	}
	for _, c := range cases {
		if got := p.At(c.idx); got != c.want {
			t.Errorf("At(%d) = %v, want %v", c.idx, got, c.want)
		}
	}
}

func TestPatternAtEmptyReturnsOne(t *testing.T) {
	p := &Pattern{ID: "P1"}
	if got := p.At(7); got != 1 {
		t.Errorf("At on empty pattern = %v, want 1", got)
	}
}

func TestSourceStrength(t *testing.T) {
	src := &Source{Kind: SourceMassBooster, Species: 0, Base: 2.0, Pattern: &Pattern{Mult: []float64{1, 0.5}}}
	if got := src.Strength(0); got != 2.0 {
		t.Errorf("Strength(0) = %v, want 2.0", got)
	}
	if got := src.Strength(1); got != 1.0 {
		t.Errorf("Strength(1) = %v, want 1.0", got)
	}
}

func TestLinkVolume(t *testing.T) {
	l := &Link{Diameter: 1.0, Length: 100}
	got := l.Volume()
	want := piOver4 * 1.0 * 1.0 * 100
	if got != want {
		t.Errorf("Volume() = %v, want %v", got, want)
	}
}

func buildSimpleNetwork() *Network {
	net := &Network{
		Nodes: []*Node{
			{ID: "A", Index: 0},
			{ID: "B", Index: 1},
			{ID: "C", Index: 2},
		},
		Links: []*Link{
			{ID: "L1", Index: 0, N1: 0, N2: 1},
			{ID: "L2", Index: 1, N1: 1, N2: 2},
		},
		Tanks: []*Tank{
			{Node: 2},
		},
	}
	return net
}

func TestFinalizeSetsTankIdx(t *testing.T) {
	net := buildSimpleNetwork()
	net.Finalize()

	if net.Nodes[0].IsTank() {
		t.Errorf("node A should not be a tank")
	}
	if net.Nodes[1].IsTank() {
		t.Errorf("node B should not be a tank")
	}
	if !net.Nodes[2].IsTank() {
		t.Errorf("node C should be a tank")
	}
	if net.Nodes[2].TankIdx != 0 {
		t.Errorf("node C TankIdx = %d, want 0", net.Nodes[2].TankIdx)
	}
}

func TestFinalizeBuildsIndexesAndLinkLists(t *testing.T) {
	net := buildSimpleNetwork()
	net.Finalize()

	if i, ok := net.NodeByID("B"); !ok || i != 1 {
		t.Errorf("NodeByID(B) = (%d, %v), want (1, true)", i, ok)
	}
	if i, ok := net.LinkByID("L2"); !ok || i != 1 {
		t.Errorf("LinkByID(L2) = (%d, %v), want (1, true)", i, ok)
	}
	if _, ok := net.NodeByID("nope"); ok {
		t.Errorf("NodeByID(nope) should not be found")
	}

	if len(net.Nodes[1].inLinks) != 1 || net.Nodes[1].inLinks[0] != 0 {
		t.Errorf("node B inLinks = %v, want [0]", net.Nodes[1].inLinks)
	}
	if len(net.Nodes[1].outLinks) != 1 || net.Nodes[1].outLinks[0] != 1 {
		t.Errorf("node B outLinks = %v, want [1]", net.Nodes[1].outLinks)
	}
}
