package msx

import "testing"

func TestMixCompleteBlendsInflow(t *testing.T) {
	tk := &Tank{Mixing: MixComplete, V: 100, C: []float64{0}}
	tk.Mix(1, 10, []float64{5})

	if tk.V != 110 {
		t.Fatalf("V = %v, want 110", tk.V)
	}
	want := (0*100 + 5*10) / 110.0
	if diff := tk.C[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("C[0] = %v, want %v", tk.C[0], want)
	}
}

func TestMixCompleteOutflowKeepsConcentration(t *testing.T) {
	tk := &Tank{Mixing: MixComplete, V: 100, C: []float64{3}}
	tk.Mix(1, -10, []float64{0})

	if tk.V != 90 {
		t.Fatalf("V = %v, want 90", tk.V)
	}
	if tk.C[0] != 3 {
		t.Fatalf("draining a complete-mix tank must not change concentration, got %v", tk.C[0])
	}
}

func TestMixFIFODischargesOldestFirst(t *testing.T) {
	pool := newSegPool(1)
	tk := &Tank{Mixing: MixFIFO, Segs: newSegList(pool)}

	tk.Segs.PushTail(5, []float64{1})
	tk.Mix(1, 3, []float64{2}) // fill with 3 volume of quality 2

	if got := tk.DischargeConcentration()[0]; got != 1 {
		t.Fatalf("FIFO should discharge the oldest (first-filled) segment, got %v", got)
	}
}

func TestMixLIFODischargesNewestFirst(t *testing.T) {
	pool := newSegPool(1)
	tk := &Tank{Mixing: MixLIFO, Segs: newSegList(pool)}

	tk.Segs.PushTail(5, []float64{1})
	tk.Mix(1, 3, []float64{2}) // fill with 3 volume of quality 2

	if got := tk.DischargeConcentration()[0]; got != 2 {
		t.Fatalf("LIFO should discharge the most recently filled segment, got %v", got)
	}

	tk.Mix(1, -3, nil) // drain the just-added segment back out
	if got := tk.DischargeConcentration()[0]; got != 1 {
		t.Fatalf("after draining the newest segment, LIFO should discharge the older one, got %v", got)
	}
}

func TestMixTwoCompSpillsIntoZone2(t *testing.T) {
	tk := &Tank{Mixing: MixTwoComp, V: 5, VMix: 10, C: []float64{0}}
	tk.Mix(1, 20, []float64{4}) // fills past VMix, should spill into zone 2

	if tk.V2 <= 0 {
		t.Fatalf("zone 2 should have received overflow volume, V2 = %v", tk.V2)
	}
	if tk.C2[0] <= 0 {
		t.Fatalf("zone 2 should carry the spilled quality, C2 = %v", tk.C2)
	}
}
