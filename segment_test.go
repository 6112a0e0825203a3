package msx

import "testing"

func TestSegListPushAndShrink(t *testing.T) {
	pool := newSegPool(1)
	l := newSegList(pool)

	l.PushTail(10, []float64{1})
	l.PushTail(5, []float64{2})

	if got := l.TotalVolume(); got != 15 {
		t.Fatalf("TotalVolume() = %v, want 15", got)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	// Shrinking the head by less than its volume just reduces it.
	l.ShrinkHead(3)
	if got := l.Head().c[0]; got != 1 {
		t.Fatalf("head concentration changed unexpectedly: %v", got)
	}
	if got := l.TotalVolume(); got != 12 {
		t.Fatalf("TotalVolume() after partial shrink = %v, want 12", got)
	}

	// Shrinking past the head segment's remaining volume drains it and
	// moves on to the next.
	l.ShrinkHead(7)
	if got := l.Head().c[0]; got != 2 {
		t.Fatalf("head should now be the second segment, c = %v", got)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() after drain = %d, want 1", l.Len())
	}
}

func TestSegListGrowTailMergesSameQuality(t *testing.T) {
	pool := newSegPool(1)
	l := newSegList(pool)

	l.PushTail(10, []float64{5})
	l.GrowTail(3, []float64{5}, []float64{1e-9})

	if l.Len() != 1 {
		t.Fatalf("same-quality GrowTail should merge, Len() = %d", l.Len())
	}
	if got := l.Tail().v; got != 13 {
		t.Fatalf("Tail().v = %v, want 13", got)
	}

	l.GrowTail(2, []float64{9}, []float64{1e-9})
	if l.Len() != 2 {
		t.Fatalf("differing-quality GrowTail should push a new segment, Len() = %d", l.Len())
	}
}

func TestSegListPopHeadAndPopTail(t *testing.T) {
	pool := newSegPool(1)
	l := newSegList(pool)
	l.PushTail(4, []float64{1})
	l.PushTail(6, []float64{2})

	v, c := l.PopHead()
	if v != 4 || c[0] != 1 {
		t.Fatalf("PopHead() = (%v, %v), want (4, [1])", v, c)
	}

	v, c = l.PopTail()
	if v != 6 || c[0] != 2 {
		t.Fatalf("PopTail() = (%v, %v), want (6, [2])", v, c)
	}
	if !l.Empty() {
		t.Fatalf("list should be empty after draining both ends")
	}
}

func TestSegPoolReusesFreedSlots(t *testing.T) {
	pool := newSegPool(1)
	l := newSegList(pool)
	l.PushTail(1, []float64{1})
	before := len(pool.arena)

	l.PopHead()
	l.PushTail(1, []float64{2})

	if len(pool.arena) != before {
		t.Fatalf("arena grew from %d to %d, expected the freed slot to be reused", before, len(pool.arena))
	}
}
