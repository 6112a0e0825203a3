package msx

import "testing"

func TestVarTableSlotsRoundTrip(t *testing.T) {
	vt := NewVarTable(2, 3, 1, 4)

	if got := vt.Size(); got != 2+3+1+4+int(numHydVars) {
		t.Fatalf("Size() = %d, want %d", got, 2+3+1+4+int(numHydVars))
	}

	if i, ok := vt.IsSpecies(vt.SpeciesSlot(1)); !ok || i != 1 {
		t.Errorf("IsSpecies(SpeciesSlot(1)) = (%d, %v), want (1, true)", i, ok)
	}
	if i, ok := vt.IsTerm(vt.TermSlot(2)); !ok || i != 2 {
		t.Errorf("IsTerm(TermSlot(2)) = (%d, %v), want (2, true)", i, ok)
	}
	if i, ok := vt.IsParam(vt.ParamSlot(0)); !ok || i != 0 {
		t.Errorf("IsParam(ParamSlot(0)) = (%d, %v), want (0, true)", i, ok)
	}
	if i, ok := vt.IsConst(vt.ConstSlot(3)); !ok || i != 3 {
		t.Errorf("IsConst(ConstSlot(3)) = (%d, %v), want (3, true)", i, ok)
	}
	if v, ok := vt.IsHyd(vt.HydSlot(HydRe)); !ok || v != HydRe {
		t.Errorf("IsHyd(HydSlot(HydRe)) = (%v, %v), want (HydRe, true)", v, ok)
	}

	// A species slot must never misclassify as any other kind.
	sSlot := vt.SpeciesSlot(0)
	if _, ok := vt.IsTerm(sSlot); ok {
		t.Errorf("species slot wrongly classified as term")
	}
	if _, ok := vt.IsParam(sSlot); ok {
		t.Errorf("species slot wrongly classified as param")
	}
	if _, ok := vt.IsConst(sSlot); ok {
		t.Errorf("species slot wrongly classified as const")
	}
	if _, ok := vt.IsHyd(sSlot); ok {
		t.Errorf("species slot wrongly classified as hyd")
	}
}

func TestVarTableOutOfRange(t *testing.T) {
	vt := NewVarTable(1, 1, 1, 1)
	if _, ok := vt.IsSpecies(vt.Size() + 100); ok {
		t.Errorf("slot far out of range should not classify as species")
	}
}
