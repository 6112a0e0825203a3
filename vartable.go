package msx

// HydVar identifies one of the eight hydraulic variables visible to
// expressions evaluated inside a pipe (spec.md §4.4).
type HydVar int

const (
	HydD  HydVar = iota // pipe diameter
	HydQ                // flow rate
	HydU                // flow velocity
	HydRe               // Reynolds number
	HydUs               // shear velocity
	HydFf               // Darcy-Weisbach friction factor
	HydAv               // pipe wall surface area per unit volume
	HydR                // pipe roughness
	numHydVars
)

// VarTable assigns every MathExpr variable reference (species, terms,
// parameters, constants, and the fixed hydraulic variables) a single
// contiguous slot index, computed once after a Network is fully parsed.
// mathexpr.Expr trees only ever see these slot indices; resolving a name
// back to a slot is purely a parse-time concern (input.go), which is why
// VarTable itself holds no name->index map of its own.
type VarTable struct {
	nSpecies int
	nTerms   int
	nParams  int
	nConst   int

	speciesOff int
	termOff    int
	paramOff   int
	constOff   int
	hydOff     int

	size int
}

// NewVarTable lays out the slot table for a Network with the given
// species/term/parameter/constant counts.
func NewVarTable(nSpecies, nTerms, nParams, nConst int) *VarTable {
	t := &VarTable{nSpecies: nSpecies, nTerms: nTerms, nParams: nParams, nConst: nConst}
	t.speciesOff = 0
	t.termOff = t.speciesOff + nSpecies
	t.paramOff = t.termOff + nTerms
	t.constOff = t.paramOff + nParams
	t.hydOff = t.constOff + nConst
	t.size = t.hydOff + int(numHydVars)
	return t
}

// Size is the number of slots a resolver array/Resolver must cover.
func (t *VarTable) Size() int { return t.size }

func (t *VarTable) SpeciesSlot(i int) int  { return t.speciesOff + i }
func (t *VarTable) TermSlot(i int) int     { return t.termOff + i }
func (t *VarTable) ParamSlot(i int) int    { return t.paramOff + i }
func (t *VarTable) ConstSlot(i int) int    { return t.constOff + i }
func (t *VarTable) HydSlot(v HydVar) int   { return t.hydOff + int(v) }

// IsSpecies, IsTerm, IsParam, IsConst, IsHyd classify a slot index
// produced by one of the Slot methods above; used by the chemistry
// engine's Resolver to route a reference to the right backing store.
func (t *VarTable) IsSpecies(slot int) (int, bool) {
	if slot >= t.speciesOff && slot < t.termOff {
		return slot - t.speciesOff, true
	}
	return 0, false
}

func (t *VarTable) IsTerm(slot int) (int, bool) {
	if slot >= t.termOff && slot < t.paramOff {
		return slot - t.termOff, true
	}
	return 0, false
}

func (t *VarTable) IsParam(slot int) (int, bool) {
	if slot >= t.paramOff && slot < t.constOff {
		return slot - t.paramOff, true
	}
	return 0, false
}

func (t *VarTable) IsConst(slot int) (int, bool) {
	if slot >= t.constOff && slot < t.hydOff {
		return slot - t.constOff, true
	}
	return 0, false
}

func (t *VarTable) IsHyd(slot int) (HydVar, bool) {
	if slot >= t.hydOff && slot < t.size {
		return HydVar(slot - t.hydOff), true
	}
	return 0, false
}

// Finalize computes the Network's VarTable. Must be called once, after
// parsing completes. The parser compiles expressions before this runs,
// against its own VarTable built from the same four counts, so the slot
// layout is the same.
func (n *Network) Finalize() {
	n.vars = NewVarTable(len(n.Species), len(n.Terms), len(n.Parameters), len(n.Constants))
	for _, nd := range n.Nodes {
		nd.TankIdx = -1
	}
	for i, tk := range n.Tanks {
		n.Nodes[tk.Node].TankIdx = i
	}
	n.buildIndexes()
}

// VarTable returns the network's variable slot table, valid after
// Finalize.
func (n *Network) VarTable() *VarTable { return n.vars }
