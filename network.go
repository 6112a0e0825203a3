// Package msx implements the coupled water-quality transport and reaction
// engine: the segmented Lagrangian pipe-transport model, the chemistry
// evaluator, the reaction/equilibrium integrator, and the time driver that
// advances them in lockstep (spec.md §§1-4).
package msx

import "github.com/watermodel/msx/mathexpr"

// SpeciesKind distinguishes bulk species (transported by flow) from wall
// species (attached to pipe walls, shifted only by kinetics and mass
// transfer).
type SpeciesKind uint8

const (
	Bulk SpeciesKind = iota
	Wall
)

// MassUnits is the mass-unit code carried by a Species, per
// original_source/src/msxdict.h's MassUnitsWords.
type MassUnits uint8

const (
	MG MassUnits = iota
	UG
	Mole
	MMol
)

// ExprKind is the per-zone expression kind of a Species (spec.md I4: pipe
// expressions are restricted to {rate, formula, none}; tank expressions
// additionally allow equilibrium).
type ExprKind uint8

const (
	ExprNone ExprKind = iota
	ExprRate
	ExprFormula
	ExprEquil
)

// Species is one chemical or physical quantity tracked at every node,
// tank and pipe segment.
type Species struct {
	ID    string
	Index int
	Units MassUnits
	ATol  float64
	RTol  float64
	Kind  SpeciesKind

	PipeExprKind ExprKind
	TankExprKind ExprKind
	PipeExpr     *mathexpr.Expr
	TankExpr     *mathexpr.Expr

	Precision int
	Report    bool
}

// Term is a named, reusable sub-expression referenced from rate, formula
// or equilibrium expressions.
type Term struct {
	ID    string
	Index int
	Expr  *mathexpr.Expr
}

// Parameter has a network-wide default value plus optional per-link and
// per-tank overrides (stored on Link.Params / Tank.Params).
type Parameter struct {
	ID      string
	Index   int
	Default float64
}

// Constant is a single scalar value visible to every expression in every
// zone.
type Constant struct {
	ID    string
	Index int
	Value float64
}

// Pattern is a finite ordered sequence of multipliers that wraps when the
// step index exceeds its length.
type Pattern struct {
	ID    string
	Index int
	Mult  []float64
}

// At returns the multiplier for pattern step idx, wrapping per spec.md §3.
func (p *Pattern) At(idx int) float64 {
	if len(p.Mult) == 0 {
		return 1
	}
	return p.Mult[idx%len(p.Mult)]
}

// SourceKind selects how a Source injects mass into its node's outgoing
// flow, per original_source/src/msxdict.h's SourceTypeWords.
type SourceKind uint8

const (
	SourceConcen SourceKind = iota
	SourceMassBooster
	SourceSetpointBooster
	SourceFlowPacedBooster
)

// Source is a node-local injection of one species, optionally scaled by a
// Pattern over time.
type Source struct {
	Kind    SourceKind
	Species int
	Base    float64
	Pattern *Pattern
}

// Strength returns the source's instantaneous rate/concentration/setpoint
// at quality step idx.
func (s *Source) Strength(idx int) float64 {
	mult := 1.0
	if s.Pattern != nil {
		mult = s.Pattern.At(idx)
	}
	return s.Base * mult
}

// Node is a junction, reservoir or tank attachment point.
type Node struct {
	ID      string
	Index   int
	Sources []*Source
	C       []float64 // current concentration, per species
	C0      []float64 // initial concentration, per species
	TankIdx int        // index into Network.Tanks, or -1
	Report  bool

	inLinks  []int // links for which this node is the end   (N2 == Index)
	outLinks []int // links for which this node is the start (N1 == Index)
}

// IsTank reports whether this node has an associated Tank.
func (n *Node) IsTank() bool { return n.TankIdx >= 0 }

// Link is a pipe connecting two nodes.
type Link struct {
	ID        string
	Index     int
	N1, N2    int // start, end node index
	Diameter  float64
	Length    float64
	Roughness float64
	InitC     []float64      // per-species initial concentration
	Params    map[int]float64 // per-parameter kinetic override, by Parameter.Index
	Report    bool

	FlowDir int     // sign(Q), updated each hydraulic step
	Q       float64 // current flow, volume/time
	Segs    *segList
}

// Volume returns the pipe's total water volume, π/4 · d² · L.
func (l *Link) Volume() float64 {
	return piOver4 * l.Diameter * l.Diameter * l.Length
}

const piOver4 = 3.141592653589793 / 4

// MixingModel selects a tank's mixing behavior, per
// original_source/src/msxdict.h's MixingTypeWords.
type MixingModel uint8

const (
	MixComplete MixingModel = iota
	MixTwoComp
	MixFIFO
	MixLIFO
)

// Tank is a storage node with a mixing model.
type Tank struct {
	Node   int // owning Node.Index
	Area   float64
	V0, V  float64
	Mixing MixingModel
	VMix   float64 // mixing-compartment size for the two-compartment model
	Params map[int]float64
	C      []float64 // complete-mix concentration, or two-comp zone 1
	Segs   *segList  // FIFO/LIFO representation

	V2 float64   // two-compartment model's zone-2 volume
	C2 []float64 // two-compartment model's zone-2 concentration
}

// Network holds the immutable (post-setup) topology, species set, and
// chemistry coefficients of one project. It corresponds to spec.md §3's
// Network entity.
type Network struct {
	Nodes      []*Node
	Links      []*Link
	Tanks      []*Tank
	Species    []*Species
	Terms      []*Term
	Parameters []*Parameter
	Constants  []*Constant
	Patterns   []*Pattern

	// nodeIndex/linkIndex/... are runtime lookup tables for the
	// getIndex/getID external-interface family (spec.md §6). Unlike the
	// parser's symbol tables (scoped to input.go, discarded after Open),
	// these persist for the life of the project because getIndex/getID
	// are project operations, not parse-time concerns.
	nodeIndex map[string]int
	linkIndex map[string]int

	vars *VarTable
}

// NumSpecies, NumNodes, NumLinks, NumTanks satisfy the getCount family of
// spec.md §6.
func (n *Network) NumSpecies() int { return len(n.Species) }
func (n *Network) NumNodes() int   { return len(n.Nodes) }
func (n *Network) NumLinks() int   { return len(n.Links) }
func (n *Network) NumTanks() int   { return len(n.Tanks) }

// NodeByID and LinkByID satisfy getIndex.
func (n *Network) NodeByID(id string) (int, bool) { i, ok := n.nodeIndex[id]; return i, ok }
func (n *Network) LinkByID(id string) (int, bool) { i, ok := n.linkIndex[id]; return i, ok }

// buildIndexes (re)builds the runtime ID->index lookup tables and each
// node's in/out link lists. It runs when the topology is loaded and again
// in Finalize; the link lists are cleared first, so a repeated call does
// not duplicate entries.
func (n *Network) buildIndexes() {
	n.nodeIndex = make(map[string]int, len(n.Nodes))
	for _, nd := range n.Nodes {
		n.nodeIndex[nd.ID] = nd.Index
	}
	n.linkIndex = make(map[string]int, len(n.Links))
	for _, l := range n.Links {
		n.linkIndex[l.ID] = l.Index
	}
	for _, nd := range n.Nodes {
		nd.inLinks, nd.outLinks = nil, nil
	}
	for _, l := range n.Links {
		n.Nodes[l.N2].inLinks = append(n.Nodes[l.N2].inLinks, l.Index)
		n.Nodes[l.N1].outLinks = append(n.Nodes[l.N1].outLinks, l.Index)
	}
}
